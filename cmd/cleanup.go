package cmd

import (
	"fmt"
	"time"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/term"
	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the `cleanup` command, which removes idle session
// directories older than the configured idle window.
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove idle sessions older than the idle timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			maxAge := time.Duration(cfg.Sessions.IdleTimeoutMinutes) * time.Minute
			if flagAge, _ := cmd.Flags().GetDuration("max-age"); flagAge > 0 {
				maxAge = flagAge
			}
			if maxAge <= 0 {
				return fmt.Errorf("idle timeout is disabled; pass --max-age to clean up anyway")
			}

			sup := term.NewSupervisor(cfg)
			n := sup.CleanupIdle(maxAge)
			fmt.Printf("Removed %d idle sessions\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("max-age", 0, "Override the idle age cutoff (e.g. 48h)")
	return cmd
}
