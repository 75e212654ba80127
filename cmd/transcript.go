package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/transcript"
	"github.com/spf13/cobra"
)

// NewTranscriptCmd creates the `transcript` command.
func NewTranscriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Render a session transcript as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			dir, err := reg.SessionDir(args[0])
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			t, err := transcript.Load(dir, args[0])
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}
			fmt.Print(transcript.Render(t))
			return nil
		},
	}
}
