package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/version"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Println(info.String())
			return nil
		},
	}
}
