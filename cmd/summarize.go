package cmd

import (
	"encoding/json"
	"os"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/transcript"
	"github.com/spf13/cobra"
)

// NewSummarizeCmd creates the `summarize` command.
func NewSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <session-id>",
		Short: "Generate or show a session summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			dir, err := reg.SessionDir(args[0])
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			summarizer := transcript.NewSummarizer(cfg, transcript.NewAgentEngine(cfg, headless.NewRunner(cfg)))

			cached, _ := cmd.Flags().GetBool("cached")
			if cached {
				summary, err := summarizer.Cached(dir)
				if err != nil {
					return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
				}
				if summary == nil {
					cmd.PrintErrln("No cached summary; run without --cached to generate one.")
					return nil
				}
				return printSummary(summary)
			}

			summary, err := summarizer.Summarize(cmd.Context(), dir, args[0])
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			return printSummary(summary)
		},
	}
	cmd.Flags().Bool("cached", false, "Show the cached summary without regenerating")
	return cmd
}

func printSummary(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
