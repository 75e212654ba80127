package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/spf13/cobra"
)

// NewTurnCmd creates the `turn` command, which runs one headless turn
// against an existing session and streams its output.
func NewTurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn <session-id> <message...>",
		Short: "Send a message to a session and stream the response",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			message := strings.Join(args[1:], " ")
			events, err := reg.SendTurn(cmd.Context(), args[0], message)
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			jsonOut := cli.GetOptions(cmd).JSONOutput
			enc := json.NewEncoder(os.Stdout)
			var failed bool
			for ev := range events {
				if jsonOut {
					if err := enc.Encode(ev); err != nil {
						return err
					}
					continue
				}
				printEvent(ev, &failed)
			}

			if failed {
				return fmt.Errorf("turn ended with an error")
			}
			return nil
		},
	}
	return cmd
}

func printEvent(ev models.NormalizedEvent, failed *bool) {
	switch ev.Type {
	case models.EventText, models.EventTextDelta:
		fmt.Print(ev.Text)
	case models.EventToolStart:
		fmt.Fprintf(os.Stderr, "\n[tool] %s\n", ev.ToolName)
	case models.EventResult:
		fmt.Printf("\n")
		if ev.CostUSD > 0 {
			fmt.Fprintf(os.Stderr, "[done] cost $%.4f over %d turns\n", ev.CostUSD, ev.NumTurns)
		}
	case models.EventError:
		*failed = true
		fmt.Fprintf(os.Stderr, "\n[error] %s\n", ev.Content)
	}
}
