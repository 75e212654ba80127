package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/paths"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [session-id]",
		Short: "Show daemon or session logs",
		Long: `Without arguments, streams the most recent daemon component log.
With a session id, streams that session's structured message log.

Examples:
  # Follow the daemon log
  agentd logs -f

  # Follow a session's message log
  agentd logs 4f1c2a9e -f

  # Raw JSON lines from a session log
  agentd logs 4f1c2a9e --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Bool("terminal", false, "Show the raw terminal capture instead of the message log")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	jsonOut := cli.GetOptions(cmd).JSONOutput

	var path string
	var structured bool
	if len(args) == 1 {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		dir, err := reg.SessionDir(args[0])
		if err != nil {
			return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
		}
		if terminal, _ := cmd.Flags().GetBool("terminal"); terminal {
			path = filepath.Join(dir, "logs", "terminal.log")
		} else {
			path = filepath.Join(dir, "logs", "messages.jsonl")
			structured = true
		}
	} else {
		var err error
		path, err = latestDaemonLog()
		if err != nil {
			return err
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow: follow,
		ReOpen: follow,
		Logger: tail.DiscardingLogger,
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekStart,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", path, err)
	}
	defer t.Cleanup()

	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		if structured && !jsonOut {
			printLogRecord(line.Text)
			continue
		}
		fmt.Println(line.Text)
	}
	return nil
}

// latestDaemonLog picks the newest log file from the state directory.
func latestDaemonLog() (string, error) {
	dir := filepath.Join(paths.StateDir(), "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("no daemon logs under %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no daemon logs under %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// printLogRecord renders one messages.jsonl line for humans. Lines that do
// not parse are printed verbatim.
func printLogRecord(raw string) {
	var rec models.LogRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		fmt.Println(raw)
		return
	}

	ts := rec.Timestamp.Format("15:04:05")
	switch rec.Type {
	case models.LogRecordUser:
		fmt.Printf("%s ❯ %s\n", ts, rec.Text)
	case models.LogRecordEvent:
		if rec.Event == nil {
			return
		}
		switch rec.Event.Type {
		case models.EventText:
			fmt.Printf("%s   %s\n", ts, rec.Event.Text)
		case models.EventToolStart:
			fmt.Printf("%s   [tool] %s\n", ts, rec.Event.ToolName)
		case models.EventError:
			fmt.Printf("%s   [error] %s\n", ts, rec.Event.Content)
		case models.EventResult:
			fmt.Printf("%s   [result] cost $%.4f\n", ts, rec.Event.CostUSD)
		}
	}
}
