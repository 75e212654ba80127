package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SetPlainHelp installs a compact help renderer on the command and its
// children. It lists subcommands before flags and hides deprecated flags.
func SetPlainHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		renderHelp(c)
	})
}

func renderHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()

	if cmd.Long != "" {
		fmt.Fprintln(out, strings.TrimSpace(cmd.Long))
	} else if cmd.Short != "" {
		fmt.Fprintln(out, cmd.Short)
	}
	fmt.Fprintf(out, "\nUsage:\n  %s\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(out, "\nCommands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(out, "  %-12s %s\n", sub.Name(), sub.Short)
		}
	}

	if flags := visibleFlags(cmd); len(flags) > 0 {
		fmt.Fprintln(out, "\nFlags:")
		for _, f := range flags {
			fmt.Fprintf(out, "  %-24s %s\n", formatFlagName(f), f.Usage)
		}
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(out, "\nUse \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

func visibleFlags(cmd *cobra.Command) []*pflag.Flag {
	var flags []*pflag.Flag
	collect := func(f *pflag.Flag) {
		if f.Hidden || f.Deprecated != "" {
			return
		}
		flags = append(flags, f)
	}
	cmd.LocalFlags().VisitAll(collect)
	cmd.InheritedFlags().VisitAll(collect)
	return flags
}

func formatFlagName(f *pflag.Flag) string {
	name := "--" + f.Name
	if f.Shorthand != "" {
		name = "-" + f.Shorthand + ", " + name
	}
	if f.Value.Type() != "bool" {
		name += " " + f.Value.Type()
	}
	return name
}
