package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"text/tabwriter"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/notify"
	"github.com/grovetools/agentd/pkg/registry"
	"github.com/spf13/cobra"
)

// NewSessionsCmd creates the `sessions` command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage agent sessions",
	}

	cmd.PersistentFlags().StringP("owner", "o", "", "Session owner (defaults to the current user)")

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCreateCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsArchiveCmd())
	cmd.AddCommand(newSessionsDeleteCmd())

	return cmd
}

// openRegistry builds a registry against the configured sessions root.
func openRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return registry.New(cfg, headless.NewRunner(cfg), notify.NewWebhook(cfg)), nil
}

func resolveOwner(cmd *cobra.Command) string {
	owner, _ := cmd.Flags().GetString("owner")
	if owner != "" {
		return owner
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func newSessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			kind, _ := cmd.Flags().GetString("kind")
			all, _ := cmd.Flags().GetBool("all")
			sessions, err := reg.List(resolveOwner(cmd), models.ListFilter{
				Kind:            models.SessionKind(kind),
				IncludeArchived: all,
			})
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(sessions)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tTITLE\tLAST ACTIVITY")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Kind, s.Status, s.Title, s.LastActivity.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("kind", "", "Filter by session kind (interactive|headless)")
	cmd.Flags().Bool("all", false, "Include archived sessions")
	return cmd
}

func newSessionsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			kind, _ := cmd.Flags().GetString("kind")
			title, _ := cmd.Flags().GetString("title")
			session, err := reg.Create(resolveOwner(cmd), models.SessionKind(kind), registry.CreateOptions{
				Title: title,
			})
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(session)
			}
			fmt.Println(session.ID)
			return nil
		},
	}
	cmd.Flags().String("kind", string(models.KindHeadless), "Session kind (interactive|headless)")
	cmd.Flags().StringP("title", "t", "", "Session title")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show session metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			session, err := reg.Get(args[0])
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(session)
		},
	}
}

func newSessionsArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <session-id>",
		Short: "Archive a session, keeping its logs on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			if err := reg.Archive(args[0]); err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			fmt.Printf("Archived session %s\n", args[0])
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}

			if err := reg.Delete(args[0]); err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}
