package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/internal/daemon/pidfile"
	"github.com/grovetools/agentd/internal/daemon/server"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/notify"
	"github.com/grovetools/agentd/pkg/paths"
	"github.com/grovetools/agentd/pkg/registry"
	"github.com/grovetools/agentd/pkg/term"
	"github.com/grovetools/agentd/pkg/transcript"
	"github.com/grovetools/agentd/pkg/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the daemon command with subcommands.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Agent session daemon",
		Long:  "Manage the agentd daemon that supervises agent sessions.",
	}

	cmd.AddCommand(newServeStartCmd())
	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())

	return cmd
}

func newServeStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the agentd daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("agentd")
			pidPath := paths.PidFilePath()

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			// 1. Acquire lock
			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Wire the session machinery
			runner := headless.NewRunner(cfg)
			notifier := notify.NewWebhook(cfg)
			reg := registry.New(cfg, runner, notifier)

			sup := term.NewSupervisor(cfg)
			reg.AttachSupervisor(sup)

			watchMgr := watcher.NewManager(cfg)
			reg.AttachWatcher(watchMgr)

			summarizer := transcript.NewSummarizer(cfg, transcript.NewAgentEngine(cfg, runner))

			// 3. Setup server
			srv := server.New(logger, cfg, reg)
			srv.SetSupervisor(sup)
			srv.SetSummarizer(summarizer)

			// 4. Handle signals
			ctx, cancel := context.WithCancel(context.Background())
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
				watchMgr.StopAll()
				sup.Shutdown()

				_ = pidfile.Release(pidPath)
				os.Exit(0)
			}()

			// 5. Idle session reaper
			go runIdleReaper(ctx, cfg.Sessions.IdleTimeoutMinutes, sup, logger)

			// 6. Start server (blocking)
			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

// runIdleReaper periodically terminates and removes sessions whose
// directories have seen no activity for the configured idle window.
func runIdleReaper(ctx context.Context, idleMinutes int, sup *term.Supervisor, logger *logrus.Entry) {
	if idleMinutes <= 0 {
		return
	}
	maxAge := time.Duration(idleMinutes) * time.Minute

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sup.CleanupIdle(maxAge); n > 0 {
				logger.Infof("Reaped %d idle sessions", n)
			}
		}
	}
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Printf("Sent stop signal to daemon (PID %d)\n", pid)
			return nil
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if running {
				fmt.Printf("Daemon is running (PID %d)\n", pid)
				fmt.Printf("Socket: %s\n", paths.SocketPath())
			} else {
				fmt.Println("Daemon is not running")
			}
			return nil
		},
	}
}
