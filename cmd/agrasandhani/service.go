package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ldi/agrasandhani/internal/config"
	"github.com/ldi/agrasandhani/internal/mcp"
	"github.com/ldi/agrasandhani/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a config file and create the task store",
		Long: `Write config.yaml into <dir>/.agrasandhani, or ~/.agrasandhani when no
directory is given, then create the task file or database. With the sqlite
backend an existing snapshot is imported into an empty database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir := config.Dir()
			if len(args) > 0 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				dir = filepath.Join(abs, ".agrasandhani")
				c.useProjectDir(cmd, dir)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			err := c.v.SafeWriteConfigAs(cfgPath)
			var exists viper.ConfigFileAlreadyExistsError
			switch {
			case errors.As(err, &exists):
				fmt.Fprintf(out, "✓ Keeping existing %s\n", cfgPath)
			case err != nil:
				return fmt.Errorf("failed to write config: %w", err)
			default:
				fmt.Fprintf(out, "✓ Wrote %s\n", cfgPath)
			}

			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				switch {
				case a.db != nil:
					fmt.Fprintf(out, "✓ Initialized database at %s\n", c.cfg.SQLitePath)
					if err := c.importSnapshot(ctx, a); err != nil {
						return err
					}
				case a.file != nil:
					fmt.Fprintf(out, "✓ Task file ready at %s\n", a.file.Path())
				}
				fmt.Fprintf(out, "✓ %d task(s) in store\n", len(a.store.Tasks(ctx)))
				return nil
			})
		},
	}
}

// useProjectDir keeps a project's data next to its config unless a path was
// given explicitly on the command line.
func (c *cli) useProjectDir(cmd *cobra.Command, dir string) {
	if !cmd.Flags().Changed("data-path") {
		c.cfg.DataPath = filepath.Join(dir, "tasks.json")
		c.v.Set("data_path", c.cfg.DataPath)
	}
	if !cmd.Flags().Changed("sqlite-path") {
		c.cfg.SQLitePath = filepath.Join(dir, "tasks.db")
		c.v.Set("sqlite_path", c.cfg.SQLitePath)
	}
}

// importSnapshot seeds an empty database from the configured snapshot.
func (c *cli) importSnapshot(ctx context.Context, a *app) error {
	path := c.cfg.SnapshotPath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	n, err := a.db.CountTasks(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := a.db.ImportSnapshot(ctx, path); err != nil {
		return err
	}
	a.store.Reload(ctx)
	c.logger.Info("imported snapshot", zap.String("path", path))
	return nil
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				if c.cfg.Watch {
					a.watch(ctx, c.logger)
				}
				c.logger.Info("mcp server starting", zap.String("backend", c.cfg.Backend))
				return mcp.Serve(mcp.NewServer(a.store))
			})
		},
	}
}

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.HTTPAddr
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				if c.cfg.Watch {
					a.watch(ctx, c.logger)
				}

				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("failed to listen on %s: %w", addr, err)
				}
				srv := server.NewServer(a.store, c.logger)
				fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", ln.Addr())

				errc := make(chan error, 1)
				go func() { errc <- srv.Serve(ln) }()

				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("failed to shut down: %w", err)
				}
				return <-errc
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from http_addr)")
	return cmd
}
