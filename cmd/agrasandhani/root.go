package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ldi/agrasandhani/internal/config"
	"github.com/ldi/agrasandhani/internal/db"
	"github.com/ldi/agrasandhani/internal/filestore"
	"github.com/ldi/agrasandhani/internal/filter"
	"github.com/ldi/agrasandhani/internal/logging"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/internal/ui"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// runMenu is swapped out in tests.
var runMenu = ui.RunMenu

type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "agrasandhani",
		Short: "Hierarchical personal task store with an MCP companion service",
		Long: `Agrasandhani keeps a hierarchy of tasks and subtasks in a local file or
SQLite database, and serves it to assistants over MCP and to browsers over a
read-only HTTP API.

Run without arguments to pick a command from a menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := runMenu()
			if err != nil {
				return fmt.Errorf("failed to run menu: %w", err)
			}
			if selected == "" {
				return nil
			}
			sub, _, err := cmd.Find([]string{selected})
			if err != nil || sub == cmd || sub.RunE == nil {
				return fmt.Errorf("unknown command: %s", selected)
			}
			sub.SetContext(cmd.Context())
			return sub.RunE(sub, nil)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: .agrasandhani/config.yaml, then ~/.agrasandhani/config.yaml)")
	flags.String("data-path", "", "path to the task file")
	flags.String("backend", "", "storage backend: json, sqlite or memory")
	flags.String("format", "", "task file format: json, yaml or toml")
	flags.String("sqlite-path", "", "path to the SQLite database")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	for key, name := range map[string]string{
		"data_path":   "data-path",
		"backend":     "backend",
		"format":      "format",
		"sqlite_path": "sqlite-path",
		"log_level":   "log-level",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newInitCmd(c),
		newMCPCmd(c),
		newServeCmd(c),
		newAddCmd(c),
		newListCmd(c),
		newTreeCmd(c),
		newShowCmd(c),
		newDoneCmd(c),
		newDeleteCmd(c),
		newStatsCmd(c),
		newExportCmd(c),
		newImportCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// app is an opened store together with the backend behind it.
type app struct {
	store *store.Store
	file  *filestore.Backend
	db    *db.DB
}

func (c *cli) open(ctx context.Context) (*app, error) {
	a := &app{}
	var backend store.Backend

	switch c.cfg.Backend {
	case config.BackendSQLite:
		database, err := db.Open(c.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := database.Init(ctx); err != nil {
			database.Close()
			return nil, err
		}
		if c.cfg.SnapshotPath != "" {
			database.EnableAutoSnapshot(c.cfg.SnapshotPath, c.logger)
		}
		a.db = database
		backend = database
	case config.BackendMemory:
		backend = store.NewMemoryBackend()
	default:
		opts := []filestore.Option{filestore.WithLogger(c.logger)}
		if c.cfg.Format != "" {
			format, err := filestore.ParseFormat(c.cfg.Format)
			if err != nil {
				return nil, err
			}
			opts = append(opts, filestore.WithFormat(format))
		}
		fb, err := filestore.New(c.cfg.DataPath, opts...)
		if err != nil {
			return nil, err
		}
		a.file = fb
		backend = fb
	}

	order := filter.ParseOrder(c.cfg.ListOrder)
	if order == filter.OrderUnset {
		order = filter.OrderNewest
	}
	st, err := store.Open(ctx, backend, store.WithLogger(c.logger), store.WithDefaultOrder(order))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// watch reloads the store whenever another process rewrites the task file.
// Only the file backend can be watched.
func (a *app) watch(ctx context.Context, logger *zap.Logger) {
	if a.file == nil {
		return
	}
	go func() {
		err := a.file.Watch(ctx, func() {
			a.store.Reload(ctx)
		})
		if err != nil {
			logger.Warn("file watch stopped", zap.Error(err))
		}
	}()
}

var errAmbiguous = errors.New("ambiguous task id")

// resolveTask accepts a full id or a unique prefix of one.
func resolveTask(ctx context.Context, st *store.Store, ref string) (models.Task, error) {
	ref = strings.TrimSpace(ref)
	if t, err := st.Get(ctx, ref); err == nil {
		return t, nil
	}
	var matches []models.Task
	if ref != "" {
		for _, t := range st.Tasks(ctx) {
			if strings.HasPrefix(t.ID, ref) {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, &store.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	}
	return models.Task{}, fmt.Errorf("%w: %q matches %d tasks", errAmbiguous, ref, len(matches))
}
