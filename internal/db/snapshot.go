package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ldi/agrasandhani/internal/filestore"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EnableAutoSnapshot exports a JSON document to path after every successful
// save. Export failures are logged and never fail the save.
func (db *DB) EnableAutoSnapshot(path string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db.SetOnChange(func(ctx context.Context) {
		if err := db.ExportSnapshot(ctx, path); err != nil {
			logger.Warn("snapshot export failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// ExportSnapshot writes the table as a task document. The format follows the
// file extension.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	tasks, err := db.Load(ctx)
	if err != nil {
		return err
	}
	format := filestore.FormatFromPath(path)
	if err := filestore.WriteDocument(afero.NewOsFs(), path, format, tasks, time.Now()); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	return nil
}

// ImportSnapshot replaces the table with the normalized tasks in a
// document.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	doc, err := filestore.ReadDocument(afero.NewOsFs(), path, filestore.FormatFromPath(path))
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	tasks := make([]models.Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if t.ID == "" {
			continue
		}
		tasks = append(tasks, models.Normalize(t))
	}
	return db.Save(ctx, tasks)
}
