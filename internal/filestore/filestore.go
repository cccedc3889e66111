// Package filestore persists the task collection as a single document on
// disk. Writes go to a temporary file that is renamed into place.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/ldi/agrasandhani/internal/store"
	"github.com/ldi/agrasandhani/pkg/models"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var _ store.Backend = (*Backend)(nil)

type Backend struct {
	fs       afero.Fs
	path     string
	format   Format
	useLock  bool
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
	checksum string
}

type Option func(*Backend)

// WithFs swaps the filesystem. File locking is turned off because advisory
// locks need a real file.
func WithFs(fsys afero.Fs) Option {
	return func(b *Backend) {
		b.fs = fsys
		b.useLock = false
	}
}

func WithFormat(f Format) Option {
	return func(b *Backend) { b.format = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New prepares a backend for path and creates its directory. Failing to
// create the directory is the one error callers should treat as fatal.
func New(path string, opts ...Option) (*Backend, error) {
	b := &Backend{
		fs:      afero.NewOsFs(),
		path:    path,
		format:  FormatFromPath(path),
		useLock: true,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	dir := filepath.Dir(b.path)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return b, nil
}

func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) lock() (func(), error) {
	if !b.useLock {
		return func() {}, nil
	}
	fl := flock.New(b.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", b.path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Load reads the document. A missing file is initialized as an empty
// document and written out.
func (b *Backend) Load(ctx context.Context) ([]models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := afero.ReadFile(b.fs, b.path)
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Info("initializing empty task file", zap.String("path", b.path))
		if err := b.write(nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	b.checksum = checksum(data)
	if len(data) == 0 {
		return nil, nil
	}

	doc, err := Decode(data, b.format)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", b.path, err)
	}
	if doc.Version != "" && doc.Version != DocumentVersion {
		b.logger.Warn("task file has an unknown version", zap.String("version", doc.Version))
	}
	return doc.Tasks, nil
}

func (b *Backend) Save(ctx context.Context, tasks []models.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(tasks)
}

func (b *Backend) write(tasks []models.Task) error {
	data, err := Encode(NewDocument(tasks, b.now()), b.format)
	if err != nil {
		return err
	}

	unlock, err := b.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := writeAtomic(b.fs, b.path, data); err != nil {
		return err
	}
	b.checksum = checksum(data)
	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := afero.TempFile(fsys, dir, "tasks-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			fsys.Remove(tempFile.Name())
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil

	if err := fsys.Rename(filename, path); err != nil {
		fsys.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// changedExternally reports whether the file differs from what this backend
// last read or wrote.
func (b *Backend) changedExternally() bool {
	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return checksum(data) != b.checksum
}

// WriteDocument encodes tasks to path in the given format, for exports.
func WriteDocument(fsys afero.Fs, path string, format Format, tasks []models.Task, now time.Time) error {
	data, err := Encode(NewDocument(tasks, now), format)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return writeAtomic(fsys, path, data)
}

// ReadDocument decodes the document at path.
func ReadDocument(fsys afero.Fs, path string, format Format) (Document, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format)
}

// IsNotExist reports a missing file from any of the helpers above.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
