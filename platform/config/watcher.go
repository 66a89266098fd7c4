package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"smartsales_backend/platform/logger"
)

// LoadYAML decodes the YAML file at path into v. Unknown keys are rejected.
func LoadYAML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// FileWatcher calls OnChange whenever the watched file is written, created or
// renamed into place. The parent directory is watched so editors that replace
// the file atomically are still noticed.
type FileWatcher struct {
	path     string
	log      *logger.Logger
	onChange func(path string) error
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, log *logger.Logger, onChange func(path string) error) *FileWatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &FileWatcher{path: filepath.Clean(path), log: log, onChange: onChange}
}

// Start begins watching in a background goroutine that stops with ctx.
// The returned channel is closed once the goroutine has exited.
func (w *FileWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := w.onChange(w.path); err != nil {
					w.log.Warn("config reload rejected", "path", w.path, "error", err)
					continue
				}
				w.log.Info("config file reloaded", "path", w.path, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.log.Error("config watcher error", "error", err)
			}
		}
	}()
	return done, nil
}
