package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Watch calls fn with the reloaded configuration whenever the file at path
// is written or replaced. Invalid files, and files that do not set
// app_password, are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file instead of writing it, so the
	// directory is watched and events are filtered by name.
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	slog.Debug("Watching config file", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := reload(path)
			if err != nil {
				slog.Error("Failed to reload config", slog.String("path", path), slog.Any("error", err))
				continue
			}
			applyFlags(cfg)
			slog.Info("Config reloaded", slog.String("path", path))
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", slog.Any("error", err))
		}
	}
}

// reload reads the config file of a running server. A file without
// app_password is rejected rather than falling back to DefaultAppPassword,
// which also covers the window in which a truncated file is being rewritten.
func reload(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var explicit struct {
		AppPassword string `yaml:"app_password"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if explicit.AppPassword == "" {
		return nil, fmt.Errorf("invalid config %s: app_password is not set", path)
	}
	return parse(path, data)
}
