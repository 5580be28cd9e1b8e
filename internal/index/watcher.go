package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/cardring/internal/storage"
)

var watchedExts = map[string]bool{
	"":      true, // removed directories
	".md":   true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// Watch keeps the cached project in step with the vault under store until
// ctx is cancelled. File events are batched: once quiet passes without a
// new one, sync runs and cb (if non-nil) receives the changed vault-relative
// paths in sorted order. Hidden files and directories are ignored.
func Watch(ctx context.Context, store storage.Provider, quiet time.Duration, sync func() error, logger *slog.Logger, cb func(paths []string)) error {
	root := store.Root()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("index: watch: %w", err)
	}
	defer w.Close()

	if err := addDirs(w, root); err != nil {
		return fmt.Errorf("index: watch %s: %w", root, err)
	}
	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	timer := time.NewTimer(quiet)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			rel, ok := visiblePath(root, ev.Name)
			if !ok {
				continue
			}
			isDir := false
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					isDir = true
					if err := addDirs(w, ev.Name); err != nil {
						logger.Warn("watcher: add dir failed", slog.String("path", rel), slog.String("error", err.Error()))
					}
				}
			}
			if !isDir && !watchedExts[strings.ToLower(path.Ext(rel))] {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(quiet)

		case <-timer.C:
			paths := slices.Sorted(maps.Keys(pending))
			clear(pending)
			if err := sync(); err != nil {
				logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: synced", slog.Int("changes", len(paths)))
			if cb != nil {
				cb(paths)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// visiblePath returns name relative to root unless it lies outside the
// vault or under a hidden file or directory.
func visiblePath(root, name string) (string, bool) {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}

// addDirs watches dir and every visible directory below it.
func addDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
