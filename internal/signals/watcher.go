// Package signals lets other processes steer a running foreman through
// files dropped in a signals directory. A file named <kind>-<project id>
// triggers the handler for kind; its contents are passed as the payload.
package signals

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/foreman/internal/logging"
)

// Kind names a signal.
type Kind string

const (
	Pause  Kind = "pause"
	Check  Kind = "check"
	Replan Kind = "replan"
)

// Kinds lists the recognized signals.
var Kinds = []Kind{Pause, Check, Replan}

// Handler reacts to one signal. payload is the trimmed file contents.
type Handler func(ctx context.Context, projectID, payload string) error

// Watcher dispatches signal files to handlers.
type Watcher struct {
	dir       string
	projectID string
	handlers  map[Kind]Handler
	logger    *logging.DebugLogger
	fs        *fsnotify.Watcher
}

// Dir returns the signals directory under dataDir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "signals")
}

// New creates the signals directory and starts watching it. With a
// non-empty projectID only that project's signals are consumed; others
// are left for their own watcher. Matching files already present are
// stale and removed.
func New(dir, projectID string, handlers map[Kind]Handler, logger *logging.DebugLogger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read signals directory: %w", err)
	}
	for _, e := range entries {
		if _, id, ok := Parse(e.Name()); ok && (projectID == "" || id == projectID) {
			logger.Log("[signals] removing stale %s", e.Name())
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, projectID: projectID, handlers: handlers, logger: logger, fs: fw}, nil
}

// Run dispatches signals until ctx ends, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.handle(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("[signals] WARNING: watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	kind, projectID, ok := Parse(filepath.Base(path))
	if !ok || (w.projectID != "" && projectID != w.projectID) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Already consumed by an earlier event for the same file.
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Log("[signals] remove %s: %v", path, err)
		return
	}

	h := w.handlers[kind]
	if h == nil {
		w.logger.Log("[signals] no handler for %s", kind)
		return
	}
	w.logger.Log("[signals] %s for %s", kind, projectID)
	if err := h(ctx, projectID, strings.TrimSpace(string(data))); err != nil {
		log.Printf("[signals] WARNING: %s %s: %v", kind, projectID, err)
	}
}

// Parse splits a signal file name into its kind and project id.
func Parse(name string) (Kind, string, bool) {
	for _, k := range Kinds {
		if id, ok := strings.CutPrefix(name, string(k)+"-"); ok && id != "" && !strings.HasPrefix(id, ".") {
			return k, id, true
		}
	}
	return "", "", false
}

// Send drops a signal file for projectID into dir. The file is written
// under a temporary name and renamed so the watcher never sees it
// half-written.
func Send(dir string, kind Kind, projectID, payload string) error {
	if _, _, ok := Parse(string(kind) + "-" + projectID); !ok {
		return fmt.Errorf("send signal: bad kind %q or project id %q", kind, projectID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	if payload == "" {
		payload = time.Now().Format(time.RFC3339)
	}
	tmp := filepath.Join(dir, "."+string(kind)+"-"+projectID+".tmp")
	if err := os.WriteFile(tmp, []byte(payload), 0644); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, string(kind)+"-"+projectID)); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}
