// Package filewatcher reports new and changed PDFs in the input directory.
package filewatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/lecturerag/internal/domain/ports"
	"github.com/0xcro3dile/lecturerag/internal/infrastructure/logging"
)

// FSNotifyWatcher implements ports.FileWatcher on top of fsnotify. Only
// files whose extension is in the set are reported; subdirectories are
// not watched.
type FSNotifyWatcher struct {
	fs   *fsnotify.Watcher
	exts map[string]bool // lower-case, with dot
}

// NewFSNotifyWatcher creates a watcher for the given extensions
// (default ".pdf"), matched case-insensitively.
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &FSNotifyWatcher{fs: fw, exts: exts}, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if err := w.fs.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	go w.pump(ctx, events)
	return events, nil
}

func (w *FSNotifyWatcher) pump(ctx context.Context, out chan<- ports.FileEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.matches(ev.Name) {
				continue
			}
			op, ok := operation(ev.Op)
			if !ok {
				continue
			}
			if op != ports.FileDeleted && isDir(ev.Name) {
				continue
			}
			logging.Debugf("watch: %s %s", ev.Op, ev.Name)
			select {
			case out <- ports.FileEvent{Path: ev.Name, Operation: op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warnf("file watcher: %v", err)
		}
	}
}

// Stop closes the underlying watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.fs.Close()
}

func (w *FSNotifyWatcher) matches(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// operation maps an fsnotify op to a port operation. A rename reports the
// old name, so it counts as a deletion. Chmod is ignored.
func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Rename), op.Has(fsnotify.Remove):
		return ports.FileDeleted, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	}
	return 0, false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
