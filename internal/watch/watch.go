// Package watch turns file system changes into check requests.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/linthost/internal/logging"
)

// Errors returned by the watcher.
var (
	// ErrPathNotExist is returned when a root does not exist.
	ErrPathNotExist = errors.New("path does not exist")

	// ErrWatcherClosed is returned when the watcher has stopped.
	ErrWatcherClosed = errors.New("watcher is closed")
)

// Trigger receives the paths to check.
type Trigger interface {
	RequestCheck(path string)
}

// Config configures a Watcher.
type Config struct {
	// Extensions are the file extensions that trigger checks, with the
	// leading dot. Empty means every file.
	Extensions []string

	// IgnoreDirs are directory base names that are never descended into.
	IgnoreDirs []string

	// Debounce coalesces bursts of events on one path.
	Debounce time.Duration
}

// DefaultConfig returns the default watch configuration.
func DefaultConfig() Config {
	return Config{
		Extensions: []string{".php"},
		IgnoreDirs: []string{".git", "vendor", "node_modules"},
		Debounce:   200 * time.Millisecond,
	}
}

// Stats reports watcher activity.
type Stats struct {
	WatchedDirs int
	Events      int64
	Triggered   int64
	Errors      int64
}

// Watcher watches directory trees and requests a check for each changed
// source file once its events settle.
type Watcher struct {
	fsw     *fsnotify.Watcher
	trigger Trigger
	cfg     Config
	log     *logging.Logger

	exts   map[string]bool
	ignore map[string]bool

	mu      sync.Mutex
	roots   []string
	dirs    map[string]bool
	pending map[string]*time.Timer
	closed  bool

	events    atomic.Int64
	triggered atomic.Int64
	errors    atomic.Int64
}

// New creates a watcher that reports to trigger.
func New(trigger Trigger, cfg Config, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}

	w := &Watcher{
		fsw:     fsw,
		trigger: trigger,
		cfg:     cfg,
		log:     log.WithComponent("watch"),
		exts:    make(map[string]bool, len(cfg.Extensions)),
		ignore:  make(map[string]bool, len(cfg.IgnoreDirs)),
		dirs:    make(map[string]bool),
		pending: make(map[string]*time.Timer),
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.exts[strings.ToLower(ext)] = true
	}
	for _, dir := range cfg.IgnoreDirs {
		w.ignore[dir] = true
	}
	return w, nil
}

// Matches reports whether a change to path should trigger a check. Ignored
// directory names are only looked for below the watched root containing
// path, so a root may itself live under a directory such as vendor.
func (w *Watcher) Matches(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(w.relDir(path)), "/") {
		if w.ignore[part] {
			return false
		}
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// relDir returns the directory of path relative to the deepest root that
// contains it, or the whole directory when no root does.
func (w *Watcher) relDir(path string) string {
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	best := ""
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
			dir = rel
		}
	}
	return dir
}

// Add watches root and every directory below it that is not ignored.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	if !info.IsDir() {
		return w.watchDir(abs)
	}
	return w.addTree(abs)
}

// addTree watches dir and the directories below it that are not ignored.
func (w *Watcher) addTree(abs string) error {
	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watchDir(p); err != nil {
			w.errors.Add(1)
			w.log.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) watchDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Run dispatches events until ctx is cancelled, then releases the
// underlying watcher. Pending debounced paths are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.errors.Add(1)
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	w.events.Add(1)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignore[filepath.Base(ev.Name)] {
				if err := w.addTree(ev.Name); err != nil {
					w.log.Debug("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}

	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if !w.Matches(ev.Name) {
		return
	}
	w.schedule(ev.Name)
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.fire(path)
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	w.triggered.Add(1)
	w.log.Debug("file changed", "path", path)
	w.trigger.RequestCheck(path)
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		w.log.Debug("closing watcher", "error", err)
	}
}

// Stats returns a snapshot of watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	dirs := len(w.dirs)
	w.mu.Unlock()

	return Stats{
		WatchedDirs: dirs,
		Events:      w.events.Load(),
		Triggered:   w.triggered.Load(),
		Errors:      w.errors.Load(),
	}
}

// Close releases a watcher that will not be run.
func (w *Watcher) Close() {
	w.close()
}
