package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
)

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 200 * time.Millisecond

// RequirementsSink receives a reloaded requirement set and returns how many
// sessions were re-classified.
type RequirementsSink interface {
	SetRequirements(rs models.RequirementSet) int
}

// Watcher reloads a requirement file whenever it changes on disk.
type Watcher struct {
	path    string
	sink    RequirementsSink
	delay   time.Duration
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	once  sync.Once

	// OnError receives parse failures. The previous set stays active.
	OnError func(error)
}

// NewWatcher watches path for changes. The parent directory is watched so
// that editors replacing the file by rename are seen.
func NewWatcher(path string, sink RequirementsSink) (*Watcher, error) {
	if _, err := parser.RequirementsFormat(path); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	w := &Watcher{
		path:    filepath.Clean(path),
		sink:    sink,
		delay:   DefaultReloadDelay,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Printf("[Requirements] Watcher error: %v\n", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.Reload)
}

// Reload parses the file and hands the set to the sink. It does nothing
// once the watcher is closed.
func (w *Watcher) Reload() {
	select {
	case <-w.done:
		return
	default:
	}
	rs, err := parser.ParseRequirements(w.path)
	if err != nil {
		fmt.Printf("[Requirements] Reload of %s failed: %v\n", filepath.Base(w.path), err)
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}
	n := w.sink.SetRequirements(*rs)
	fmt.Printf("[Requirements] Reloaded %s: %d links, %d selectable, %d always-visible; %d sessions re-classified\n",
		filepath.Base(w.path), len(rs.Links), len(rs.Selectable), len(rs.AlwaysVisible), n)
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
