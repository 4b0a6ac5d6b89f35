package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration coalesces the event bursts editors produce when
// saving a file.
const DefaultDebounceDuration = 200 * time.Millisecond

// Common errors.
var (
	ErrFileRemoved    = errors.New("dataset definition was removed")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDuration = d
		}
	}
}

// WithOnChange sets the callback invoked with the reloaded dataset after the
// definition file changes.
func WithOnChange(fn func(*Dataset)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onChange = fn
		}
	}
}

// WithOnError sets the callback invoked on watch and reload errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// Watcher monitors the dataset definition file and reloads it on change.
// A reload that yields the same generation id (touch without edit) is
// swallowed; callbacks only fire when the generation actually moves.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	onChange         func(*Dataset)
	onError          func(error)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}

	mu         sync.Mutex
	started    bool
	generation string
	timer      *time.Timer
}

// NewWatcher creates a watcher for the dataset's definition file. The
// dataset's current generation seeds the change detection.
func NewWatcher(ds *Dataset, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(ds.Path())
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		onChange:         func(*Dataset) {},
		onError:          func(error) {},
		generation:       ds.GenerationID(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The directory is watched rather than the file so
// atomic save-via-rename still produces events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	w.fsWatcher = fsw
	w.done = make(chan struct{})
	w.started = true
	go w.loop(fsw.Events, fsw.Errors)
	return nil
}

// Stop stops watching and cancels any pending debounced reload.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	close(w.done)
	w.fsWatcher.Close()
	w.fsWatcher = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.started = false
}

func (w *Watcher) loop(events <-chan fsnotify.Event, errs <-chan error) {
	target := filepath.Base(w.path)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				// Rename-over saves emit Remove then Create; only report
				// removal when the file is actually gone.
				if _, err := os.Stat(w.path); os.IsNotExist(err) {
					w.onError(ErrFileRemoved)
				}
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.trigger()
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// trigger arms the debounce timer, resetting it if already armed.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDuration, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	ds, err := Load(w.path)
	if err != nil {
		w.onError(err)
		return
	}

	w.mu.Lock()
	if ds.GenerationID() == w.generation {
		w.mu.Unlock()
		return
	}
	w.generation = ds.GenerationID()
	w.mu.Unlock()

	w.onChange(ds)
}
