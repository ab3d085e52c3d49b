// ABOUTME: File change notifications for feed assets using fsnotify
// ABOUTME: Bursts of writes are coalesced with a clockz debounce timer

package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/clockz"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher reports debounced changes to a single file.
type FileWatcher struct {
	path     string
	debounce time.Duration
	clock    clockz.Clock
}

// WatcherOption configures a FileWatcher.
type WatcherOption func(*FileWatcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		w.debounce = d
	}
}

// WithClock sets the clock used for debouncing.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) WatcherOption {
	return func(w *FileWatcher) {
		w.clock = clock
	}
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, opts ...WatcherOption) *FileWatcher {
	w := &FileWatcher{
		path:     path,
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching and returns a channel that receives one value per
// debounced burst of changes. The channel closes when ctx ends.
//
// The parent directory is watched so editors that save by rename are seen.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(w.path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve %s: %w", w.path, err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch file %s: %w", w.path, err)
	}

	raw := make(chan struct{}, 1)
	go func() {
		defer close(raw)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case raw <- struct{}{}:
				default:
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// keep watching
			}
		}
	}()

	return Debounce(ctx, raw, w.debounce, w.clock), nil
}

// Debounce emits once on out after in has been quiet for d. Pending input is
// flushed when in closes. out closes when in closes or ctx ends.
func Debounce(ctx context.Context, in <-chan struct{}, d time.Duration, clock clockz.Clock) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		var (
			timer   clockz.Timer
			pending bool
		)

		emit := func() {
			select {
			case out <- struct{}{}:
			default:
			}
			pending = false
		}

		for {
			var timerC <-chan time.Time
			if timer != nil {
				timerC = timer.C()
			}

			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case _, ok := <-in:
				if !ok {
					if pending {
						emit()
					}
					return
				}
				pending = true
				if timer == nil {
					timer = clock.NewTimer(d)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C():
						default:
						}
					}
					timer.Reset(d)
				}

			case <-timerC:
				if pending {
					emit()
				}
			}
		}
	}()

	return out
}
