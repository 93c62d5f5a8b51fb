package scorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/l0p7/admitgate/internal/expr"
)

// Watcher monitors the configured overlay rules file and hot-swaps the
// Scorer's rule table whenever it changes, grounded on the debounced
// fsnotify reload loop the teacher uses for its rule sources.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchOverlay loads path once synchronously (reporting a load error to
// the caller), then watches it for changes and calls s.ReplaceOverlay on
// every write, logging reload failures via onError rather than returning
// them — a malformed overlay file must never take down a running Scorer.
func WatchOverlay(ctx context.Context, s *Scorer, env *expr.Environment, path string, onError func(error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("scorer: no overlay path configured for watching")
	}

	overlay, err := loadOverlayFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := CompileOverlay(env, overlay)
	if err != nil {
		return nil, err
	}
	s.ReplaceOverlay(rules)

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scorer: watch overlay: %w", err)
	}

	resolved, absErr := filepath.Abs(path)
	if absErr != nil {
		resolved = path
	}
	resolved = filepath.Clean(resolved)
	if err := watcher.Add(filepath.Dir(resolved)); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("scorer: watch add %s: %w", resolved, err)
	}

	done := make(chan struct{})
	w := &Watcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() { _ = watcher.Close() }()

		const debounce = 25 * time.Millisecond
		var timer *time.Timer
		var timerC <-chan time.Time
		schedule := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timerC = timer.C
		}

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-timerC:
				timerC = nil
				overlay, err := loadOverlayFile(resolved)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				rules, err := CompileOverlay(env, overlay)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				s.ReplaceOverlay(rules)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != resolved {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("scorer: watch error: %w", err))
				}
			}
		}
	}()

	return w, nil
}

func loadOverlayFile(path string) ([]OverlaySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scorer: read overlay %s: %w", path, err)
	}
	var specs []OverlaySpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("scorer: parse overlay %s: %w", path, err)
	}
	return specs, nil
}
