// Package reload hot-reloads the governance config. A candidate policy is
// certified against the active baseline before it goes live; a candidate
// that regresses is refused and the running policy stays in force.
package reload

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tillerhq/tiller/internal/certify"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/gateway"
)

// Reloader watches the governance config file and swaps certified updates
// into the gateway.
type Reloader struct {
	watcher *fsnotify.Watcher
	gw      *gateway.Gateway
	path    string
	suite   *certify.Suite

	mu   sync.Mutex
	base certify.Baseline

	// OnApplied and OnRefused are optional observation hooks for logs and
	// tests. Called from the debounce goroutine.
	OnApplied func(policyHash string)
	OnRefused func(err error)
}

// New creates a reloader for the config at path. The baseline is the
// certification result of the currently active policy.
func New(gw *gateway.Gateway, path string, suite *certify.Suite, base certify.Baseline) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("reload: watch %q: %w", path, err)
	}

	return &Reloader{
		watcher: watcher,
		gw:      gw,
		path:    path,
		suite:   suite,
		base:    base,
	}, nil
}

// Apply loads, certifies, and (if clean) activates the candidate config at
// the reloader's path. Refusal leaves the active policy untouched.
func (r *Reloader) Apply() error {
	cfg, hash, err := config.LoadWithHash(r.path)
	if err != nil {
		return fmt.Errorf("reload: load candidate: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := certify.Run(cfg, hash, r.suite)
	if err := certify.CheckRegression(r.base, res); err != nil {
		return fmt.Errorf("reload: candidate refused: %w", err)
	}

	r.gw.SwapConfig(cfg, hash)
	r.base = certify.NewBaseline(res)
	return nil
}

// Run watches for config changes and applies certified updates. Blocks
// until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Editors rewrite files in bursts; wait for the last write to settle.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := r.Apply(); err != nil {
						if r.OnRefused != nil {
							r.OnRefused(err)
						} else {
							fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
						}
						return
					}
					if r.OnApplied != nil {
						r.OnApplied(r.gw.PolicyHash())
					} else {
						fmt.Fprintf(os.Stderr, "hot-reload: policy %s active\n", r.gw.PolicyHash())
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}
