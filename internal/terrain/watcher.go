package terrain

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Faultbox/midgard-physics/pkg/formats"
)

// DefaultReloadInterval is the minimum time between two reloads.
const DefaultReloadInterval = 250 * time.Millisecond

// Watcher reloads a GAT file into a Provider when it changes on disk.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file are picked up too. Bursts of events
// collapse into one reload, and reloads are spaced by the reload interval.
type Watcher struct {
	path     string
	provider *Provider
	watcher  *fsnotify.Watcher
	limiter  *rate.Limiter
	log      *zap.Logger

	pending  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	reloads atomic.Uint64
}

// NewWatcher creates a watcher for path. A non-positive interval uses
// DefaultReloadInterval.
func NewWatcher(path string, p *Provider, interval time.Duration) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     abs,
		provider: p,
		watcher:  fw,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		log:      p.log.With(zap.String("path", abs)),
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Watching stops when ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		defer cancel()
		w.processEvents(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.reloadLoop(ctx)
	}()
}

// Stop stops watching and waits for an in-progress reload.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.wg.Wait()
	})
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() uint64 {
	return w.reloads.Load()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.pending <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.pending:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	g, err := formats.ParseGATFile(w.path)
	if err != nil {
		// Partially written files fail to parse; the next write event retries.
		w.log.Warn("reloading map failed", zap.Error(err))
		return
	}
	w.provider.Replace(g)
	w.reloads.Add(1)
	w.log.Info("map reloaded",
		zap.Uint32("width", g.Width),
		zap.Uint32("height", g.Height))
}
