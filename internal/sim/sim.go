// Package sim hosts a terrain heightfield collider fed from a GAT file.
package sim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/bake"
	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/heightfield"
	"github.com/Faultbox/midgard-physics/internal/jobs"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/telemetry"
	"github.com/Faultbox/midgard-physics/internal/terrain"
	"github.com/Faultbox/midgard-physics/pkg/formats"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// ErrNoMap is returned when no GAT file is configured.
var ErrNoMap = errors.New("no GAT file configured")

// Sim owns the scene, the terrain provider and its collider.
type Sim struct {
	cfg    *config.Config
	entity physics.EntityID
	log    *zap.Logger

	scene    *physics.Scene
	bus      *heightfield.ProviderBus
	pool     *jobs.Pool
	provider *terrain.Provider
	collider *heightfield.Collider
	store    *bake.Store

	saves    chan struct{}
	saveWG   sync.WaitGroup
	saved    chan struct{}
	closeErr error
	once     sync.Once
}

// New loads the map and builds the collider. The first refresh is running
// when New returns.
func New(cfg *config.Config) (*Sim, error) {
	if cfg.Terrain.GATPath == "" {
		return nil, ErrNoMap
	}
	path, err := filepath.Abs(cfg.Terrain.GATPath)
	if err != nil {
		return nil, err
	}
	gat, err := formats.ParseGATFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading map: %w", err)
	}

	s := &Sim{
		cfg:    cfg,
		entity: physics.EntityIDFromName(path),
		scene:  physics.NewScene(),
		bus:    heightfield.NewProviderBus(),
		pool:   jobs.NewPool(cfg.Physics.Workers),
		saves:  make(chan struct{}, 1),
		saved:  make(chan struct{}, 1),
	}
	s.log = logger.Named("sim").With(zap.String("map", filepath.Base(path)), logger.Entity(s.entity))

	if cfg.Bake.Enabled() {
		s.store, err = bake.Open(bake.Config{Path: cfg.Bake.Path, InMemory: cfg.Bake.InMemory})
		if err != nil {
			s.pool.Close()
			return nil, err
		}
	}

	s.provider = terrain.NewProvider(gat, cfg.Terrain.CellSize, math.Transform{})
	s.provider.Attach(s.bus, s.entity)

	opts := []heightfield.Option{
		heightfield.WithScheduler(s.pool),
		heightfield.WithMaxPointsPerBlock(cfg.Physics.MaxPointsPerBlock),
	}
	if s.store != nil {
		opts = append(opts, heightfield.WithBakeSource(s.store, cfg.Bake.UseBaked))
	}
	s.collider = heightfield.NewCollider(s.entity, s.bus, s.scene, opts...)

	if s.store != nil && cfg.Bake.SaveOnRefresh {
		s.saveWG.Add(1)
		go s.saveLoop()
		s.collider.AddColliderChangedHandler(func(physics.EntityID) { s.requestSave() })
		// The first cycle may already have finished.
		s.requestSave()
	}

	columns, rows := gat.VertexCount()
	s.log.Info("simulation ready",
		zap.Int("columns", columns),
		zap.Int("rows", rows),
		zap.Int("workers", s.pool.Workers()))
	return s, nil
}

// Entity returns the terrain entity.
func (s *Sim) Entity() physics.EntityID { return s.entity }

// Scene returns the physics scene.
func (s *Sim) Scene() *physics.Scene { return s.scene }

// Provider returns the terrain provider.
func (s *Sim) Provider() *terrain.Provider { return s.provider }

// Collider returns the terrain collider.
func (s *Sim) Collider() *heightfield.Collider { return s.collider }

// Store returns the bake store, or nil when baking is disabled.
func (s *Sim) Store() *bake.Store { return s.store }

// Saved receives a value after each bake save.
func (s *Sim) Saved() <-chan struct{} { return s.saved }

// requestSave runs on a refresh job and must not block.
func (s *Sim) requestSave() {
	select {
	case s.saves <- struct{}{}:
	default:
	}
}

func (s *Sim) saveLoop() {
	defer s.saveWG.Done()
	for range s.saves {
		shape := s.collider.HeightfieldShape()
		if shape == nil {
			continue
		}
		var err error
		// Native writes happen under the scene write lock.
		s.scene.Read(func() {
			err = s.store.Save(s.entity, shape.Heightfield())
		})
		if err != nil {
			s.log.Error("baking heightfield failed", zap.Error(err))
			continue
		}
		select {
		case s.saved <- struct{}{}:
		default:
		}
	}
}

// Run serves metrics and watches the map file until ctx is canceled.
func (s *Sim) Run(ctx context.Context) error {
	if addr := s.cfg.Telemetry.MetricsAddr; addr != "" {
		ms, err := telemetry.ServeMetrics(addr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ms.Shutdown(shutdownCtx)
		}()
	}

	if s.cfg.Terrain.Watch {
		w, err := terrain.NewWatcher(s.cfg.Terrain.GATPath, s.provider, s.cfg.Terrain.ReloadInterval)
		if err != nil {
			return fmt.Errorf("watching map: %w", err)
		}
		w.Start(ctx)
		defer w.Stop()
		s.log.Info("watching map for changes")
	}

	<-ctx.Done()
	s.log.Info("simulation stopping")
	return nil
}

// Close tears the collider down and releases every resource.
func (s *Sim) Close() error {
	s.once.Do(func() {
		s.collider.Close()
		s.provider.Detach()
		s.provider.Wait()
		s.pool.Close()

		close(s.saves)
		s.saveWG.Wait()
		if s.store != nil {
			s.closeErr = s.store.Close()
		}
	})
	return s.closeErr
}
