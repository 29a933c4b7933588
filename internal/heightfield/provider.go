// Package heightfield keeps a physics heightfield collider in sync with an
// external heightfield data provider.
//
// Change notifications are turned into refresh cycles: the stale rectangle
// of vertices is split into row blocks, and each block is resampled from the
// provider into the shape configuration and then pushed into the native
// heightfield. A new notification cancels the running cycle, waits for it to
// drain, and starts over with the merged dirty region.
package heightfield

import (
	"sync"

	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// ChangeMask describes what changed in a heightfield notification.
type ChangeMask uint8

const (
	ChangeNone           ChangeMask = 0
	ChangeSettings       ChangeMask = 1 << 0 // grid size, spacing, bounds or transform
	ChangeSurfaceData    ChangeMask = 1 << 1 // heights or per-vertex materials
	ChangeSurfaceMapping ChangeMask = 1 << 2 // material slot list

	ChangeUnspecified = ChangeSettings | ChangeSurfaceData | ChangeSurfaceMapping
)

// Has reports whether every bit of flag is set.
func (m ChangeMask) Has(flag ChangeMask) bool {
	return m&flag == flag && flag != 0
}

func (m ChangeMask) String() string {
	if m == ChangeNone {
		return "none"
	}
	s := ""
	for _, f := range []struct {
		bit  ChangeMask
		name string
	}{
		{ChangeSettings, "settings"},
		{ChangeSurfaceData, "surface_data"},
		{ChangeSurfaceMapping, "surface_mapping"},
	} {
		if m&f.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	return s
}

// SampleFunc receives one resampled vertex.
type SampleFunc func(column, row int, point physics.HeightMaterialPoint)

// IndexResolver converts a world-space region into vertex indices.
type IndexResolver interface {
	// HeightfieldIndicesFromRegion may return ranges that exceed the current
	// grid; callers clamp.
	HeightfieldIndicesFromRegion(region math.AABB) (startColumn, startRow, numColumns, numRows int)
}

// Provider is the authoritative source of heightfield data for one entity.
type Provider interface {
	IndexResolver

	HeightfieldAABB() math.AABB
	HeightfieldTransform() math.Transform
	HeightfieldGridSpacing() math.Vec2
	// HeightfieldGridSize returns vertex counts.
	HeightfieldGridSize() (numColumns, numRows int)
	HeightfieldHeightBounds() (minHeight, maxHeight float32)
	// MaterialList returns the authored material slot names.
	MaterialList() []string

	// UpdateHeightsAndMaterialsAsync resamples a rectangle, calling perSample
	// for each vertex and done exactly once afterwards, even for an empty
	// rectangle. Both may run on any goroutine.
	UpdateHeightsAndMaterialsAsync(perSample SampleFunc, done func(), startColumn, startRow, numColumns, numRows int)
}

// ChangeHandler receives change notifications. A null dirty box means the
// whole heightfield.
type ChangeHandler func(dirty math.AABB, mask ChangeMask)

// ProviderBus binds providers to entities and fans out their change
// notifications. It is safe for concurrent use.
type ProviderBus struct {
	mu        sync.RWMutex
	providers map[physics.EntityID]Provider
	handlers  map[physics.EntityID]map[uint64]ChangeHandler
	nextID    uint64
}

// NewProviderBus creates an empty bus.
func NewProviderBus() *ProviderBus {
	return &ProviderBus{
		providers: make(map[physics.EntityID]Provider),
		handlers:  make(map[physics.EntityID]map[uint64]ChangeHandler),
	}
}

// Connect binds p to entity, replacing any previous provider, and notifies
// subscribers with a settings change.
func (b *ProviderBus) Connect(entity physics.EntityID, p Provider) {
	b.mu.Lock()
	b.providers[entity] = p
	b.mu.Unlock()

	b.NotifyChanged(entity, math.NullAABB(), ChangeSettings)
}

// Disconnect unbinds the entity's provider.
func (b *ProviderBus) Disconnect(entity physics.EntityID) {
	b.mu.Lock()
	delete(b.providers, entity)
	b.mu.Unlock()
}

// Provider returns the provider bound to entity.
func (b *ProviderBus) Provider(entity physics.EntityID) (Provider, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.providers[entity]
	return p, ok
}

// Subscription is a registered ChangeHandler.
type Subscription struct {
	bus    *ProviderBus
	entity physics.EntityID
	id     uint64
	once   sync.Once
}

// Subscribe registers h for notifications about entity.
func (b *ProviderBus) Subscribe(entity physics.EntityID, h ChangeHandler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.handlers[entity] == nil {
		b.handlers[entity] = make(map[uint64]ChangeHandler)
	}
	b.handlers[entity][b.nextID] = h
	return &Subscription{bus: b, entity: entity, id: b.nextID}
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		hs := s.bus.handlers[s.entity]
		delete(hs, s.id)
		if len(hs) == 0 {
			delete(s.bus.handlers, s.entity)
		}
	})
}

// NotifyChanged calls every handler subscribed to entity on the calling
// goroutine.
func (b *ProviderBus) NotifyChanged(entity physics.EntityID, dirty math.AABB, mask ChangeMask) {
	b.mu.RLock()
	hs := make([]ChangeHandler, 0, len(b.handlers[entity]))
	for _, h := range b.handlers[entity] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(dirty, mask)
	}
}
