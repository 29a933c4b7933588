package physics

import "sync"

// MaterialID is the scene-level handle of a resolved material.
type MaterialID uint32

// DefaultMaterialID is used for unknown or empty material slots.
const DefaultMaterialID MaterialID = 0

// DefaultMaterialName is the name of the material every library starts with.
const DefaultMaterialName = "default"

// Material is a resolved surface material.
type Material struct {
	ID          MaterialID
	Name        string
	Friction    float32
	Restitution float32
}

// MaterialLibrary maps authored material slot names to resolved materials.
type MaterialLibrary struct {
	mu     sync.RWMutex
	byName map[string]Material
	nextID MaterialID
}

// NewMaterialLibrary creates a library holding only the default material.
func NewMaterialLibrary() *MaterialLibrary {
	l := &MaterialLibrary{byName: make(map[string]Material)}
	l.byName[DefaultMaterialName] = Material{
		ID:       DefaultMaterialID,
		Name:     DefaultMaterialName,
		Friction: 0.5,
	}
	l.nextID = DefaultMaterialID + 1
	return l
}

// Register adds or updates a named material and returns it.
func (l *MaterialLibrary) Register(name string, friction, restitution float32) Material {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byName[name]
	if !ok {
		m = Material{ID: l.nextID, Name: name}
		l.nextID++
	}
	m.Friction = friction
	m.Restitution = restitution
	l.byName[name] = m
	return m
}

// Lookup returns the material registered under name.
func (l *MaterialLibrary) Lookup(name string) (Material, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.byName[name]
	return m, ok
}

// Resolve maps every slot to a material. Unknown slots resolve to the default
// material, so the result always has len(slots) entries.
func (l *MaterialLibrary) Resolve(slots []string) []Material {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Material, len(slots))
	for i, name := range slots {
		m, ok := l.byName[name]
		if !ok {
			m = l.byName[DefaultMaterialName]
		}
		out[i] = m
	}
	return out
}
