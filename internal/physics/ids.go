// Package physics is the collision side of the simulator: static rigid bodies
// carrying heightfield shapes, a thread-safe scene that owns them, and the
// quantized native heightfield those shapes collide against.
package physics

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// EntityID identifies the world entity a collider belongs to.
type EntityID = uuid.UUID

// NewEntityID returns a random entity id.
func NewEntityID() EntityID {
	return uuid.New()
}

// EntityIDFromName returns a stable id derived from name, so entities keep
// their id across runs.
func EntityIDFromName(name string) EntityID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
}

// ParseEntityID parses the textual form of an entity id.
func ParseEntityID(s string) (EntityID, error) {
	return uuid.Parse(s)
}

// BodyHandle references a body in a Scene. The zero handle is never issued.
type BodyHandle uint64

// InvalidBodyHandle is the handle of a body that is not in a scene.
const InvalidBodyHandle BodyHandle = 0

// IsValid reports whether h could reference a body.
func (h BodyHandle) IsValid() bool {
	return h != InvalidBodyHandle
}

func (h BodyHandle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// handleGenerator issues sequential body handles. Handles are never reused so a
// stale handle cannot resolve to a newer body.
type handleGenerator struct {
	mutex   sync.Mutex
	current BodyHandle
}

func (g *handleGenerator) New() BodyHandle {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.current++
	return g.current
}
