// Package bake persists native heightfields so colliders can start from a
// baked copy instead of resampling their provider.
package bake

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
)

const keyPrefix = "heightfield/"

// ErrNoPath is returned when a persistent store is opened without a path.
var ErrNoPath = errors.New("bake store path is required")

// Config configures a Store.
type Config struct {
	Path     string
	InMemory bool
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// Store is a badger-backed table of baked heightfields keyed by entity.
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens or creates a store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, ErrNoPath
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating bake directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	log := logger.Named("bake")
	opts = opts.WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening bake store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func key(entity physics.EntityID) []byte {
	return []byte(keyPrefix + entity.String())
}

// Save stores hf for entity, replacing any previous bake. hf must not be
// modified concurrently.
func (s *Store) Save(entity physics.EntityID, hf *physics.NativeHeightfield) error {
	data, err := hf.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding heightfield: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(entity), data)
	})
	if err != nil {
		return fmt.Errorf("saving heightfield %s: %w", entity, err)
	}
	s.log.Debug("heightfield baked",
		logger.Entity(entity),
		zap.Int("bytes", len(data)))
	return nil
}

// Load returns the baked heightfield of entity. ok is false when none exists.
func (s *Store) Load(entity physics.EntityID) (hf *physics.NativeHeightfield, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(entity))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			hf = &physics.NativeHeightfield{}
			return hf.UnmarshalBinary(val)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading heightfield %s: %w", entity, err)
	}
	return hf, true, nil
}

// LoadBaked implements heightfield.BakeSource.
func (s *Store) LoadBaked(entity physics.EntityID) (*physics.NativeHeightfield, bool, error) {
	return s.Load(entity)
}

// Delete removes the bake of entity, if any.
func (s *Store) Delete(entity physics.EntityID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(entity))
	})
}

// Entities lists every entity with a baked heightfield.
func (s *Store) Entities() ([]physics.EntityID, error) {
	var out []physics.EntityID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw := string(it.Item().Key()[len(keyPrefix):])
			id, err := physics.ParseEntityID(raw)
			if err != nil {
				s.log.Warn("skipping malformed bake key", zap.String("key", raw))
				continue
			}
			out = append(out, id)
		}
		return nil
	})
	return out, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
