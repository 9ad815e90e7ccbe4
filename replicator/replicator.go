// Package replicator tracks component values of entities in a Store and
// produces the minimal Difference between successive observations, so that
// a remote peer can mirror the store by applying them.
//
// Values are compared by their codec encoding, not structurally: two values
// are equal when they encode to the same bytes.
package replicator

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/squash"
)

// Component is one tracked component: a name unique within the replicator
// and the codec its values are encoded with.
type Component struct {
	Name  string
	Codec squash.AnyCodec
}

// Comp declares a component with a typed codec.
func Comp[T any](name string, c squash.Codec[T]) Component {
	return Component{name, squash.Erase(c)}
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool
}

// snapshot holds the encoded value of every present component, indexed by
// component position.
type snapshot map[Entity][][]byte

// Replicator is safe for concurrent use, although it is meant to be driven
// from one tick loop. Observations are serialized: each one reads the store
// and compares against the previous under the same lock.
type Replicator struct {
	store      Store
	components []Component
	byName     map[string]*Component
	index      map[string]int
	logger     *slog.Logger
	verbose    bool

	mu       sync.Mutex
	lastSent snapshot
}

// New creates a replicator for the given components of store. Duplicate or
// empty component names and nil codecs fail with squash.ErrInvalidSchema.
// store may be nil for a replicator that only applies differences.
func New(store Store, components []Component, opt Options) (*Replicator, error) {
	components = slices.Clone(components)
	byName, err := indexComponents(components)
	if err != nil {
		return nil, err
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	index := make(map[string]int, len(components))
	for i, comp := range components {
		index[comp.Name] = i
	}
	return &Replicator{
		store:      store,
		components: components,
		byName:     byName,
		index:      index,
		logger:     opt.Logger,
		verbose:    opt.Verbose,
		lastSent:   make(snapshot),
	}, nil
}

func indexComponents(components []Component) (map[string]*Component, error) {
	byName := make(map[string]*Component, len(components))
	for i := range components {
		comp := &components[i]
		if comp.Name == "" {
			return nil, fmt.Errorf("%w: component %d has no name", squash.ErrInvalidSchema, i)
		}
		if comp.Codec == nil {
			return nil, fmt.Errorf("%w: component %q has no codec", squash.ErrInvalidSchema, comp.Name)
		}
		if byName[comp.Name] != nil {
			return nil, fmt.Errorf("%w: duplicate component %q", squash.ErrInvalidSchema, comp.Name)
		}
		byName[comp.Name] = comp
	}
	return byName, nil
}

func (r *Replicator) Components() []Component {
	return slices.Clone(r.components)
}

// read observes the store and encodes every tracked component.
func (r *Replicator) read() (snapshot, error) {
	if r.store == nil {
		return nil, errors.New("replicator: no store to read from")
	}
	entities, err := r.store.Entities()
	if err != nil {
		return nil, fmt.Errorf("replicator: listing entities: %w", err)
	}
	snap := make(snapshot, len(entities))
	for _, e := range entities {
		var values [][]byte
		for i, comp := range r.components {
			v, found, err := r.store.Get(e, comp.Name)
			if err != nil {
				return nil, fmt.Errorf("replicator: reading %s of %d: %w", comp.Name, e, err)
			}
			if !found {
				continue
			}
			data, err := encodeValue(comp.Codec, v)
			if err != nil {
				return nil, fmt.Errorf("replicator: encoding %s of %d: %w", comp.Name, e, err)
			}
			if values == nil {
				values = make([][]byte, len(r.components))
			}
			values[i] = data
		}
		if values != nil {
			snap[e] = values
		}
	}
	return snap, nil
}

// FullData observes the store, remembers the observation as sent, and
// returns every tracked component as a put. The returned data does not
// alias the replicator's state.
func (r *Replicator) FullData() (Difference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.read()
	if err != nil {
		return nil, err
	}

	diff := make(Difference, len(cur))
	for e, values := range cur {
		for i, data := range values {
			if data != nil {
				diff.set(e, r.components[i].Name, Put(bytes.Clone(data)))
			}
		}
	}
	r.lastSent = cur
	r.logDifference("replicator: full data", diff)
	return diff, nil
}

// CalculateDifference observes the store and compares it with the last
// sent observation. Components that are new or encode differently become
// puts; components that disappeared become tombstones. When nothing
// changed it returns ok == false and keeps the last sent observation.
func (r *Replicator) CalculateDifference() (diff Difference, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, err := r.read()
	if err != nil {
		return nil, false, err
	}

	diff = make(Difference)
	for e, values := range cur {
		prev := r.lastSent[e]
		for i, data := range values {
			if data == nil {
				continue
			}
			if prev == nil || prev[i] == nil || !bytes.Equal(prev[i], data) {
				diff.set(e, r.components[i].Name, Put(bytes.Clone(data)))
			}
		}
	}
	for e, prev := range r.lastSent {
		values := cur[e]
		for i, data := range prev {
			if data != nil && (values == nil || values[i] == nil) {
				diff.set(e, r.components[i].Name, Tombstone())
			}
		}
	}

	if len(diff) == 0 {
		return nil, false, nil
	}
	r.lastSent = cur
	r.logDifference("replicator: difference", diff)
	return diff, true, nil
}

type pendingChange struct {
	entity Entity
	name   string
	op     Op
	value  any
}

// ApplyDifference writes diff into dst. Every put is decoded before
// anything is written, so a malformed difference leaves dst untouched. When
// dst is a Batcher the writes happen in one batch. Applying the same
// difference again is a no-op.
func (r *Replicator) ApplyDifference(dst Writer, diff Difference) error {
	pending, err := r.decodeDifference(diff)
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "replicator: rejected difference", slog.Any("err", err))
		return err
	}

	apply := func(w Writer) error {
		for _, p := range pending {
			var err error
			if p.op == OpPut {
				err = w.Put(p.entity, p.name, p.value)
			} else {
				err = w.Delete(p.entity, p.name)
			}
			if err != nil {
				return fmt.Errorf("replicator: applying %s of %d: %w", p.name, p.entity, err)
			}
		}
		return nil
	}
	if b, ok := dst.(Batcher); ok {
		err = b.Batch(apply)
	} else {
		err = apply(dst)
	}
	if err != nil {
		r.logger.LogAttrs(context.Background(), slog.LevelError, "replicator: apply failed", slog.Any("err", err))
		return err
	}
	r.logDifference("replicator: applied", diff)
	return nil
}

// decodeDifference validates diff and returns its changes ordered by
// entity, then by component position.
func (r *Replicator) decodeDifference(diff Difference) ([]pendingChange, error) {
	var pending []pendingChange
	for _, e := range diff.Entities() {
		changes := diff[e]
		start := len(pending)
		for name, chg := range changes {
			comp := r.byName[name]
			if comp == nil {
				return nil, fmt.Errorf("replicator: %w: unknown component %q", squash.ErrInvalidSchema, name)
			}
			p := pendingChange{entity: e, name: name, op: chg.Op}
			switch chg.Op {
			case OpPut:
				v, err := decodeValue(comp.Codec, chg.Data)
				if err != nil {
					return nil, fmt.Errorf("replicator: decoding %s of %d: %w", name, e, err)
				}
				p.value = v
			case OpDelete:
			default:
				return nil, fmt.Errorf("replicator: %s of %d: %v", name, e, chg.Op)
			}
			pending = append(pending, p)
		}
		slices.SortFunc(pending[start:], func(a, b pendingChange) int {
			return r.index[a.name] - r.index[b.name]
		})
	}
	return pending, nil
}

// Checksum hashes the last sent observation. Two replicators whose stores
// have converged, and whose last call observed them, return equal sums.
func (r *Replicator) Checksum() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := xxhash.New()
	var buf [binary.MaxVarintLen64]byte
	entities := make([]Entity, 0, len(r.lastSent))
	for e := range r.lastSent {
		entities = append(entities, e)
	}
	slices.Sort(entities)
	for _, e := range entities {
		h.Write(binary.BigEndian.AppendUint64(buf[:0], uint64(e)))
		for i, data := range r.lastSent[e] {
			if data == nil {
				continue
			}
			h.Write(binary.AppendUvarint(buf[:0], uint64(i)))
			h.Write(binary.AppendUvarint(buf[:0], uint64(len(data))))
			h.Write(data)
		}
	}
	return h.Sum64()
}

func (r *Replicator) logDifference(msg string, diff Difference) {
	if !r.verbose {
		return
	}
	ctx := context.Background()
	puts, deletes := diff.Counts()
	r.logger.LogAttrs(ctx, slog.LevelDebug, msg, slog.Int("entities", len(diff)), slog.Int("puts", puts), slog.Int("deletes", deletes))
	for _, e := range diff.Entities() {
		for name, chg := range diff[e] {
			r.logger.LogAttrs(ctx, slog.LevelDebug, msg, slog.Uint64("entity", uint64(e)), slog.String("component", name), slog.String("op", chg.Op.String()), hexAttr("data", chg.Data))
		}
	}
}

func encodeValue(codec squash.AnyCodec, v any) ([]byte, error) {
	c := squash.NewCursor(64)
	if err := codec.SerAny(c, v); err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

func decodeValue(codec squash.AnyCodec, data []byte) (any, error) {
	c := squash.CursorFrom(data)
	v, err := codec.DesAny(c)
	if err != nil {
		return nil, err
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after %s value", squash.ErrTrailingData, c.Remaining(), codec.Kind())
	}
	return v, nil
}
