package replicator

import (
	"fmt"

	"github.com/andreyvit/squash"
	"github.com/andreyvit/squash/events"
)

// Reliability is the delivery class a payload should be sent with. The
// replicator does not send anything itself; transports use this to pick a
// channel. Differences are usually sent Reliable, since a lost difference
// is only repaired by the next FullData.
type Reliability = events.Reliability

const (
	Reliable   = events.Reliable
	Unreliable = events.Unreliable
)

// WireVersion is the first vlq of every encoded difference.
const WireVersion = 1

// wireChanges maps component positions to an optional encoded value; an
// absent value is a tombstone.
type wireChanges = map[uint64]*[]byte

var (
	versionCodec = squash.VLQ()
	diffCodec    = squash.Map(squash.VLQ(), squash.Map(squash.VLQ(), squash.Opt(squash.Buffer())))
)

// Encode serializes diff as a vlq format version followed by a map from
// entity id to a map from component position to an optional value. Map
// entries are sorted by their encoded keys, so equal differences encode to
// equal bytes.
func (r *Replicator) Encode(diff Difference) ([]byte, error) {
	wire := make(map[uint64]wireChanges, len(diff))
	for e, changes := range diff {
		wc := make(wireChanges, len(changes))
		for name, chg := range changes {
			i, ok := r.index[name]
			if !ok {
				return nil, fmt.Errorf("replicator: %w: unknown component %q", squash.ErrInvalidSchema, name)
			}
			switch chg.Op {
			case OpPut:
				data := chg.Data
				wc[uint64(i)] = &data
			case OpDelete:
				wc[uint64(i)] = nil
			default:
				return nil, fmt.Errorf("replicator: %s of %d: %v", name, e, chg.Op)
			}
		}
		wire[uint64(e)] = wc
	}

	c := squash.NewCursor(256)
	if err := versionCodec.Ser(c, WireVersion); err != nil {
		return nil, err
	}
	if err := diffCodec.Ser(c, wire); err != nil {
		return nil, fmt.Errorf("replicator: encoding difference: %w", err)
	}
	return c.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func (r *Replicator) Decode(data []byte) (Difference, error) {
	c := squash.CursorFrom(data)
	version, err := versionCodec.Des(c)
	if err != nil {
		return nil, fmt.Errorf("replicator: decoding difference: %w", err)
	}
	if version != WireVersion {
		return nil, fmt.Errorf("replicator: %w: unsupported wire version %d", squash.ErrInvalidSchema, version)
	}
	wire, err := diffCodec.Des(c)
	if err != nil {
		return nil, fmt.Errorf("replicator: decoding difference: %w", err)
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("replicator: decoding difference: %w: %d bytes", squash.ErrTrailingData, c.Remaining())
	}

	diff := make(Difference, len(wire))
	for e, wc := range wire {
		for i, data := range wc {
			if i >= uint64(len(r.components)) {
				return nil, fmt.Errorf("replicator: %w: component position %d out of range", squash.ErrInvalidSchema, i)
			}
			name := r.components[i].Name
			if data == nil {
				diff.set(Entity(e), name, Tombstone())
			} else {
				diff.set(Entity(e), name, Put(*data))
			}
		}
	}
	return diff, nil
}

// ApplyPayload decodes an encoded difference and applies it to dst.
func (r *Replicator) ApplyPayload(dst Writer, data []byte) error {
	diff, err := r.Decode(data)
	if err != nil {
		return err
	}
	return r.ApplyDifference(dst, diff)
}
