// Package events frames application events for an opaque transport.
//
// Events live in a Catalog. Defined events belong to a Namespace and carry
// a static squash codec; undefined events are ad-hoc, live in the root
// namespace and encode their values dynamically with registry type tags.
// Every event gets a numeric id in definition order, so peers must define
// the same events in the same order, just like a squash.Registry.
//
// A packet is the event id as a vlq followed by the encoded value. Values
// are self-delimiting, so a frame is simply packets written back to back.
package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/andreyvit/squash"
)

var (
	// ErrUnknownEvent is returned when a packet names an event id the
	// catalog does not know.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrEventMismatch is returned when a packet decoded through one event
	// belongs to another.
	ErrEventMismatch = errors.New("event mismatch")
)

var idCodec = squash.VLQ()

// Reliability is the delivery class an event is sent with. Framing does
// not depend on it; transports use it to pick a channel.
type Reliability int

const (
	Reliable Reliability = iota
	Unreliable
)

func (r Reliability) String() string {
	switch r {
	case Reliable:
		return "reliable"
	case Unreliable:
		return "unreliable"
	default:
		return fmt.Sprintf("invalid reliability %d", int(r))
	}
}

// ParseReliability accepts "reliable" and "unreliable".
func ParseReliability(s string) (Reliability, error) {
	switch s {
	case "reliable":
		return Reliable, nil
	case "unreliable":
		return Unreliable, nil
	default:
		return 0, fmt.Errorf("invalid reliability %q", s)
	}
}

// Info describes a defined or undefined event.
type Info struct {
	ID          uint64
	Namespace   string // empty for undefined events
	Name        string
	Reliability Reliability
	Dynamic     bool
}

// FullName is "namespace.name", or just the name for undefined events.
func (info Info) FullName() string {
	if info.Namespace == "" {
		return info.Name
	}
	return info.Namespace + "." + info.Name
}

func (info Info) String() string {
	return fmt.Sprintf("%s#%d(%v)", info.FullName(), info.ID, info.Reliability)
}

type entry struct {
	info  Info
	codec squash.AnyCodec
}

// Catalog assigns ids to events and decodes packets. It is safe for
// concurrent use; events are normally all defined during startup.
type Catalog struct {
	reg *squash.Registry

	mu         sync.RWMutex
	entries    []*entry
	byName     map[string]*entry
	namespaces map[string]*Namespace
}

// NewCatalog returns an empty catalog whose undefined events encode values
// with reg (squash.Types when nil).
func NewCatalog(reg *squash.Registry) *Catalog {
	if reg == nil {
		reg = squash.Types
	}
	return &Catalog{
		reg:        reg,
		byName:     make(map[string]*entry),
		namespaces: make(map[string]*Namespace),
	}
}

func (cat *Catalog) add(info Info, codec squash.AnyCodec) (*entry, error) {
	if info.Name == "" || strings.Contains(info.Name, ".") {
		return nil, fmt.Errorf("%w: invalid event name %q", squash.ErrInvalidSchema, info.Name)
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: event %q has no codec", squash.ErrInvalidSchema, info.FullName())
	}
	if info.Reliability != Reliable && info.Reliability != Unreliable {
		return nil, fmt.Errorf("%w: event %q: %v", squash.ErrInvalidSchema, info.FullName(), info.Reliability)
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()
	key := info.FullName()
	if cat.byName[key] != nil {
		return nil, fmt.Errorf("%w: event %q already defined", squash.ErrInvalidSchema, key)
	}
	info.ID = uint64(len(cat.entries) + 1)
	e := &entry{info, codec}
	cat.entries = append(cat.entries, e)
	cat.byName[key] = e
	return e, nil
}

func (cat *Catalog) entry(id uint64) *entry {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	if id == 0 || id > uint64(len(cat.entries)) {
		return nil
	}
	return cat.entries[id-1]
}

// Lookup finds an event by its full name.
func (cat *Catalog) Lookup(fullName string) (Info, bool) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	if e := cat.byName[fullName]; e != nil {
		return e.info, true
	}
	return Info{}, false
}

// Events lists every event in id order.
func (cat *Catalog) Events() []Info {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	infos := make([]Info, len(cat.entries))
	for i, e := range cat.entries {
		infos[i] = e.info
	}
	return infos
}

// Namespace scopes defined events; two namespaces may both have an event
// with the same name.
type Namespace struct {
	cat  *Catalog
	name string
}

// DefineNamespace creates a namespace. Names must be unique and may not
// contain dots.
func (cat *Catalog) DefineNamespace(name string) (*Namespace, error) {
	if name == "" || strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: invalid namespace name %q", squash.ErrInvalidSchema, name)
	}
	cat.mu.Lock()
	defer cat.mu.Unlock()
	if cat.namespaces[name] != nil {
		return nil, fmt.Errorf("%w: namespace %q already defined", squash.ErrInvalidSchema, name)
	}
	ns := &Namespace{cat, name}
	cat.namespaces[name] = ns
	return ns, nil
}

func (ns *Namespace) Name() string {
	return ns.name
}

// Event is a typed handle used to encode and decode packets of one event.
type Event[T any] struct {
	cat   *Catalog
	info  Info
	codec squash.Codec[T]
}

// Define adds an event with a static codec to ns.
func Define[T any](ns *Namespace, name string, codec squash.Codec[T], rel Reliability) (*Event[T], error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: event %q has no codec", squash.ErrInvalidSchema, name)
	}
	e, err := ns.cat.add(Info{Namespace: ns.name, Name: name, Reliability: rel}, squash.Erase(codec))
	if err != nil {
		return nil, err
	}
	return &Event[T]{ns.cat, e.info, codec}, nil
}

// Undefined adds an ad-hoc event whose values are encoded with their
// registry type tag. Values must have a shape registered in the catalog's
// registry.
func Undefined(cat *Catalog, name string, rel Reliability) (*Event[any], error) {
	codec := squash.DynamicValue(cat.reg)
	e, err := cat.add(Info{Name: name, Reliability: rel, Dynamic: true}, squash.Erase(codec))
	if err != nil {
		return nil, err
	}
	return &Event[any]{cat, e.info, codec}, nil
}

func (ev *Event[T]) Info() Info {
	return ev.info
}

// Append writes one packet for v to c.
func (ev *Event[T]) Append(c *squash.Cursor, v T) error {
	if err := idCodec.Ser(c, ev.info.ID); err != nil {
		return err
	}
	if err := ev.codec.Ser(c, v); err != nil {
		return fmt.Errorf("events: encoding %s: %w", ev.info.FullName(), err)
	}
	return nil
}

// Encode returns a single packet for v.
func (ev *Event[T]) Encode(v T) ([]byte, error) {
	c := squash.NewCursor(32)
	if err := ev.Append(c, v); err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// Decode parses a single packet of this event.
func (ev *Event[T]) Decode(data []byte) (T, error) {
	var zero T
	c := squash.CursorFrom(data)
	id, err := idCodec.Des(c)
	if err != nil {
		return zero, fmt.Errorf("events: decoding event id: %w", err)
	}
	if id != ev.info.ID {
		return zero, fmt.Errorf("events: %w: packet is for event %d, not %v", ErrEventMismatch, id, ev.info)
	}
	v, err := ev.codec.Des(c)
	if err != nil {
		return zero, fmt.Errorf("events: decoding %s: %w", ev.info.FullName(), err)
	}
	if c.Remaining() != 0 {
		return zero, fmt.Errorf("events: decoding %s: %w: %d bytes", ev.info.FullName(), squash.ErrTrailingData, c.Remaining())
	}
	return v, nil
}

// Packet is one decoded event occurrence.
type Packet struct {
	Event Info
	Value any
}

// DecodeFrame parses every packet in data. Decoding stops at the first
// malformed packet, since packet boundaries after it are unknown.
func (cat *Catalog) DecodeFrame(data []byte) ([]Packet, error) {
	var packets []Packet
	c := squash.CursorFrom(data)
	for c.Remaining() > 0 {
		start := c.Pos()
		id, err := idCodec.Des(c)
		if err != nil {
			return nil, fmt.Errorf("events: packet at %d: %w", start, err)
		}
		e := cat.entry(id)
		if e == nil {
			return nil, fmt.Errorf("events: packet at %d: %w %d", start, ErrUnknownEvent, id)
		}
		v, err := e.codec.DesAny(c)
		if err != nil {
			return nil, fmt.Errorf("events: packet at %d: decoding %s: %w", start, e.info.FullName(), err)
		}
		packets = append(packets, Packet{e.info, v})
	}
	return packets, nil
}
