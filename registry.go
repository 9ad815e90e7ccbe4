package squash

import (
	"fmt"
	"reflect"
	"slices"
	"time"
)

// TypeTag is the numeric id a Registry assigns to a type name. Tags start
// at 1 and follow registration order.
type TypeTag uint16

// TypeDef describes one registry entry before the registry is built.
type TypeDef struct {
	Name string
	// Type is the Go type of runtime values of this shape, or nil for
	// constructors that cannot appear as dynamic values.
	Type reflect.Type
	// Codec is the default codec used inside tables. Nil with a non-nil
	// Type means the table codec encodes the shape itself (array, table).
	Codec AnyCodec
}

// Def declares a registry entry whose runtime values have type T.
func Def[T any](name string, c Codec[T]) TypeDef {
	var codec AnyCodec
	if c != nil {
		codec = Erase(c)
	}
	return TypeDef{Name: name, Type: reflect.TypeFor[T](), Codec: codec}
}

// Constructor declares a registry entry that has an id but no dynamic
// runtime shape.
func Constructor(name string) TypeDef {
	return TypeDef{Name: name}
}

type TypeEntry struct {
	Tag   TypeTag
	Name  string
	Type  reflect.Type
	Codec AnyCodec
}

// Registry is an immutable bidirectional mapping between type tags and type
// names, plus the Go type and default codec of every dynamic shape. Build
// it once and share it; it needs no locking.
type Registry struct {
	entries []*TypeEntry
	byName  map[string]*TypeEntry
	byType  map[reflect.Type]*TypeEntry
}

// NewRegistry assigns tags 1, 2, 3, ... to defs in order.
func NewRegistry(defs ...TypeDef) (*Registry, error) {
	reg := &Registry{
		byName: make(map[string]*TypeEntry, len(defs)),
		byType: make(map[reflect.Type]*TypeEntry, len(defs)),
	}
	for i, def := range defs {
		if def.Name == "" {
			return nil, schemaErrf("registry", "entry %d has no name", i+1)
		}
		if i+1 > int(^TypeTag(0)) {
			return nil, schemaErrf("registry", "too many entries")
		}
		if reg.byName[def.Name] != nil {
			return nil, schemaErrf("registry", "duplicate type name %q", def.Name)
		}
		if def.Codec != nil && def.Type == nil {
			return nil, schemaErrf("registry", "type %q has a codec but no Go type", def.Name)
		}
		if def.Codec != nil {
			forbidTuple("registry", def.Codec)
		}
		e := &TypeEntry{
			Tag:   TypeTag(i + 1),
			Name:  def.Name,
			Type:  def.Type,
			Codec: def.Codec,
		}
		if def.Type != nil {
			if prev := reg.byType[def.Type]; prev != nil {
				return nil, schemaErrf("registry", "types %q and %q share Go type %v", prev.Name, def.Name, def.Type)
			}
			reg.byType[def.Type] = e
		}
		reg.entries = append(reg.entries, e)
		reg.byName[def.Name] = e
	}
	return reg, nil
}

func MustRegistry(defs ...TypeDef) *Registry {
	reg, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return reg
}

func (reg *Registry) Len() int {
	return len(reg.entries)
}

func (reg *Registry) ID(name string) (TypeTag, bool) {
	if e := reg.byName[name]; e != nil {
		return e.Tag, true
	}
	return 0, false
}

func (reg *Registry) Name(tag TypeTag) (string, bool) {
	if e := reg.Entry(tag); e != nil {
		return e.Name, true
	}
	return "", false
}

// Entry returns the entry for tag, or nil.
func (reg *Registry) Entry(tag TypeTag) *TypeEntry {
	if tag == 0 || int(tag) > len(reg.entries) {
		return nil
	}
	return reg.entries[tag-1]
}

func (reg *Registry) EntryByName(name string) *TypeEntry {
	return reg.byName[name]
}

// Lookup finds the entry matching the Go type of v. Values of other types
// fail with ErrUnsupportedType.
func (reg *Registry) Lookup(v any) (*TypeEntry, error) {
	if e := reg.byType[reflect.TypeOf(v)]; e != nil {
		return e, nil
	}
	return nil, typeErr(v, ErrUnsupportedType)
}

// Names lists type names in tag order.
func (reg *Registry) Names() []string {
	names := make([]string, len(reg.entries))
	for i, e := range reg.entries {
		names[i] = e.Name
	}
	return names
}

func (reg *Registry) String() string {
	return fmt.Sprintf("Registry%v", reg.Names())
}

// Types is the process-wide registry of built-in shapes. Peers exchanging
// table-encoded data must use the same registry.
var Types = MustRegistry(builtinTypes()...)

func builtinTypes() []TypeDef {
	num := Number()
	return slices.Clip([]TypeDef{
		Def("boolean", Boolean()),
		Def("number", Float(8)),
		Def("int", Int(8)),
		Def("uint", VLQ()),
		Constructor("vlq"),
		Def("string", String()),
		Def("buffer", Buffer()),
		Constructor("opt"),
		Def[[]any]("array", nil),
		Constructor("tuple"),
		Constructor("record"),
		Constructor("map"),
		Def[Table]("table", nil),
		Def("Vector2", Vector2Codec(num)),
		Def("Vector3", Vector3Codec(num)),
		Def("Vector2int16", Vector2int16Codec()),
		Def("Vector3int16", Vector3int16Codec()),
		Def("Color3", Color3Codec()),
		Def("UDim", UDimCodec(num)),
		Def("UDim2", UDim2Codec(num)),
		Def("Rect", RectCodec(num)),
		Def("NumberRange", NumberRangeCodec(num)),
		Def("CFrame", CFrameCodec(num)),
		Def[time.Time]("DateTime", DateTimeCodec()),
		Def("Ray", RayCodec(num)),
		Def("Region3", Region3Codec(num)),
		Def("Region3int16", Region3int16Codec()),
		Def("NumberSequenceKeypoint", NumberSequenceKeypointCodec(num)),
		Def("NumberSequence", NumberSequenceCodec(num)),
		Def("ColorSequenceKeypoint", ColorSequenceKeypointCodec()),
		Def("ColorSequence", ColorSequenceCodec()),
		Def("Axes", AxesCodec()),
		Def("Faces", FacesCodec()),
		Def("PathWaypoint", PathWaypointCodec(num)),
	})
}
