package squash

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
)

// Table is a schema-less key/value collection. Keys and values may be any
// shape registered in the table codec's Registry.
type Table map[any]any

// TypeOverride replaces the codec a table uses for one registered type.
type TypeOverride struct {
	Name  string
	Codec AnyCodec
}

// Override makes a table encode values of the named registry type with c.
// The codec's value type must be the registered Go type, or both must be
// numeric, in which case values are converted on the way in and out.
func Override[T any](name string, c Codec[T]) TypeOverride {
	return TypeOverride{name, Erase(c)}
}

type tableCodec struct {
	reg    *Registry
	codecs []AnyCodec // by tag-1
	types  []reflect.Type
}

// DynamicTable is TableOf(Types).
func DynamicTable() Codec[Table] {
	return TableOf(Types)
}

// TableOf returns the self-describing table codec. It writes a vlq entry
// count followed by (key tag, key, value tag, value) for every entry, where
// tags come from reg. Entries are ordered by their encoded keys so equal
// tables encode to equal bytes. Values whose type is not in reg fail with
// ErrUnsupportedType.
func TableOf(reg *Registry, overrides ...TypeOverride) Codec[Table] {
	if reg == nil {
		panic(schemaErrf("table", "nil registry"))
	}
	tc := &tableCodec{
		reg:    reg,
		codecs: make([]AnyCodec, reg.Len()),
		types:  make([]reflect.Type, reg.Len()),
	}
	for i, e := range reg.entries {
		tc.codecs[i] = e.Codec
		tc.types[i] = e.Type
	}
	for _, o := range overrides {
		e := reg.EntryByName(o.Name)
		if e == nil {
			panic(schemaErrf("table", "override for unknown type %q", o.Name))
		}
		if e.Type == nil {
			panic(schemaErrf("table", "type %q has no runtime shape to override", o.Name))
		}
		forbidTuple("table", o.Codec)
		tc.codecs[e.Tag-1] = o.Codec
	}
	return tc
}

func (tc *tableCodec) Size() int  { return Dynamic }
func (tc *tableCodec) Kind() Kind { return KindTable }

func (tc *tableCodec) Registry() *Registry {
	return tc.reg
}

type tableEntry struct {
	start, end int
	value      any
}

func (tc *tableCodec) Ser(c *Cursor, t Table) error {
	tmp := acquireCursor()
	defer releaseCursor(tmp)

	entries := make([]tableEntry, 0, len(t))
	for k, v := range t {
		start := tmp.Pos()
		if err := tc.serTagged(tmp, k); err != nil {
			return withPath("key", err)
		}
		entries = append(entries, tableEntry{start, tmp.Pos(), v})
	}
	raw := tmp.Bytes()
	slices.SortFunc(entries, func(a, b tableEntry) int {
		return bytes.Compare(raw[a.start:a.end], raw[b.start:b.end])
	})

	writeVLQ(c, uint64(len(entries)))
	for _, ent := range entries {
		c.Write(raw[ent.start:ent.end])
		if err := tc.serTagged(c, ent.value); err != nil {
			return withPath(fmt.Sprintf("%x", raw[ent.start:ent.end]), err)
		}
	}
	return nil
}

func (tc *tableCodec) serTagged(c *Cursor, v any) error {
	v = normalizeDynamic(v)
	e, err := tc.reg.Lookup(v)
	if err != nil {
		return err
	}
	writeVLQ(c, uint64(e.Tag))
	if codec := tc.codecs[e.Tag-1]; codec != nil {
		return codec.SerAny(c, v)
	}
	switch v := v.(type) {
	case []any:
		writeVLQ(c, uint64(len(v)))
		for i, item := range v {
			if err := tc.serTagged(c, item); err != nil {
				return withPath(fmt.Sprintf("[%d]", i), err)
			}
		}
		return nil
	case Table:
		return tc.Ser(c, v)
	default:
		return typeErr(v, ErrUnsupportedType)
	}
}

func (tc *tableCodec) Des(c *Cursor) (Table, error) {
	// each entry carries at least two tags
	n, err := readCount(c, 2)
	if err != nil {
		return nil, err
	}
	t := make(Table, n)
	for i := 0; i < n; i++ {
		start := c.Pos()
		k, err := tc.desTagged(c)
		if err != nil {
			return nil, withPath("key", err)
		}
		if k == nil || !reflect.TypeOf(k).Comparable() {
			return nil, dataErrf(c.Bytes(), start, ErrUnsupportedType, "table key of type %T cannot be a map key", k)
		}
		if _, dup := t[k]; dup {
			return nil, dataErrf(c.Bytes(), start, ErrDuplicateKey, "table key %v repeated", k)
		}
		v, err := tc.desTagged(c)
		if err != nil {
			return nil, withPath(fmt.Sprintf("%v", k), err)
		}
		t[k] = v
	}
	return t, nil
}

func (tc *tableCodec) desTagged(c *Cursor) (any, error) {
	start := c.Pos()
	tag, err := readVLQ(c)
	if err != nil {
		return nil, err
	}
	if tag == 0 || tag > uint64(len(tc.codecs)) || tc.types[tag-1] == nil {
		return nil, dataErrf(c.Bytes(), start, ErrUnsupportedType, "unknown type tag %d", tag)
	}
	if codec := tc.codecs[tag-1]; codec != nil {
		v, err := codec.DesAny(c)
		if err != nil {
			return nil, err
		}
		return conformType(v, tc.types[tag-1]), nil
	}
	switch tc.types[tag-1] {
	case reflect.TypeFor[[]any]():
		n, err := readCount(c, 1)
		if err != nil {
			return nil, err
		}
		arr := make([]any, n)
		for i := range arr {
			arr[i], err = tc.desTagged(c)
			if err != nil {
				return nil, withPath(fmt.Sprintf("[%d]", i), err)
			}
		}
		return arr, nil
	case reflect.TypeFor[Table]():
		return tc.Des(c)
	default:
		return nil, dataErrf(c.Bytes(), start, ErrUnsupportedType, "type tag %d has no codec", tag)
	}
}

func (tc *tableCodec) SerAny(c *Cursor, v any) error {
	t, ok := v.(Table)
	if !ok {
		return typeErr(v, ErrTypeMismatch)
	}
	return tc.Ser(c, t)
}

func (tc *tableCodec) DesAny(c *Cursor) (any, error) {
	return tc.Des(c)
}

// normalizeDynamic maps Go's sized numeric types onto the registered
// int64, uint64 and float64 shapes.
func normalizeDynamic(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case float32:
		return float64(v)
	case map[any]any:
		return Table(v)
	default:
		return v
	}
}

// conformType converts a numeric value produced by an overriding codec back
// to the registered Go type.
func conformType(v any, typ reflect.Type) any {
	if v == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == typ {
		return v
	}
	if isNumericKind(rv.Kind()) && isNumericKind(typ.Kind()) {
		return rv.Convert(typ).Interface()
	}
	return v
}

type valueCodec struct {
	tc *tableCodec
}

// DynamicValue encodes a single value of any shape registered in reg as its
// vlq type tag followed by the value, exactly like one table value.
// Overrides work as in TableOf.
func DynamicValue(reg *Registry, overrides ...TypeOverride) Codec[any] {
	return valueCodec{TableOf(reg, overrides...).(*tableCodec)}
}

func (vc valueCodec) Size() int  { return Dynamic }
func (vc valueCodec) Kind() Kind { return KindTable }

func (vc valueCodec) Ser(c *Cursor, v any) error {
	return vc.tc.serTagged(c, v)
}

func (vc valueCodec) Des(c *Cursor) (any, error) {
	return vc.tc.desTagged(c)
}
