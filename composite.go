package squash

import (
	"bytes"
	"fmt"
	"slices"
)

type optCodec[T any] struct {
	c Codec[T]
}

// Opt encodes an optional value as a presence byte followed by the value
// when present. A nil pointer is absent.
func Opt[T any](c Codec[T]) Codec[*T] {
	forbidTuple("opt", c)
	return optCodec[T]{c}
}

func (oc optCodec[T]) Size() int  { return Dynamic }
func (oc optCodec[T]) Kind() Kind { return KindOpt }

func (oc optCodec[T]) Ser(c *Cursor, v *T) error {
	if v == nil {
		c.next(1)[0] = 0
		return nil
	}
	c.next(1)[0] = 1
	return oc.c.Ser(c, *v)
}

func (oc optCodec[T]) Des(c *Cursor) (*T, error) {
	present, err := c.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := oc.c.Des(c)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type arrayCodec[T any] struct {
	c      Codec[T]
	length int
}

// Array encodes a slice. With a length, exactly that many elements are
// written (short slices padded with zero values, long ones truncated) and no
// count is stored. Without one, a vlq element count precedes the elements.
func Array[T any](c Codec[T], length ...int) Codec[[]T] {
	forbidTuple("array", c)
	return arrayCodec[T]{c, optionalLength("array", length)}
}

func (ac arrayCodec[T]) Kind() Kind { return KindArray }

func (ac arrayCodec[T]) Size() int {
	if ac.length == Dynamic || ac.c.Size() == Dynamic {
		return Dynamic
	}
	return ac.length * ac.c.Size()
}

func (ac arrayCodec[T]) Ser(c *Cursor, v []T) error {
	n := ac.length
	if n == Dynamic {
		n = len(v)
		if ac.c.Size() == 0 && n > MaxZeroWidthItems {
			return fmt.Errorf("array of %d zero-width items exceeds %d: %w", n, MaxZeroWidthItems, ErrValueTooLarge)
		}
		writeVLQ(c, uint64(n))
	}
	var zero T
	for i := 0; i < n; i++ {
		item := zero
		if i < len(v) {
			item = v[i]
		}
		if err := ac.c.Ser(c, item); err != nil {
			return withPath(fmt.Sprintf("[%d]", i), err)
		}
	}
	return nil
}

func (ac arrayCodec[T]) Des(c *Cursor) ([]T, error) {
	n := ac.length
	if n == Dynamic {
		var err error
		n, err = readCount(c, minSize(ac.c.Size()))
		if err != nil {
			return nil, err
		}
	}
	result := make([]T, n)
	for i := range result {
		v, err := ac.c.Des(c)
		if err != nil {
			return nil, withPath(fmt.Sprintf("[%d]", i), err)
		}
		result[i] = v
	}
	return result, nil
}

type tupleCodec struct {
	items []AnyCodec
}

// Tuple encodes a fixed number of heterogeneous values in declared order.
// The arity is part of the schema and is not stored. Tuples cannot be
// nested in other composites, including other tuples.
func Tuple(items ...AnyCodec) Codec[[]any] {
	for _, item := range items {
		forbidTuple("tuple", item)
	}
	return tupleCodec{slices.Clone(items)}
}

func (tc tupleCodec) Kind() Kind { return KindTuple }

func (tc tupleCodec) Size() int {
	var total int
	for _, item := range tc.items {
		if item.Size() == Dynamic {
			return Dynamic
		}
		total += item.Size()
	}
	return total
}

func (tc tupleCodec) Ser(c *Cursor, v []any) error {
	if len(v) != len(tc.items) {
		return fmt.Errorf("tuple: got %d values, schema has %d: %w", len(v), len(tc.items), ErrInvalidSchema)
	}
	for i, item := range tc.items {
		if err := item.SerAny(c, v[i]); err != nil {
			return withPath(fmt.Sprintf("[%d]", i), err)
		}
	}
	return nil
}

func (tc tupleCodec) Des(c *Cursor) ([]any, error) {
	result := make([]any, len(tc.items))
	for i, item := range tc.items {
		v, err := item.DesAny(c)
		if err != nil {
			return nil, withPath(fmt.Sprintf("[%d]", i), err)
		}
		result[i] = v
	}
	return result, nil
}

func (tc tupleCodec) SerAny(c *Cursor, v any) error {
	tv, ok := v.([]any)
	if !ok {
		return typeErr(v, ErrTypeMismatch)
	}
	return tc.Ser(c, tv)
}

func (tc tupleCodec) DesAny(c *Cursor) (any, error) {
	return tc.Des(c)
}

// FieldDef is one named field of a Record schema.
type FieldDef struct {
	Name  string
	Codec AnyCodec
}

// Field declares a record field.
func Field[T any](name string, c Codec[T]) FieldDef {
	return FieldDef{name, Erase(c)}
}

type recordCodec struct {
	fields []FieldDef
}

// Record encodes a map[string]any with a fixed set of named fields. Fields
// are written in declaration order and their names are not serialized.
// Keys not in the schema are ignored when encoding; a missing field is only
// allowed for Opt fields.
func Record(fields ...FieldDef) Codec[map[string]any] {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		forbidTuple("record", f.Codec)
		if seen[f.Name] {
			panic(schemaErrf("record", "duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}
	return recordCodec{slices.Clone(fields)}
}

func (rc recordCodec) Kind() Kind { return KindRecord }

func (rc recordCodec) Size() int {
	var total int
	for _, f := range rc.fields {
		if f.Codec.Size() == Dynamic {
			return Dynamic
		}
		total += f.Codec.Size()
	}
	return total
}

func (rc recordCodec) Fields() []FieldDef {
	return slices.Clone(rc.fields)
}

func (rc recordCodec) Ser(c *Cursor, v map[string]any) error {
	for _, f := range rc.fields {
		if err := f.Codec.SerAny(c, v[f.Name]); err != nil {
			return withPath(f.Name, err)
		}
	}
	return nil
}

func (rc recordCodec) Des(c *Cursor) (map[string]any, error) {
	result := make(map[string]any, len(rc.fields))
	for _, f := range rc.fields {
		v, err := f.Codec.DesAny(c)
		if err != nil {
			return nil, withPath(f.Name, err)
		}
		result[f.Name] = v
	}
	return result, nil
}

func (rc recordCodec) SerAny(c *Cursor, v any) error {
	tv, ok := v.(map[string]any)
	if !ok {
		return typeErr(v, ErrTypeMismatch)
	}
	return rc.Ser(c, tv)
}

func (rc recordCodec) DesAny(c *Cursor) (any, error) {
	return rc.Des(c)
}

type mapCodec[K comparable, V any] struct {
	k Codec[K]
	v Codec[V]
}

// Map encodes a map as a vlq entry count followed by key/value pairs.
// Pairs are ordered by their encoded key bytes, so equal maps always encode
// to equal bytes. Decoding rejects repeated keys with ErrDuplicateKey.
func Map[K comparable, V any](key Codec[K], value Codec[V]) Codec[map[K]V] {
	forbidTuple("map", key)
	forbidTuple("map", value)
	return mapCodec[K, V]{key, value}
}

func (mc mapCodec[K, V]) Size() int  { return Dynamic }
func (mc mapCodec[K, V]) Kind() Kind { return KindMap }

type encodedKey[K any] struct {
	start, end int
	key        K
}

func (mc mapCodec[K, V]) Ser(c *Cursor, v map[K]V) error {
	tmp := acquireCursor()
	defer releaseCursor(tmp)

	keys := make([]encodedKey[K], 0, len(v))
	for k := range v {
		start := tmp.Pos()
		if err := mc.k.Ser(tmp, k); err != nil {
			return withPath("key", err)
		}
		keys = append(keys, encodedKey[K]{start, tmp.Pos(), k})
	}
	raw := tmp.Bytes()
	slices.SortFunc(keys, func(a, b encodedKey[K]) int {
		return bytes.Compare(raw[a.start:a.end], raw[b.start:b.end])
	})

	writeVLQ(c, uint64(len(keys)))
	for _, ek := range keys {
		c.Write(raw[ek.start:ek.end])
		if err := mc.v.Ser(c, v[ek.key]); err != nil {
			return withPath(fmt.Sprintf("%v", ek.key), err)
		}
	}
	return nil
}

func (mc mapCodec[K, V]) Des(c *Cursor) (map[K]V, error) {
	n, err := readCount(c, minSize(mc.k.Size())+minSize(mc.v.Size()))
	if err != nil {
		return nil, err
	}
	result := make(map[K]V, n)
	for i := 0; i < n; i++ {
		start := c.Pos()
		k, err := mc.k.Des(c)
		if err != nil {
			return nil, withPath("key", err)
		}
		if _, dup := result[k]; dup {
			return nil, dataErrf(c.Bytes(), start, ErrDuplicateKey, "map key %v repeated", k)
		}
		v, err := mc.v.Des(c)
		if err != nil {
			return nil, withPath(fmt.Sprintf("%v", k), err)
		}
		result[k] = v
	}
	return result, nil
}
