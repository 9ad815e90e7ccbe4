package squash

import (
	"reflect"
)

// Dynamic is the Size of codecs whose encoded width depends on the value.
const Dynamic = -1

type Kind int

const (
	KindUnknown Kind = iota
	KindBoolean
	KindUint
	KindInt
	KindFloat
	KindVLQ
	KindString
	KindBuffer
	KindOpt
	KindArray
	KindTuple
	KindRecord
	KindMap
	KindTable
	KindComposed
	KindExternal
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindBoolean:  "boolean",
	KindUint:     "uint",
	KindInt:      "int",
	KindFloat:    "number",
	KindVLQ:      "vlq",
	KindString:   "string",
	KindBuffer:   "buffer",
	KindOpt:      "opt",
	KindArray:    "array",
	KindTuple:    "tuple",
	KindRecord:   "record",
	KindMap:      "map",
	KindTable:    "table",
	KindComposed: "composed",
	KindExternal: "external",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Codec serializes values of type T to a Cursor and back. Codecs are
// immutable and safe to share between goroutines; the cursor is not.
type Codec[T any] interface {
	Ser(c *Cursor, v T) error
	Des(c *Cursor) (T, error)
	// Size returns the fixed encoded width in bytes, or Dynamic.
	Size() int
	Kind() Kind
}

// AnyCodec is the type-erased form of a Codec, used wherever the value
// type is only known at runtime: tuples, records and tables.
type AnyCodec interface {
	SerAny(c *Cursor, v any) error
	DesAny(c *Cursor) (any, error)
	Size() int
	Kind() Kind
}

// Erase returns the type-erased view of codec. SerAny accepts values of
// type T, and numeric values convertible to a numeric T.
func Erase[T any](codec Codec[T]) AnyCodec {
	if ac, ok := codec.(AnyCodec); ok {
		return ac
	}
	return erased[T]{codec}
}

type erased[T any] struct {
	c Codec[T]
}

func (e erased[T]) Size() int  { return e.c.Size() }
func (e erased[T]) Kind() Kind { return e.c.Kind() }

func (e erased[T]) SerAny(c *Cursor, v any) error {
	tv, ok := coerce[T](v, e.c.Kind() == KindOpt)
	if !ok {
		return typeErr(v, ErrTypeMismatch)
	}
	return e.c.Ser(c, tv)
}

func (e erased[T]) DesAny(c *Cursor) (any, error) {
	v, err := e.c.Des(c)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Unerase recovers a typed codec from an erased one produced by Erase.
func Unerase[T any](ac AnyCodec) (Codec[T], bool) {
	if e, ok := ac.(erased[T]); ok {
		return e.c, true
	}
	c, ok := ac.(Codec[T])
	return c, ok
}

func coerce[T any](v any, nilOK bool) (T, bool) {
	if tv, ok := v.(T); ok {
		return tv, true
	}
	var zero T
	if v == nil {
		return zero, nilOK
	}
	target := reflect.TypeOf(&zero).Elem()
	rv := reflect.ValueOf(v)
	if isNumericKind(rv.Kind()) && isNumericKind(target.Kind()) {
		return rv.Convert(target).Interface().(T), true
	}
	return zero, false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// Marshal encodes v into a freshly allocated byte slice.
func Marshal[T any](codec Codec[T], v T) ([]byte, error) {
	c := acquireCursor()
	defer releaseCursor(c)
	if err := codec.Ser(c, v); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.Bytes()...), nil
}

// Unmarshal decodes a single value that must occupy all of data.
func Unmarshal[T any](codec Codec[T], data []byte) (T, error) {
	c := CursorFrom(data)
	v, err := codec.Des(c)
	if err != nil {
		return v, err
	}
	if c.Remaining() != 0 {
		var zero T
		return zero, dataErrf(data, c.Pos(), ErrTrailingData, "%d bytes left after %s", c.Remaining(), codec.Kind())
	}
	return v, nil
}

// Build runs a schema constructor and converts a *SchemaError panic raised
// by any codec constructor into an error.
func Build[T any](fn func() T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SchemaError)
			if !ok {
				panic(r)
			}
			err = se
		}
	}()
	return fn(), nil
}

func optionalLength(codec string, length []int) int {
	switch len(length) {
	case 0:
		return Dynamic
	case 1:
		if length[0] < 0 {
			panic(schemaErrf(codec, "negative length %d", length[0]))
		}
		return length[0]
	default:
		panic(schemaErrf(codec, "at most one length allowed, got %d", len(length)))
	}
}

func forbidTuple(codec string, child interface{ Kind() Kind }) {
	if child == nil {
		panic(schemaErrf(codec, "nil child codec"))
	}
	if child.Kind() == KindTuple {
		panic(schemaErrf(codec, "tuples cannot be nested inside %s", codec))
	}
}
