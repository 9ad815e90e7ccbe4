package squash

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrOutOfBounds is returned when a read runs past the available bytes.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrInvalidSchema reports a malformed codec composition, such as a
	// tuple nested inside another composite.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrUnsupportedType is returned by the table codec for values that have
	// no registry entry, and for unknown type tags on decode.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrValueTooLarge is returned when a decoded integer does not fit its
	// target width.
	ErrValueTooLarge = errors.New("value too large")

	// ErrDuplicateKey is returned when a decoded map repeats a key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTypeMismatch is returned when a type-erased codec receives a value
	// of the wrong Go type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrTrailingData is returned by Unmarshal when bytes remain after the
	// value has been decoded.
	ErrTrailingData = errors.New("trailing data")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// SchemaError is raised (as a panic value) by codec constructors that are
// given an invalid composition. Build turns it back into an error.
type SchemaError struct {
	Codec string
	Msg   string
}

func schemaErrf(codec string, format string, args ...any) *SchemaError {
	return &SchemaError{codec, fmt.Sprintf(format, args...)}
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidSchema
}

func (e *SchemaError) Error() string {
	return e.Codec + ": " + ErrInvalidSchema.Error() + ": " + e.Msg
}

type TypeError struct {
	Type reflect.Type
	Path []string
	Err  error
}

func typeErr(v any, err error) *TypeError {
	return &TypeError{Type: reflect.TypeOf(v), Err: err}
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

func (e *TypeError) Error() string {
	var buf strings.Builder
	if len(e.Path) > 0 {
		for i := len(e.Path) - 1; i >= 0; i-- {
			buf.WriteString(e.Path[i])
			if i > 0 {
				buf.WriteByte('.')
			}
		}
		buf.WriteString(": ")
	}
	buf.WriteString(e.Err.Error())
	buf.WriteString(": ")
	if e.Type == nil {
		buf.WriteString("<nil>")
	} else {
		buf.WriteString(e.Type.String())
	}
	return buf.String()
}

// withPath prefixes a field name onto TypeErrors bubbling out of records;
// other errors are wrapped with the field name as context.
func withPath(name string, err error) error {
	var te *TypeError
	if errors.As(err, &te) {
		te.Path = append(te.Path, name)
		return te
	}
	return fmt.Errorf("%s: %w", name, err)
}
