package squash

import (
	"math"

	"golang.org/x/exp/constraints"
)

type boolCodec struct{}

// Boolean encodes a bool as a single byte: 0x01 or 0x00. Any nonzero byte
// decodes as true.
func Boolean() Codec[bool] {
	return boolCodec{}
}

func (boolCodec) Size() int  { return 1 }
func (boolCodec) Kind() Kind { return KindBoolean }

func (boolCodec) Ser(c *Cursor, v bool) error {
	if v {
		c.next(1)[0] = 1
	} else {
		c.next(1)[0] = 0
	}
	return nil
}

func (boolCodec) Des(c *Cursor) (bool, error) {
	b, err := c.ReadByte()
	return b != 0, err
}

type uintCodec[T constraints.Unsigned] struct {
	n int
}

// Uint encodes an unsigned integer little-endian in exactly bytes bytes
// (1 to 8). Values that do not fit wrap around modulo 2^(8*bytes).
func Uint(bytes int) Codec[uint64] {
	return UintOf[uint64](bytes)
}

// UintOf is Uint for any unsigned integer type. Decoding fails with
// ErrValueTooLarge when the stored value does not fit T.
func UintOf[T constraints.Unsigned](bytes int) Codec[T] {
	checkIntWidth("uint", bytes)
	return uintCodec[T]{bytes}
}

func checkIntWidth(codec string, bytes int) {
	if bytes < 1 || bytes > 8 {
		panic(schemaErrf(codec, "byte width must be 1..8, got %d", bytes))
	}
}

func (u uintCodec[T]) Size() int  { return u.n }
func (u uintCodec[T]) Kind() Kind { return KindUint }

func (u uintCodec[T]) Ser(c *Cursor, v T) error {
	putUintLE(c.next(u.n), uint64(v))
	return nil
}

func (u uintCodec[T]) Des(c *Cursor) (T, error) {
	start := c.Pos()
	b, err := c.Read(u.n)
	if err != nil {
		return 0, err
	}
	x := uintLE(b)
	if uint64(T(x)) != x {
		return 0, dataErrf(c.Bytes(), start, ErrValueTooLarge, "uint(%d) value %d does not fit target type", u.n, x)
	}
	return T(x), nil
}

type intCodec[T constraints.Signed] struct {
	n int
}

// Int encodes a signed integer as little-endian two's complement in exactly
// bytes bytes (1 to 8), truncating values outside the range.
func Int(bytes int) Codec[int64] {
	return IntOf[int64](bytes)
}

// IntOf is Int for any signed integer type.
func IntOf[T constraints.Signed](bytes int) Codec[T] {
	checkIntWidth("int", bytes)
	return intCodec[T]{bytes}
}

func (ic intCodec[T]) Size() int  { return ic.n }
func (ic intCodec[T]) Kind() Kind { return KindInt }

func (ic intCodec[T]) Ser(c *Cursor, v T) error {
	putUintLE(c.next(ic.n), uint64(int64(v)))
	return nil
}

func (ic intCodec[T]) Des(c *Cursor) (T, error) {
	start := c.Pos()
	b, err := c.Read(ic.n)
	if err != nil {
		return 0, err
	}
	shift := 64 - 8*ic.n
	x := int64(uintLE(b)<<shift) >> shift
	if int64(T(x)) != x {
		return 0, dataErrf(c.Bytes(), start, ErrValueTooLarge, "int(%d) value %d does not fit target type", ic.n, x)
	}
	return T(x), nil
}

func putUintLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}

func uintLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

type floatCodec struct {
	n int
}

// Float encodes an IEEE-754 number in 4 (single) or 8 (double) bytes,
// little-endian.
func Float(bytes int) Codec[float64] {
	if bytes != 4 && bytes != 8 {
		panic(schemaErrf("number", "byte width must be 4 or 8, got %d", bytes))
	}
	return floatCodec{bytes}
}

// Number is Float with the width defaulting to 4 bytes.
func Number(bytes ...int) Codec[float64] {
	if len(bytes) == 0 {
		return Float(4)
	}
	if len(bytes) > 1 {
		panic(schemaErrf("number", "at most one width allowed, got %d", len(bytes)))
	}
	return Float(bytes[0])
}

func (f floatCodec) Size() int  { return f.n }
func (f floatCodec) Kind() Kind { return KindFloat }

func (f floatCodec) Ser(c *Cursor, v float64) error {
	if f.n == 4 {
		putUintLE(c.next(4), uint64(math.Float32bits(float32(v))))
	} else {
		putUintLE(c.next(8), math.Float64bits(v))
	}
	return nil
}

func (f floatCodec) Des(c *Cursor) (float64, error) {
	b, err := c.Read(f.n)
	if err != nil {
		return 0, err
	}
	if f.n == 4 {
		return float64(math.Float32frombits(uint32(uintLE(b)))), nil
	}
	return math.Float64frombits(uintLE(b)), nil
}

type vlqCodec struct{}

// VLQ encodes an unsigned integer 7 bits per byte, least significant group
// first, with the high bit set on every byte except the last.
func VLQ() Codec[uint64] {
	return vlqCodec{}
}

func (vlqCodec) Size() int  { return Dynamic }
func (vlqCodec) Kind() Kind { return KindVLQ }

func (vlqCodec) Ser(c *Cursor, v uint64) error {
	writeVLQ(c, v)
	return nil
}

func (vlqCodec) Des(c *Cursor) (uint64, error) {
	return readVLQ(c)
}

// vlqLen returns the number of bytes VLQ uses for v.
func vlqLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func writeVLQ(c *Cursor, v uint64) {
	b := c.next(vlqLen(v))
	i := 0
	for v >= 0x80 {
		b[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	b[i] = byte(v)
}

// readVLQ accepts non-minimal encodings but rejects anything that would
// overflow 64 bits.
func readVLQ(c *Cursor) (uint64, error) {
	start := c.Pos()
	var v uint64
	var shift uint
	for {
		b, err := c.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift == 63 && b > 1 {
			return 0, dataErrf(c.Bytes(), start, ErrValueTooLarge, "vlq overflows 64 bits")
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
}

// MaxZeroWidthItems caps the element count of arrays whose elements
// occupy no bytes, since the input length cannot bound them.
const MaxZeroWidthItems = 1 << 16

// readCount reads a vlq length or element count and sanity-checks it
// against the remaining input. minItemSize is the smallest number of bytes
// a single item can occupy.
func readCount(c *Cursor, minItemSize int) (int, error) {
	start := c.Pos()
	n, err := readVLQ(c)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, dataErrf(c.Bytes(), start, ErrValueTooLarge, "count %d too large", n)
	}
	if minItemSize == 0 && n > MaxZeroWidthItems {
		return 0, dataErrf(c.Bytes(), start, ErrValueTooLarge, "count %d of zero-width items exceeds %d", n, MaxZeroWidthItems)
	}
	if minItemSize > 0 && n*uint64(minItemSize) > uint64(c.Remaining()) {
		return 0, dataErrf(c.Bytes(), start, ErrOutOfBounds, "count %d needs at least %d bytes, %d remaining", n, n*uint64(minItemSize), c.Remaining())
	}
	return int(n), nil
}

// minSize returns the smallest number of bytes a value of codec can take.
func minSize(size int) int {
	if size == Dynamic {
		return 1
	}
	return size
}
