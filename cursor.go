package squash

import (
	"io"
)

// Cursor is a growable byte buffer with a single read/write position. All
// codecs serialize into and deserialize out of a Cursor.
//
// A Cursor is owned by one operation at a time and is not safe for
// concurrent use. Writes past the end grow the buffer; reads past the end
// fail with ErrOutOfBounds.
type Cursor struct {
	buf []byte
	off int
}

var (
	_ io.Writer     = (*Cursor)(nil)
	_ io.ByteWriter = (*Cursor)(nil)
	_ io.ByteReader = (*Cursor)(nil)
)

// NewCursor returns an empty cursor with room for capacity bytes.
func NewCursor(capacity int) *Cursor {
	return &Cursor{buf: make([]byte, 0, capacity)}
}

// CursorFrom returns a cursor positioned at the start of data. The cursor
// takes ownership of data.
func CursorFrom(data []byte) *Cursor {
	return &Cursor{buf: data}
}

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

// next reserves n bytes at the current position, advances past them and
// returns them for the caller to fill in.
func (c *Cursor) next(n int) []byte {
	end := c.off + n
	if end > len(c.buf) {
		c.buf = ensureCapacity(c.buf, end)
		c.buf = c.buf[:end]
	}
	b := c.buf[c.off:end]
	c.off = end
	return b
}

// Write copies b at the current position and advances past it. It never
// fails; the error result only satisfies io.Writer.
func (c *Cursor) Write(b []byte) (int, error) {
	copy(c.next(len(b)), b)
	return len(b), nil
}

func (c *Cursor) WriteString(s string) (int, error) {
	copy(c.next(len(s)), s)
	return len(s), nil
}

func (c *Cursor) WriteByte(v byte) error {
	c.next(1)[0] = v
	return nil
}

// Read returns the next n bytes and advances past them. The returned slice
// aliases the cursor's buffer.
func (c *Cursor) Read(n int) ([]byte, error) {
	if n < 0 || n > len(c.buf)-c.off {
		return nil, dataErrf(c.buf, c.off, ErrOutOfBounds, "not enough data: %d bytes remaining, %d wanted", len(c.buf)-c.off, n)
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *Cursor) ReadByte() (byte, error) {
	if c.off >= len(c.buf) {
		return 0, dataErrf(c.buf, c.off, ErrOutOfBounds, "not enough data: 0 bytes remaining, 1 wanted")
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// Reset moves the position to offset (0 if omitted), clamped to the
// current length.
func (c *Cursor) Reset(offset ...int) {
	off := 0
	if len(offset) > 0 {
		off = offset[0]
	}
	if off < 0 {
		off = 0
	} else if off > len(c.buf) {
		off = len(c.buf)
	}
	c.off = off
}

// Truncate drops everything after the current position.
func (c *Cursor) Truncate() {
	c.buf = c.buf[:c.off]
}

func (c *Cursor) Len() int {
	return len(c.buf)
}

func (c *Cursor) Pos() int {
	return c.off
}

func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

func (c *Cursor) Cap() int {
	return cap(c.buf)
}

// Bytes returns the cursor contents up to its length, regardless of the
// position.
func (c *Cursor) Bytes() []byte {
	return c.buf
}
