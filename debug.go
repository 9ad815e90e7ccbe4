package squash

import (
	"fmt"
	"strconv"
	"strings"
)

type DumpFlags uint64

const (
	DumpHex = DumpFlags(1 << iota)
	DumpCapacity

	DumpDefault = DumpFlags(0)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the cursor as three lines: the position, the bytes, and a
// caret under the byte at the position.
//
//	Pos: 1 / 8
//	Buf: { 243 0 0 0 0 0 0 0 }
//	           ^
func (c *Cursor) Dump(flags ...DumpFlags) string {
	var f DumpFlags
	for _, fl := range flags {
		f |= fl
	}

	var buf strings.Builder
	if f.Contains(DumpCapacity) {
		fmt.Fprintf(&buf, "Pos: %d / %d (cap %d)\n", c.off, len(c.buf), cap(c.buf))
	} else {
		fmt.Fprintf(&buf, "Pos: %d / %d\n", c.off, len(c.buf))
	}

	const prefix = "Buf: { "
	buf.WriteString(prefix)
	caret := len(prefix)
	col := len(prefix)
	for i, b := range c.buf {
		if i == c.off {
			caret = col
		}
		var s string
		if f.Contains(DumpHex) {
			s = fmt.Sprintf("%02x", b)
		} else {
			s = strconv.Itoa(int(b))
		}
		buf.WriteString(s)
		buf.WriteByte(' ')
		col += len(s) + 1
	}
	if c.off >= len(c.buf) {
		caret = col
	}
	buf.WriteString("}\n")
	buf.WriteString(strings.Repeat(" ", caret))
	buf.WriteString("^\n")
	return buf.String()
}

func (c *Cursor) String() string {
	return fmt.Sprintf("Cursor(%d/%d)", c.off, len(c.buf))
}
