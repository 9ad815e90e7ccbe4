package squash

import "sync"

const maxPooledCursorCap = 65536

var cursorPool = &sync.Pool{
	New: func() any {
		return NewCursor(256)
	},
}

func acquireCursor() *Cursor {
	return cursorPool.Get().(*Cursor)
}

func releaseCursor(c *Cursor) {
	if c.Cap() > maxPooledCursorCap {
		return
	}
	c.buf = c.buf[:0]
	c.off = 0
	cursorPool.Put(c)
}
