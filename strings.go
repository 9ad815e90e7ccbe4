package squash

type stringCodec struct {
	length int
}

// String encodes a string as raw bytes. With a length, exactly that many
// bytes are written (zero-padded or truncated) and no length is stored.
// Without one, a vlq byte count precedes the bytes.
func String(length ...int) Codec[string] {
	return stringCodec{optionalLength("string", length)}
}

func (sc stringCodec) Size() int  { return sc.length }
func (sc stringCodec) Kind() Kind { return KindString }

func (sc stringCodec) Ser(c *Cursor, v string) error {
	if sc.length == Dynamic {
		writeVLQ(c, uint64(len(v)))
		c.WriteString(v)
		return nil
	}
	b := c.next(sc.length)
	n := copy(b, v)
	clear(b[n:])
	return nil
}

func (sc stringCodec) Des(c *Cursor) (string, error) {
	n := sc.length
	if n == Dynamic {
		var err error
		n, err = readCount(c, 1)
		if err != nil {
			return "", err
		}
	}
	b, err := c.Read(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type bufferCodec struct {
	length int
}

// Buffer is String for opaque byte slices. Decoded slices never alias the
// cursor.
func Buffer(length ...int) Codec[[]byte] {
	return bufferCodec{optionalLength("buffer", length)}
}

func (bc bufferCodec) Size() int  { return bc.length }
func (bc bufferCodec) Kind() Kind { return KindBuffer }

func (bc bufferCodec) Ser(c *Cursor, v []byte) error {
	if bc.length == Dynamic {
		writeVLQ(c, uint64(len(v)))
		c.Write(v)
		return nil
	}
	b := c.next(bc.length)
	n := copy(b, v)
	clear(b[n:])
	return nil
}

func (bc bufferCodec) Des(c *Cursor) ([]byte, error) {
	n := bc.length
	if n == Dynamic {
		var err error
		n, err = readCount(c, 1)
		if err != nil {
			return nil, err
		}
	}
	b, err := c.Read(n)
	if err != nil {
		return nil, err
	}
	return append(make([]byte, 0, n), b...), nil
}
