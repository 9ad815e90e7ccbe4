package squash

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

type externalMethod int

const (
	MsgPackMethod externalMethod = iota
	CBORMethod
)

func (m externalMethod) String() string {
	switch m {
	case MsgPackMethod:
		return "msgpack"
	case CBORMethod:
		return "cbor"
	default:
		return "unknown"
	}
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("squash: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("squash: CBOR decoder initialization failed: " + err.Error())
	}
}

type externalCodec[T any] struct {
	method externalMethod
}

// MsgPack embeds an arbitrary Go value, encoded with msgpack, as a
// vlq-length-prefixed blob. It is an escape hatch for values that have no
// squash schema. Map entries at every depth are ordered by their encoded
// key bytes, so equal values always produce equal bytes.
func MsgPack[T any]() Codec[T] {
	return externalCodec[T]{MsgPackMethod}
}

// CBOR is MsgPack using deterministic CBOR (RFC 8949 core encoding).
func CBOR[T any]() Codec[T] {
	return externalCodec[T]{CBORMethod}
}

func (ec externalCodec[T]) Size() int  { return Dynamic }
func (ec externalCodec[T]) Kind() Kind { return KindExternal }

func (ec externalCodec[T]) Ser(c *Cursor, v T) error {
	tmp := acquireCursor()
	defer releaseCursor(tmp)

	switch ec.method {
	case MsgPackMethod:
		raw := acquireCursor()
		defer releaseCursor(raw)
		enc := msgpack.GetEncoder()
		enc.Reset(raw)
		err := enc.Encode(v)
		msgpack.PutEncoder(enc)
		if err != nil {
			return fmt.Errorf("failed to encode %T using msgpack: %w", v, err)
		}
		if err := canonicalMsgPack(tmp, raw.Bytes()); err != nil {
			return fmt.Errorf("failed to encode %T using msgpack: %w", v, err)
		}
	case CBORMethod:
		raw, err := cborEnc.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %T using CBOR: %w", v, err)
		}
		tmp.Write(raw)
	default:
		panic("unsupported external encoding")
	}

	writeVLQ(c, uint64(tmp.Len()))
	c.Write(tmp.Bytes())
	return nil
}

func (ec externalCodec[T]) Des(c *Cursor) (T, error) {
	var v T
	n, err := readCount(c, 1)
	if err != nil {
		return v, err
	}
	start := c.Pos()
	raw, err := c.Read(n)
	if err != nil {
		return v, err
	}
	switch ec.method {
	case MsgPackMethod:
		var r bytes.Reader
		r.Reset(raw)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		err = dec.Decode(&v)
		msgpack.PutDecoder(dec)
	case CBORMethod:
		err = cborDec.Unmarshal(raw, &v)
	default:
		panic("unsupported external encoding")
	}
	if err != nil {
		return v, dataErrf(c.Bytes(), start, err, "failed to decode %s into %T", ec.method, v)
	}
	return v, nil
}

// canonicalMsgPack copies the single msgpack value in data to dst,
// reordering the entries of every map by their encoded key bytes.
func canonicalMsgPack(dst *Cursor, data []byte) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(&r)
	if err := copyMsgPackValue(dst, dec); err != nil {
		return err
	}
	if r.Len() != 0 {
		return ErrTrailingData
	}
	return nil
}

func copyMsgPackValue(dst *Cursor, dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case code == msgpcode.Map16 || code == msgpcode.Map32 || msgpcode.IsFixedMap(code):
		n, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		scratch := acquireCursor()
		defer releaseCursor(scratch)
		// bounds[i] = start of key i, end of key i, end of value i
		bounds := make([][3]int, n)
		for i := range bounds {
			bounds[i][0] = scratch.Pos()
			if err := copyMsgPackValue(scratch, dec); err != nil {
				return err
			}
			bounds[i][1] = scratch.Pos()
			if err := copyMsgPackValue(scratch, dec); err != nil {
				return err
			}
			bounds[i][2] = scratch.Pos()
		}
		buf := scratch.Bytes()
		slices.SortFunc(bounds, func(a, b [3]int) int {
			return bytes.Compare(buf[a[0]:a[1]], buf[b[0]:b[1]])
		})
		if err := writeMsgPackHeader(dst, true, n); err != nil {
			return err
		}
		for _, b := range bounds {
			dst.Write(buf[b[0]:b[2]])
		}
		return nil
	case code == msgpcode.Array16 || code == msgpcode.Array32 || msgpcode.IsFixedArray(code):
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		if err := writeMsgPackHeader(dst, false, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := copyMsgPackValue(dst, dec); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, err := dec.DecodeRaw()
		if err != nil {
			return err
		}
		dst.Write(raw)
		return nil
	}
}

func writeMsgPackHeader(dst *Cursor, isMap bool, n int) error {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(dst)
	if isMap {
		return enc.EncodeMapLen(n)
	}
	return enc.EncodeArrayLen(n)
}
