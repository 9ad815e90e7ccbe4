/*
Package squash implements schema-driven binary codecs.

A schema is built by composing codecs: primitives (Boolean, Uint, Int,
Float, VLQ), strings and buffers, and composites (Opt, Array, Tuple, Record,
Map, Table). The same schema must be used to encode and decode; nothing
about the schema is written to the wire except where noted below.

	player := squash.Record(
		squash.Field("position", squash.Vector2Codec()),
		squash.Field("health", squash.Uint(1)),
		squash.Field("name", squash.String()),
		squash.Field("equipped", squash.Opt(squash.String())),
	)
	data, err := squash.Marshal(player, map[string]any{...})

Codecs work on a Cursor, a growable buffer with a single read/write
position. Several values can be written to one cursor back to back and read
back in the same order.

# Binary encoding

**Integers** are little-endian with the width fixed by the codec. Values
that do not fit are truncated to the low bytes rather than rejected.

**Floats** are IEEE-754, little-endian, 4 or 8 bytes.

**VLQ**: 7 bits per byte, least significant group first, high bit set when
more bytes follow. 0..127 take one byte, 128..16383 two, and so on.

**Dynamic lengths**. Strings, buffers and arrays without a fixed length, and
maps and tables, store a VLQ length or entry count before the payload.

**Opt**: one presence byte (0 or 1), then the value if present.

**Records and tuples** store their fields in declaration order with no
names or counts.

**Maps**: entry count, then key/value pairs sorted by encoded key bytes.

**Tables** are self-describing: entry count, then for every entry the key's
type tag (VLQ), key, the value's type tag and value. Type tags come from a
Registry; both sides must share the same registry build.
*/
package squash
