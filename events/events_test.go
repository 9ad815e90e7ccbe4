package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/squash"
)

type combatEvents struct {
	hit  *Event[map[string]any]
	move *Event[squash.Vector3]
}

func defineCombat(t *testing.T, cat *Catalog) combatEvents {
	ns, err := cat.DefineNamespace("combat")
	require.NoError(t, err)
	hit, err := Define(ns, "hit", squash.Record(
		squash.Field("target", squash.VLQ()),
		squash.Field("damage", squash.Uint(2)),
	), Reliable)
	require.NoError(t, err)
	move, err := Define(ns, "move", squash.Vector3Codec(), Unreliable)
	require.NoError(t, err)
	return combatEvents{hit, move}
}

func TestDefinedEvent(t *testing.T) {
	cat := NewCatalog(nil)
	ev := defineCombat(t, cat)

	assert.Equal(t, Info{ID: 1, Namespace: "combat", Name: "hit", Reliability: Reliable}, ev.hit.Info())
	assert.Equal(t, "combat.move#2(unreliable)", ev.move.Info().String())

	data, err := ev.hit.Encode(map[string]any{"target": uint64(7), "damage": 300})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 7, 0x2c, 0x01}, data)

	v, err := ev.hit.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"target": uint64(7), "damage": uint64(300)}, v)

	_, err = ev.move.Decode(data)
	assert.ErrorIs(t, err, ErrEventMismatch)

	_, err = ev.hit.Decode(append(data, 0))
	assert.ErrorIs(t, err, squash.ErrTrailingData)

	_, err = ev.hit.Decode([]byte{1, 7, 0x2c})
	assert.ErrorIs(t, err, squash.ErrOutOfBounds)
}

func TestUndefinedEvent(t *testing.T) {
	cat := NewCatalog(nil)
	chat, err := Undefined(cat, "chat", Reliable)
	require.NoError(t, err)
	assert.True(t, chat.Info().Dynamic)
	assert.Equal(t, "chat", chat.Info().FullName())

	data, err := chat.Encode("gg")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 6, 2, 'g', 'g'}, data)

	msg := squash.Table{"text": "gg", "volume": 0.5, "pos": squash.Vector2{X: 1}}
	data, err = chat.Encode(msg)
	require.NoError(t, err)
	v, err := chat.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, v)

	_, err = chat.Encode(struct{}{})
	assert.ErrorIs(t, err, squash.ErrUnsupportedType)
}

func TestNamespacesScopeNames(t *testing.T) {
	cat := NewCatalog(nil)
	a, err := cat.DefineNamespace("a")
	require.NoError(t, err)
	b, err := cat.DefineNamespace("b")
	require.NoError(t, err)

	ea, err := Define(a, "ping", squash.Boolean(), Reliable)
	require.NoError(t, err)
	eb, err := Define(b, "ping", squash.Boolean(), Unreliable)
	require.NoError(t, err)
	assert.NotEqual(t, ea.Info().ID, eb.Info().ID)

	_, err = Define(a, "ping", squash.String(), Reliable)
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	_, err = cat.DefineNamespace("a")
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)

	// undefined events live in the root namespace
	_, err = Undefined(cat, "ping", Reliable)
	require.NoError(t, err)
	_, err = Undefined(cat, "ping", Unreliable)
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)

	info, ok := cat.Lookup("b.ping")
	require.True(t, ok)
	assert.Equal(t, eb.Info(), info)
	_, ok = cat.Lookup("c.ping")
	assert.False(t, ok)

	var names []string
	for _, info := range cat.Events() {
		names = append(names, info.FullName())
	}
	assert.Equal(t, []string{"a.ping", "b.ping", "ping"}, names)
}

func TestDefineErrors(t *testing.T) {
	cat := NewCatalog(nil)
	ns, err := cat.DefineNamespace("ns")
	require.NoError(t, err)

	_, err = Define(ns, "", squash.Boolean(), Reliable)
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	_, err = Define(ns, "a.b", squash.Boolean(), Reliable)
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	_, err = Define[bool](ns, "nil", nil, Reliable)
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	_, err = Define(ns, "odd", squash.Boolean(), Reliability(7))
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	_, err = cat.DefineNamespace("x.y")
	assert.ErrorIs(t, err, squash.ErrInvalidSchema)
	assert.Empty(t, cat.Events())
}

func TestDecodeFrame(t *testing.T) {
	cat := NewCatalog(nil)
	ev := defineCombat(t, cat)
	shout, err := Undefined(cat, "shout", Unreliable)
	require.NoError(t, err)

	c := squash.NewCursor(0)
	require.NoError(t, ev.move.Append(c, squash.Vector3{X: 1, Y: 2, Z: 3}))
	require.NoError(t, shout.Append(c, int64(-4)))
	require.NoError(t, ev.hit.Append(c, map[string]any{"target": uint64(1), "damage": uint64(2)}))

	packets, err := cat.DecodeFrame(c.Bytes())
	require.NoError(t, err)
	require.Len(t, packets, 3)
	assert.Equal(t, Packet{ev.move.Info(), squash.Vector3{X: 1, Y: 2, Z: 3}}, packets[0])
	assert.Equal(t, Packet{shout.Info(), int64(-4)}, packets[1])
	assert.Equal(t, "combat.hit", packets[2].Event.FullName())
	assert.Equal(t, map[string]any{"target": uint64(1), "damage": uint64(2)}, packets[2].Value)

	empty, err := cat.DecodeFrame(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = cat.DecodeFrame([]byte{9, 0})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	_, err = cat.DecodeFrame([]byte{0})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	_, err = cat.DecodeFrame([]byte{2, 0, 0})
	assert.ErrorIs(t, err, squash.ErrOutOfBounds)
}

func TestCustomRegistry(t *testing.T) {
	reg := squash.MustRegistry(squash.Def("text", squash.String()))
	cat := NewCatalog(reg)
	note, err := Undefined(cat, "note", Reliable)
	require.NoError(t, err)

	data, err := note.Encode("hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 2, 'h', 'i'}, data)

	_, err = note.Encode(true)
	assert.ErrorIs(t, err, squash.ErrUnsupportedType)
}

func TestReliability(t *testing.T) {
	assert.Equal(t, "reliable", Reliable.String())
	assert.Equal(t, "unreliable", Unreliable.String())
	assert.Equal(t, "invalid reliability 5", Reliability(5).String())

	r, err := ParseReliability("unreliable")
	require.NoError(t, err)
	assert.Equal(t, Unreliable, r)
	_, err = ParseReliability("sometimes")
	assert.Error(t, err)
}
