package squash

import (
	"errors"
	"strings"
	"testing"
)

func TestOpt(t *testing.T) {
	s := "hi"
	deepEqual(t, *roundTrip(t, Opt(String()), &s, "01 02 68 69"), "hi")
	deepEqual(t, roundTrip(t, Opt(String()), nil, "00"), (*string)(nil))

	_, err := Unmarshal(Opt(Uint(2)), x("01 05"))
	errIs(t, err, ErrOutOfBounds)
}

func TestArray(t *testing.T) {
	deepEqual(t, roundTrip(t, Array(Uint(1)), []uint64{1, 2, 3}, "03 01 02 03"), []uint64{1, 2, 3})
	deepEqual(t, roundTrip(t, Array(String()), []string{"a", ""}, "02 01 61 00"), []string{"a", ""})
	deepEqual(t, roundTrip(t, Array(Boolean()), nil, "00"), []bool{})
	deepEqual(t, Array(Uint(1)).Size(), Dynamic)
}

func TestArray_Fixed(t *testing.T) {
	a := Array(Uint(2), 3)
	deepEqual(t, a.Size(), 6)
	deepEqual(t, roundTrip(t, a, []uint64{1, 2, 3}, "0100 0200 0300"), []uint64{1, 2, 3})
	deepEqual(t, roundTrip(t, a, []uint64{1}, "0100 0000 0000"), []uint64{1, 0, 0})
	deepEqual(t, roundTrip(t, a, []uint64{1, 2, 3, 4}, "0100 0200 0300"), []uint64{1, 2, 3})
}

func TestArray_HugeCount(t *testing.T) {
	// the count claims far more elements than there are bytes
	_, err := Unmarshal(Array(Uint(4)), x("ff ff 03 00"))
	errIs(t, err, ErrOutOfBounds)
	_, err = Unmarshal(Array(Boolean()), x("ff ff ff ff ff ff 01"))
	errIs(t, err, ErrValueTooLarge)
}

func TestArray_ZeroWidthItems(t *testing.T) {
	a := Array(Buffer(0))
	deepEqual(t, roundTrip(t, a, [][]byte{{}, {}, {}}, "03"), [][]byte{{}, {}, {}})

	// 10,000,000 empty buffers from four bytes of input
	_, err := Unmarshal(a, x("80 ad e2 04"))
	errIs(t, err, ErrValueTooLarge)

	_, err = Marshal(a, make([][]byte, MaxZeroWidthItems+1))
	errIs(t, err, ErrValueTooLarge)
	deepEqual(t, len(must(Unmarshal(a, must(Marshal(a, make([][]byte, MaxZeroWidthItems)))))), MaxZeroWidthItems)
}

func TestArray_Nested(t *testing.T) {
	grid := Array(Array(Int(1), 2))
	v := [][]int64{{1, -1}, {2, -2}}
	deepEqual(t, roundTrip(t, grid, v, "02 01ff 02fe"), v)
}

func TestTuple(t *testing.T) {
	tup := Tuple(Erase(Uint(1)), Erase(String()), Erase(Boolean()))
	deepEqual(t, roundTrip(t, tup, []any{uint64(7), "ok", true}, "07 02 6f 6b 01"), []any{uint64(7), "ok", true})
	deepEqual(t, tup.Size(), Dynamic)
	deepEqual(t, Tuple(Erase(Uint(1)), Erase(Float(4))).Size(), 5)

	// numeric values are converted to the field type
	deepEqual(t, must(Marshal(tup, []any{7, "ok", false})), x("07 02 6f 6b 00"))

	_, err := Marshal(tup, []any{uint64(7)})
	errIs(t, err, ErrInvalidSchema)
	_, err = Marshal(tup, []any{uint64(7), 5, true})
	errIs(t, err, ErrTypeMismatch)
}

func TestTuple_NotNestable(t *testing.T) {
	inner := Tuple(Erase(Uint(1)))
	builders := []func() AnyCodec{
		func() AnyCodec { return Erase(Tuple(Erase(inner))) },
		func() AnyCodec { return Erase(Array(inner)) },
		func() AnyCodec { return Erase(Opt(inner)) },
		func() AnyCodec { return Erase(Record(Field("t", inner))) },
		func() AnyCodec { return Erase(Map(String(), inner)) },
	}
	for i, fn := range builders {
		_, err := Build(fn)
		errIs(t, err, ErrInvalidSchema)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Errorf("** builder %d: got %T, wanted *SchemaError", i, err)
		}
	}
}

func TestBuild_OtherPanicsPropagate(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("** recovered %v, wanted boom", r)
		}
	}()
	Build(func() int { panic("boom") })
}

func playerRecord() Codec[map[string]any] {
	return Record(
		Field("position", Vector2Codec()),
		Field("health", Uint(1)),
		Field("name", String()),
		Field("equipped", Opt(String())),
	)
}

func TestRecord(t *testing.T) {
	rec := playerRecord()
	sword := "sword"
	v := map[string]any{
		"position": Vector2{X: 1, Y: 2},
		"health":   uint64(100),
		"name":     "bob",
		"equipped": &sword,
	}
	a := roundTrip(t, rec, v, "0000803f 00000040 64 03626f62 01 0573776f7264")
	deepEqual(t, a, v)

	// missing optional field, extra keys ignored, numeric coercion
	v2 := map[string]any{
		"position": Vector2{},
		"health":   100,
		"name":     "",
		"extra":    true,
	}
	a = roundTrip(t, rec, v2, "00000000 00000000 64 00 00")
	deepEqual(t, a["equipped"], any((*string)(nil)))
	deepEqual(t, a["health"], any(uint64(100)))
	if _, ok := a["extra"]; ok {
		t.Errorf("** extra key survived the round trip")
	}
}

func TestRecord_Errors(t *testing.T) {
	rec := playerRecord()
	_, err := Marshal(rec, map[string]any{"position": Vector2{}, "health": 1})
	errIs(t, err, ErrTypeMismatch)
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("** error %q does not name the field", err)
	}

	_, err = Build(func() Codec[map[string]any] {
		return Record(Field("a", Boolean()), Field("a", Boolean()))
	})
	errIs(t, err, ErrInvalidSchema)
}

func TestRecord_Fields(t *testing.T) {
	rc := playerRecord().(recordCodec)
	names := []string{}
	for _, f := range rc.Fields() {
		names = append(names, f.Name)
	}
	deepEqual(t, names, []string{"position", "health", "name", "equipped"})
	deepEqual(t, Record(Field("a", Uint(2)), Field("b", Boolean())).Size(), 3)
}

func TestMap(t *testing.T) {
	m := Map(String(), Uint(1))
	v := map[string]uint64{"b": 2, "a": 1, "c": 3}
	deepEqual(t, roundTrip(t, m, v, "03 0161 01 0162 02 0163 03"), v)
	deepEqual(t, roundTrip(t, m, map[string]uint64{}, "00"), map[string]uint64{})
}

func TestMap_Deterministic(t *testing.T) {
	m := Map(VLQ(), String())
	v := make(map[uint64]string)
	for i := uint64(0); i < 300; i += 7 {
		v[i] = strings.Repeat("x", int(i%5))
	}
	first := must(Marshal(m, v))
	for i := 0; i < 20; i++ {
		deepEqual(t, must(Marshal(m, v)), first)
	}
	deepEqual(t, must(Unmarshal(m, first)), v)
}

func TestMap_DuplicateKey(t *testing.T) {
	_, err := Unmarshal(Map(String(), Uint(1)), x("02 0161 01 0161 02"))
	errIs(t, err, ErrDuplicateKey)
}

func TestMap_ValueError(t *testing.T) {
	_, err := Unmarshal(Map(String(), Uint(2)), x("01 0161 01"))
	errIs(t, err, ErrOutOfBounds)
}
