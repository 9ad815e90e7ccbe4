package squash

import (
	"errors"
	"testing"
	"time"
)

func TestTable_Encoding(t *testing.T) {
	tbl := DynamicTable()
	roundTrip(t, tbl, Table{"a": true}, "01 06 0161 01 01")
	roundTrip(t, tbl, Table{"x": int64(1)}, "01 06 0178 03 0100000000000000")
	roundTrip(t, tbl, Table{"l": []any{"s", uint64(5)}}, "01 06 016c 09 02 06 0173 04 05")
	roundTrip(t, tbl, Table{}, "00")
}

func TestTable_RoundTrip(t *testing.T) {
	when := time.UnixMilli(1700000000123).UTC()
	v := Table{
		"name":     "bob",
		"alive":    true,
		"score":    1.25,
		"level":    int64(-3),
		"kills":    uint64(300),
		"avatar":   []byte{1, 2, 3},
		"position": Vector3{X: 1, Y: 2, Z: 3},
		"cell":     Vector2int16{X: -1, Y: 5},
		"tint":     Color3{R: 1, G: 0, B: 1},
		"seen":     when,
		"items":    []any{"sword", int64(2), Table{"nested": false}},
		int64(1):   "first",
		true:       "yes",
		2.5:        Vector2{X: 0.5, Y: 0.25},
	}
	deepEqual(t, roundTrip(t, DynamicTable(), v, ""), v)
}

func TestTable_NormalizesNumbers(t *testing.T) {
	v := Table{
		"i":  7,
		"i8": int8(-1),
		"u":  uint(9),
		"u8": uint8(200),
		"f":  float32(0.5),
		"m":  map[any]any{1: "one"},
	}
	deepEqual(t, roundTrip(t, DynamicTable(), v, ""), Table{
		"i":  int64(7),
		"i8": int64(-1),
		"u":  uint64(9),
		"u8": uint64(200),
		"f":  0.5,
		"m":  Table{int64(1): "one"},
	})
}

func TestTable_Deterministic(t *testing.T) {
	v := Table{}
	for i := 0; i < 50; i++ {
		v[int64(i)] = i%3 == 0
		v[string(rune('a'+i%26))+string(rune('A'+i/26))] = float64(i)
	}
	first := must(Marshal(DynamicTable(), v))
	for i := 0; i < 20; i++ {
		deepEqual(t, must(Marshal(DynamicTable(), v)), first)
	}
}

func TestTable_Unsupported(t *testing.T) {
	type custom struct{ A int }
	_, err := Marshal(DynamicTable(), Table{"c": custom{1}})
	errIs(t, err, ErrUnsupportedType)
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("** got %T, wanted *TypeError", err)
	}

	_, err = Marshal(DynamicTable(), Table{custom{1}: true})
	errIs(t, err, ErrUnsupportedType)

	_, err = Marshal(DynamicTable(), Table{"n": nil})
	errIs(t, err, ErrUnsupportedType)

	_, err = Marshal(DynamicTable(), Table{"deep": []any{Table{"x": struct{}{}}}})
	errIs(t, err, ErrUnsupportedType)
}

func TestTable_DecodeErrors(t *testing.T) {
	tbl := DynamicTable()

	// unknown tag
	_, err := Unmarshal(tbl, x("01 63 00 01 01"))
	errIs(t, err, ErrUnsupportedType)

	// vlq is registered but has no runtime shape
	_, err = Unmarshal(tbl, x("01 05 01 01 01"))
	errIs(t, err, ErrUnsupportedType)

	// an array cannot be a key
	_, err = Unmarshal(tbl, x("01 09 00 01 01"))
	errIs(t, err, ErrUnsupportedType)

	_, err = Unmarshal(tbl, x("02 06 0161 01 01 06 0161 01 00"))
	errIs(t, err, ErrDuplicateKey)

	_, err = Unmarshal(tbl, x("05 06 0161"))
	errIs(t, err, ErrOutOfBounds)
}

func TestTable_Override(t *testing.T) {
	tbl := TableOf(Types, Override("number", Float(4)), Override("int", VLQ()))
	roundTrip(t, tbl, Table{"n": 1.5}, "01 06 016e 02 0000c03f")
	deepEqual(t, roundTrip(t, tbl, Table{"i": int64(300)}, "01 06 0169 03 ac02"), Table{"i": int64(300)})
	deepEqual(t, roundTrip(t, tbl, Table{"p": Vector2{X: 1}}, ""), Table{"p": Vector2{X: 1}})

	v3 := TableOf(Types, Override("Vector3", Vector3Codec(AsNumber(Int(2)))))
	roundTrip(t, v3, Table{"v": Vector3{X: 1, Y: -2, Z: 3}}, "01 06 0176 0f 0100 feff 0300")
}

func TestTable_OverrideErrors(t *testing.T) {
	_, err := Build(func() Codec[Table] { return TableOf(Types, Override("nope", Boolean())) })
	errIs(t, err, ErrInvalidSchema)
	_, err = Build(func() Codec[Table] { return TableOf(Types, Override("tuple", Boolean())) })
	errIs(t, err, ErrInvalidSchema)
	_, err = Build(func() Codec[Table] { return TableOf(nil) })
	errIs(t, err, ErrInvalidSchema)
}

func TestTable_CustomRegistry(t *testing.T) {
	type point struct{ X, Y int64 }
	pointCodec := &composed[point]{
		size: 2,
		ser: func(c *Cursor, v point) error {
			c.WriteByte(byte(v.X))
			return c.WriteByte(byte(v.Y))
		},
		des: func(c *Cursor) (point, error) {
			b, err := c.Read(2)
			if err != nil {
				return point{}, err
			}
			return point{int64(b[0]), int64(b[1])}, nil
		},
	}
	reg := MustRegistry(Def("string", String()), Def[point]("point", pointCodec))
	tbl := TableOf(reg)
	v := Table{"p": point{3, 4}}
	deepEqual(t, roundTrip(t, tbl, v, "01 01 0170 02 0304"), v)
	deepEqual(t, tbl.(*tableCodec).Registry(), reg)

	_, err := Marshal(tbl, Table{"b": true})
	errIs(t, err, ErrUnsupportedType)
}

func TestTable_AsField(t *testing.T) {
	rec := Record(Field("id", VLQ()), Field("extra", DynamicTable()))
	v := map[string]any{"id": uint64(1), "extra": Table{"k": "v"}}
	deepEqual(t, roundTrip(t, rec, v, "01 01 06 016b 06 0176"), v)
	_, err := Marshal(rec, map[string]any{"id": uint64(1), "extra": map[string]any{}})
	errIs(t, err, ErrTypeMismatch)
}

func TestDynamicValue(t *testing.T) {
	dv := DynamicValue(Types)
	deepEqual(t, roundTrip(t, dv, any("hi"), "06 02 6869"), any("hi"))
	deepEqual(t, roundTrip(t, dv, any(int8(-1)), "03 ffffffffffffffff"), any(int64(-1)))
	deepEqual(t, roundTrip(t, dv, any(Axes{Y: true}), "20 02"), any(Axes{Y: true}))
	deepEqual(t, roundTrip(t, dv, any(Table{"a": true}), "0d 01 06 0161 01 01"), any(Table{"a": true}))

	_, err := Marshal(dv, any(struct{}{}))
	errIs(t, err, ErrUnsupportedType)
	_, err = Unmarshal(dv, x("63"))
	errIs(t, err, ErrUnsupportedType)

	small := DynamicValue(Types, Override("int", Int(1)))
	deepEqual(t, roundTrip(t, small, any(5), "03 05"), any(int64(5)))
}
