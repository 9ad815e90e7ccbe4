package squash

import (
	"errors"
	"testing"
)

type loadout struct {
	Name   string            `msgpack:"name" cbor:"name"`
	Slots  []string          `msgpack:"slots" cbor:"slots"`
	Charge float64           `msgpack:"charge" cbor:"charge"`
	Tags   map[string]uint32 `msgpack:"tags" cbor:"tags"`
}

func sampleLoadout() loadout {
	return loadout{
		Name:   "ranger",
		Slots:  []string{"bow", "knife"},
		Charge: 0.75,
		Tags:   map[string]uint32{"b": 2, "a": 1, "c": 3},
	}
}

func TestMsgPack(t *testing.T) {
	v := sampleLoadout()
	deepEqual(t, roundTrip(t, MsgPack[loadout](), v, ""), v)

	first := must(Marshal(MsgPack[loadout](), v))
	for i := 0; i < 10; i++ {
		deepEqual(t, must(Marshal(MsgPack[loadout](), v)), first)
	}
	deepEqual(t, MsgPack[loadout]().Kind(), KindExternal)
}

func TestCBOR(t *testing.T) {
	v := sampleLoadout()
	deepEqual(t, roundTrip(t, CBOR[loadout](), v, ""), v)

	first := must(Marshal(CBOR[loadout](), v))
	for i := 0; i < 10; i++ {
		deepEqual(t, must(Marshal(CBOR[loadout](), v)), first)
	}

	deepEqual(t, roundTrip(t, CBOR[uint64](), 10, "01 0a"), 10)
}

func TestExternal_InRecord(t *testing.T) {
	rec := Record(Field("id", VLQ()), Field("loadout", MsgPack[loadout]()))
	v := map[string]any{"id": uint64(9), "loadout": sampleLoadout()}
	deepEqual(t, roundTrip(t, rec, v, ""), v)
}

func TestExternal_DecodeErrors(t *testing.T) {
	_, err := Unmarshal(MsgPack[loadout](), x("02 c1 c1"))
	var de *DataError
	if !errors.As(err, &de) {
		t.Errorf("** msgpack: got %v, wanted *DataError", err)
	}

	_, err = Unmarshal(CBOR[loadout](), x("01 ff"))
	if !errors.As(err, &de) {
		t.Errorf("** cbor: got %v, wanted *DataError", err)
	}

	_, err = Unmarshal(CBOR[loadout](), x("09 a0"))
	errIs(t, err, ErrOutOfBounds)
}

type roster struct {
	Groups []map[int]string          `msgpack:"groups"`
	Index  map[string]map[uint16]bool `msgpack:"index"`
}

func TestMsgPack_NestedMapsAreOrdered(t *testing.T) {
	v := roster{Index: map[string]map[uint16]bool{}}
	for g := 0; g < 3; g++ {
		group := map[int]string{}
		for i := 0; i < 20; i++ {
			group[i*(g+1)-7] = string(rune('a' + i))
		}
		v.Groups = append(v.Groups, group)
	}
	for _, name := range []string{"z", "m", "a", "q", "b"} {
		inner := map[uint16]bool{}
		for i := uint16(0); i < 30; i++ {
			inner[i*300] = i%2 == 0
		}
		v.Index[name] = inner
	}

	first := must(Marshal(MsgPack[roster](), v))
	for i := 0; i < 20; i++ {
		deepEqual(t, must(Marshal(MsgPack[roster](), v)), first)
	}
	deepEqual(t, must(Unmarshal(MsgPack[roster](), first)), v)
}

func TestCanonicalMsgPack_SortsByKeyBytes(t *testing.T) {
	// {"b": 1, "a": [{"y": 2, "x": 3}]}
	in := x("82 a162 01 a161 91 82 a179 02 a178 03")
	c := NewCursor(0)
	if err := canonicalMsgPack(c, in); err != nil {
		t.Fatal(err)
	}
	deepEqual(t, c.Bytes(), x("82 a161 91 82 a178 03 a179 02 a162 01"))

	errIs(t, canonicalMsgPack(NewCursor(0), x("01 02")), ErrTrailingData)
}
