package squash

import (
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func errIs(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}

// roundTrip encodes v, compares the bytes with the expected hex (unless
// empty), decodes them back and returns the decoded value.
func roundTrip[T any](t testing.TB, codec Codec[T], v T, expected string) T {
	t.Helper()
	data, err := Marshal(codec, v)
	if err != nil {
		t.Fatalf("Marshal(%v) failed: %v", v, err)
	}
	if expected != "" {
		if e := x(expected); !reflect.DeepEqual(data, e) {
			t.Fatalf("Marshal(%v) = %x, wanted %x", v, data, e)
		}
	}
	if size := codec.Size(); size != Dynamic && size != len(data) {
		t.Fatalf("Marshal(%v) produced %d bytes, codec size is %d", v, len(data), size)
	}
	a, err := Unmarshal(codec, data)
	if err != nil {
		t.Fatalf("Unmarshal(%x) failed: %v", data, err)
	}
	return a
}
