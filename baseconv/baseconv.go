// Package baseconv converts strings between alphabets by treating each
// string as a number written in the positional system of its alphabet.
//
// A string over a small alphabet packs into fewer symbols of a larger one:
//
//	y, _ := baseconv.Convert("great sword", baseconv.Lower+" ", baseconv.UTF8)
//	x, _ := baseconv.Convert(y, baseconv.UTF8, baseconv.Lower+" ")
//
// Alphabets are byte strings; the position of a byte is its digit value.
// The first byte of an alphabet is the zero digit.
package baseconv

import (
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidAlphabet is returned for alphabets with fewer than two symbols
// or with repeated symbols, and for inputs containing bytes outside the
// source alphabet.
var ErrInvalidAlphabet = errors.New("invalid alphabet")

const tableCacheSize = 64

// digitTable maps a byte to its digit value, or -1.
type digitTable [256]int16

var tables, _ = lru.New[string, *digitTable](tableCacheSize)

func tableFor(alphabet string) (*digitTable, error) {
	if t, ok := tables.Get(alphabet); ok {
		return t, nil
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("%w: %q has fewer than 2 symbols", ErrInvalidAlphabet, alphabet)
	}
	if len(alphabet) > 256 {
		return nil, fmt.Errorf("%w: %d symbols, at most 256 distinct bytes exist", ErrInvalidAlphabet, len(alphabet))
	}
	t := new(digitTable)
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		b := alphabet[i]
		if t[b] >= 0 {
			return nil, fmt.Errorf("%w: symbol %q repeated at %d", ErrInvalidAlphabet, b, i)
		}
		t[b] = int16(i)
	}
	tables.Add(alphabet, t)
	return t, nil
}

// Alphabet returns the smallest alphabet of x: its distinct bytes in
// ascending order.
func Alphabet(x string) string {
	var seen [256]bool
	for i := 0; i < len(x); i++ {
		seen[x[i]] = true
	}
	buf := make([]byte, 0, 16)
	for b, ok := range seen {
		if ok {
			buf = append(buf, byte(b))
		}
	}
	return string(buf)
}

// Convert rewrites x, a number in base len(in) written with the symbols of
// in, as the same number in base len(out) written with the symbols of out.
//
// Leading zero symbols of x become the same number of leading zero symbols
// of the result, so Convert(Convert(x, in, out), out, in) == x for every x
// over in.
func Convert(x, in, out string) (string, error) {
	inTable, err := tableFor(in)
	if err != nil {
		return "", err
	}
	if _, err := tableFor(out); err != nil {
		return "", err
	}
	if x == "" {
		return "", nil
	}

	digits := make([]int, len(x))
	for i := 0; i < len(x); i++ {
		d := inTable[x[i]]
		if d < 0 {
			return "", fmt.Errorf("%w: %q at %d is not in the source alphabet", ErrInvalidAlphabet, x[i], i)
		}
		digits[i] = int(d)
	}

	zeros := 0
	for zeros < len(digits) && digits[zeros] == 0 {
		zeros++
	}

	converted := rebase(digits[zeros:], len(in), len(out))

	buf := make([]byte, zeros+len(converted))
	for i := 0; i < zeros; i++ {
		buf[i] = out[0]
	}
	for i, d := range converted {
		buf[zeros+i] = out[d]
	}
	return string(buf), nil
}

// rebase converts big-endian digits from base from to base to by repeated
// long division. The input must not start with a zero digit; the result has
// no leading zeros.
func rebase(digits []int, from, to int) []int {
	num := slices.Clone(digits)
	var result []int
	for len(num) > 0 {
		var rem int
		quotient := num[:0]
		for _, d := range num {
			acc := rem*from + d
			q := acc / to
			rem = acc % to
			if len(quotient) > 0 || q != 0 {
				quotient = append(quotient, q)
			}
		}
		result = append(result, rem)
		num = quotient
	}
	slices.Reverse(result)
	return result
}
