package protocol

import (
	"slices"
	"strings"
)

// Validator checks the bytes collected for one parser state. On success it
// returns the index of the matched alternative.
type Validator interface {
	Validate(input []byte) (int, bool)
}

// CharGroup accepts input whose first byte is one of its characters. The
// index is the position of that character.
type CharGroup string

func (g CharGroup) Validate(input []byte) (int, bool) {
	if len(input) == 0 {
		return -1, false
	}
	i := strings.IndexByte(string(g), input[0])
	return i, i >= 0
}

// StringGroup accepts one of a sorted list of upper-case symbols, ignoring
// case. Lookup is a binary search, so the list must stay sorted.
type StringGroup []string

func (g StringGroup) Validate(input []byte) (int, bool) {
	i, found := slices.BinarySearch(g, strings.ToUpper(string(input)))
	if !found {
		return -1, false
	}
	return i, true
}

// HexString accepts input made only of hex digits.
type HexString struct{}

func (HexString) Validate(input []byte) (int, bool) {
	if !IsHex(input) {
		return -1, false
	}
	return 0, true
}

// Nil accepts anything.
type Nil struct{}

func (Nil) Validate([]byte) (int, bool) { return 0, true }
