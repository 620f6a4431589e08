package protocol

// IsHex reports whether b is non-empty and holds only hex digits.
func IsHex(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if _, ok := nibble(c); !ok {
			return false
		}
	}
	return true
}

func nibble(c byte) (uint32, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint32(c - '0'), true
	case c >= 'a' && c <= 'f':
		return uint32(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return uint32(c-'A') + 10, true
	}
	return 0, false
}

// HexToUint decodes up to eight hex digits. Input is expected to be
// validated already; a non-hex byte counts as zero.
func HexToUint(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		n, _ := nibble(c)
		v = v<<4 | n
	}
	return v
}

// HexToInt decodes hex digits as a two's complement number as wide as the
// digits: the top bit of the first digit is the sign. "FFF" is -1 and
// "7FF" is 2047.
func HexToInt(b []byte) int32 {
	v := HexToUint(b)
	bits := 4 * len(b)
	if bits > 0 && bits < 32 && v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}

// UintToHex encodes v as n upper-case hex digits, keeping the low bits.
func UintToHex(v uint32, n int) []byte {
	const digits = "0123456789ABCDEF"
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = digits[v&0xF]
		v >>= 4
	}
	return out
}

// IntToHex encodes v in two's complement over n hex digits.
func IntToHex(v int32, n int) []byte {
	return UintToHex(uint32(v), n)
}
