// Package bitstring converts between byte buffers and their textual
// bit-string representation. Bits are emitted most-significant first so
// that the string reads the same as the conventional binary rendering of
// each byte.
package bitstring

import (
	"fmt"
	"strings"
)

// BitsPerByte is the width of one input byte in the bit-string domain.
const BitsPerByte = 8

// InvalidBitError reports a rune other than '0' or '1' in a bit-string.
type InvalidBitError struct {
	Pos  int
	Rune rune
}

func (e *InvalidBitError) Error() string {
	return fmt.Sprintf("invalid bit %q at position %d", e.Rune, e.Pos)
}

// FromBytes renders data as a bit-string of length 8*len(data), MSB first.
func FromBytes(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * BitsPerByte)
	for _, b := range data {
		for i := BitsPerByte - 1; i >= 0; i-- {
			if b&(1<<i) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}

// ToBytes converts a bit-string back to bytes. Trailing bits that do not
// fill a whole byte are dropped, which is how padding added by the codecs
// is shed on the way back. Non-binary characters are rejected with their
// position.
func ToBytes(bits string) ([]byte, error) {
	for i, r := range bits {
		if r != '0' && r != '1' {
			return nil, &InvalidBitError{Pos: i, Rune: r}
		}
	}
	out := make([]byte, 0, len(bits)/BitsPerByte)
	for i := 0; i+BitsPerByte <= len(bits); i += BitsPerByte {
		var b byte
		for j := 0; j < BitsPerByte; j++ {
			b <<= 1
			if bits[i+j] == '1' {
				b |= 1
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Pad right-pads bits with zeros to a multiple of width and returns the
// padded string together with the number of bits added. The count must be
// recorded so the padding can be stripped on reconstruction.
func Pad(bits string, width int) (string, int) {
	if width <= 0 || len(bits)%width == 0 {
		return bits, 0
	}
	padding := width - len(bits)%width
	return bits + strings.Repeat("0", padding), padding
}
