// Package block implements the coarse-grained encode path: 10-bit groups
// looked up in an injected dictionary and bit-packed into dense bytes.
package block

import (
	"strconv"

	"github.com/TFMV/squeeze/internal/bitstring"
	"github.com/TFMV/squeeze/internal/codec"
	"github.com/TFMV/squeeze/internal/dictionary"
)

// Pack accumulates 10-bit codes big-endian into bytes, emitting full bytes
// as they fill. The final partial byte, if any, is left-padded with zero
// bits on the low end.
func Pack(codes []uint16) []byte {
	out := make([]byte, 0, (len(codes)*dictionary.CodeBits+7)/8)
	var acc uint32
	var nbits int
	for _, code := range codes {
		acc = acc<<dictionary.CodeBits | uint32(code&0x3FF)
		nbits += dictionary.CodeBits
		for nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
		}
	}
	if nbits > 0 {
		out = append(out, byte(acc<<(8-nbits)))
	}
	return out
}

// Unpack drains 10-bit groups from data. Trailing bits shorter than a full
// group are dropped; callers that must not lose the final partial group
// record the true code count separately and slice the result.
func Unpack(data []byte) []uint16 {
	out := make([]uint16, 0, len(data)*8/dictionary.CodeBits)
	var acc uint32
	var nbits int
	for _, b := range data {
		acc = acc<<8 | uint32(b)
		nbits += 8
		if nbits >= dictionary.CodeBits {
			nbits -= dictionary.CodeBits
			out = append(out, uint16(acc>>nbits)&0x3FF)
		}
	}
	return out
}

// Result carries the packed bytes plus the counts needed to invert
// Compress. Codes is the pre-pack code sequence so callers can embed the
// used subset of the dictionary in a manifest.
type Result struct {
	Packed    []byte
	Codes     []uint16
	CodeCount int
	Padding   int
}

// Compress renders data as a bit-string, splits it into 10-bit groups
// (zero-padding the last), resolves each group to its code in dict and
// packs the codes. A group with no dictionary entry fails with its
// position in the group sequence.
func Compress(data []byte, dict *dictionary.Dictionary) (*Result, error) {
	bits := bitstring.FromBytes(data)
	padded, padding := bitstring.Pad(bits, dictionary.CodeBits)

	codes := make([]uint16, 0, len(padded)/dictionary.CodeBits)
	for i := 0; i < len(padded); i += dictionary.CodeBits {
		group := padded[i : i+dictionary.CodeBits]
		code, ok := dict.Code(group)
		if !ok {
			return nil, &codec.LookupError{Pos: i / dictionary.CodeBits, Token: group}
		}
		codes = append(codes, code)
	}
	return &Result{
		Packed:    Pack(codes),
		Codes:     codes,
		CodeCount: len(codes),
		Padding:   padding,
	}, nil
}

// Decompress unpacks codeCount codes from packed, expands each through
// dict, truncates the concatenated bits to a multiple of 8 and converts
// back to bytes, trimming to originalSize. A code with no dictionary entry
// fails with its position in the code sequence.
func Decompress(packed []byte, codeCount int, originalSize int, dict *dictionary.Dictionary) ([]byte, error) {
	codes := Unpack(packed)
	if codeCount >= 0 && codeCount < len(codes) {
		codes = codes[:codeCount]
	}

	var bits []byte
	for i, code := range codes {
		pattern, ok := dict.Pattern(code)
		if !ok {
			return nil, &codec.LookupError{Pos: i, Token: strconv.Itoa(int(code))}
		}
		bits = append(bits, pattern...)
	}
	data, err := bitstring.ToBytes(string(bits))
	if err != nil {
		return nil, err
	}
	if originalSize >= 0 && originalSize < len(data) {
		data = data[:originalSize]
	}
	return data, nil
}
