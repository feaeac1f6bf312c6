package manifest

import (
	"strconv"
	"strings"

	"github.com/TFMV/squeeze/internal/bitstring"
	"github.com/TFMV/squeeze/internal/block"
	"github.com/TFMV/squeeze/internal/codec"
)

// Reconstruct replays the inverse of every encode stage using only the
// manifest's embedded tables and counts, then verifies the result against
// the recorded size and content hash. The output is the canonical
// normalized byte array; the original pre-normalization bytes are not
// recoverable when the conversion map is not injective.
func Reconstruct(m *Manifest, payload []byte) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var bits string
	var err error
	switch m.Encoding {
	case EncodingBlock:
		bits, err = reconstructBlock(m, payload)
	case EncodingChunk:
		bits, err = reconstructChunks(m, payload)
	}
	if err != nil {
		return nil, err
	}

	if int(m.Padding) > len(bits) {
		return nil, &IntegrityError{Field: "padding"}
	}
	bits = bits[:len(bits)-int(m.Padding)]

	out, err := bitstring.ToBytes(bits)
	if err != nil {
		return nil, err
	}
	if m.OriginalSize < uint64(len(out)) {
		out = out[:m.OriginalSize]
	}
	if err := m.verifyOutput(out); err != nil {
		return nil, err
	}
	return out, nil
}

// reconstructBlock drains the recorded number of 10-bit codes and expands
// each through the embedded code table.
func reconstructBlock(m *Manifest, payload []byte) (string, error) {
	codes := block.Unpack(payload)
	if uint32(len(codes)) < m.CodeCount {
		return "", &IntegrityError{
			Field: "code_count",
			Want:  strconv.Itoa(int(m.CodeCount)),
			Got:   strconv.Itoa(len(codes)),
		}
	}
	codes = codes[:m.CodeCount]

	var sb strings.Builder
	for i, code := range codes {
		pattern, ok := m.CodeToChunk[strconv.Itoa(int(code))]
		if !ok {
			return "", &codec.LookupError{Pos: i, Token: strconv.Itoa(int(code))}
		}
		sb.WriteString(pattern)
	}
	return sb.String(), nil
}

// reconstructChunks undoes the symbol pass if it was applied, then the
// chunk pass, using the embedded tables and the per-chunk overrides.
func reconstructChunks(m *Manifest, payload []byte) (string, error) {
	text := string(payload)
	if m.SymbolEncoded {
		expanded, err := codec.DecodeSymbolsWith(text, m.SymbolTable)
		if err != nil {
			return "", err
		}
		text = expanded
	}
	dict, err := codec.NewChunkDictionary(m.CodeToChunk)
	if err != nil {
		return "", err
	}
	return dict.DecodeExact(text, m.ChunkOverrides)
}
