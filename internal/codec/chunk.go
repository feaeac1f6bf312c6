package codec

import (
	"sort"
	"strings"

	"github.com/TFMV/squeeze/internal/bitstring"
)

// ChunkDictionary is an immutable first-stage dictionary prepared for
// encoding and longest-match decoding. Build one with NewChunkDictionary
// when decoding against the table embedded in a manifest; the canonical
// fixed table is available through the package-level functions.
type ChunkDictionary struct {
	table map[string]string
	// classes groups chunks by shared symbol, each class sorted ascending
	// so class[0] is the canonical chunk for greedy decode.
	classes map[string][]string
	// tokens holds the distinct non-empty symbols, longest first.
	tokens []string
}

// NewChunkDictionary prepares a chunk dictionary from a bit-pattern to
// symbol table, such as a manifest's code_to_chunk record.
func NewChunkDictionary(table map[string]string) (*ChunkDictionary, error) {
	if len(table) == 0 {
		return nil, &LookupError{Pos: 0, Token: ""}
	}
	d := &ChunkDictionary{
		table:   make(map[string]string, len(table)),
		classes: make(map[string][]string),
	}
	for chunk, sym := range table {
		for i := 0; i < len(chunk); i++ {
			if chunk[i] != '0' && chunk[i] != '1' {
				return nil, &bitstring.InvalidBitError{Pos: i, Rune: rune(chunk[i])}
			}
		}
		d.table[chunk] = sym
		d.classes[sym] = append(d.classes[sym], chunk)
	}
	for sym, class := range d.classes {
		sort.Strings(class)
		if sym != "" {
			d.tokens = append(d.tokens, sym)
		}
	}
	sortLongestFirst(d.tokens)
	return d, nil
}

// ChunkEncoding is the output of the first dictionary pass plus everything
// needed to invert it exactly. Overrides carries one byte per chunk: the
// symbol length in the high nibble and the chunk's index within its
// symbol's collision class in the low nibble. Together they resolve both
// ambiguities of the fixed table (the empty symbol for "00000" and the
// chunks that share a symbol).
type ChunkEncoding struct {
	Text      string
	Padding   int
	Chunks    int
	Overrides []byte
}

// EncodeChunks zero-pads bits to a multiple of ChunkSize, maps each 5-bit
// chunk through the fixed table and concatenates the symbols without a
// separator.
func EncodeChunks(bits string) (*ChunkEncoding, error) {
	return defaultChunkDict.Encode(bits)
}

// DecodeChunks tokenizes text by greedy longest-match against the reverse
// of the fixed table. See ChunkDictionary.Decode for the caveats.
func DecodeChunks(text string) (string, error) {
	return defaultChunkDict.Decode(text)
}

// DecodeChunksExact inverts EncodeChunks using the recorded overrides.
func DecodeChunksExact(text string, overrides []byte) (string, error) {
	return defaultChunkDict.DecodeExact(text, overrides)
}

// Encode implements the first dictionary pass over this dictionary.
func (d *ChunkDictionary) Encode(bits string) (*ChunkEncoding, error) {
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return nil, &bitstring.InvalidBitError{Pos: i, Rune: rune(bits[i])}
		}
	}
	padded, padding := bitstring.Pad(bits, ChunkSize)

	var sb strings.Builder
	overrides := make([]byte, 0, len(padded)/ChunkSize)
	for i := 0; i < len(padded); i += ChunkSize {
		chunk := padded[i : i+ChunkSize]
		sym, ok := d.table[chunk]
		if !ok {
			return nil, &LookupError{Pos: i / ChunkSize, Token: chunk}
		}
		sb.WriteString(sym)
		overrides = append(overrides, d.packOverride(sym, chunk))
	}
	return &ChunkEncoding{
		Text:      sb.String(),
		Padding:   padding,
		Chunks:    len(overrides),
		Overrides: overrides,
	}, nil
}

func (d *ChunkDictionary) packOverride(sym, chunk string) byte {
	class := d.classes[sym]
	for i, c := range class {
		if c == chunk {
			return byte(len(sym))<<4 | byte(i)
		}
	}
	// Unreachable: every chunk is a member of its own symbol's class.
	return 0
}

// Decode tokenizes text by greedy longest-match against the reverse table
// and resolves every token to its canonical (lowest-valued) chunk.
// Zero-length symbols cannot be regenerated this way and chunks that share
// a symbol all decode to the class representative; use DecodeExact with
// the overrides from Encode for a faithful inverse.
func (d *ChunkDictionary) Decode(text string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(text) {
		token := d.longestToken(text, i)
		if token == "" {
			return "", &LookupError{Pos: i, Token: residue(text, i)}
		}
		sb.WriteString(d.classes[token][0])
		i += len(token)
	}
	return sb.String(), nil
}

// DecodeExact inverts Encode using the recorded overrides. The text is
// consumed symbol by symbol at the widths the encoder saw, so no
// tokenization ambiguity remains.
func (d *ChunkDictionary) DecodeExact(text string, overrides []byte) (string, error) {
	var sb strings.Builder
	pos := 0
	for _, ov := range overrides {
		width := int(ov >> 4)
		index := int(ov & 0x0F)
		if pos+width > len(text) {
			return "", &LookupError{Pos: pos, Token: residue(text, pos)}
		}
		sym := text[pos : pos+width]
		class, ok := d.classes[sym]
		if !ok || index >= len(class) {
			return "", &LookupError{Pos: pos, Token: sym}
		}
		sb.WriteString(class[index])
		pos += width
	}
	if pos != len(text) {
		return "", &LookupError{Pos: pos, Token: residue(text, pos)}
	}
	return sb.String(), nil
}

// longestToken returns the longest dictionary symbol that prefixes text at
// i, or "" if none matches.
func (d *ChunkDictionary) longestToken(text string, i int) string {
	for _, token := range d.tokens {
		if strings.HasPrefix(text[i:], token) {
			return token
		}
	}
	return ""
}

func residue(text string, i int) string {
	const max = 8
	end := i + max
	if end > len(text) {
		end = len(text)
	}
	return text[i:end]
}
