// Package manifest builds, persists and replays the single durable
// artifact of the pipeline: the record of every parameter needed to invert
// the transform without the original input.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TFMV/squeeze/internal/hash"
)

// Version identifies the manifest record layout.
const Version = "1.0"

// Encoding names for the two transform paths.
const (
	EncodingChunk = "chunk"
	EncodingBlock = "block"
)

// IntegrityError reports a malformed manifest or a reconstruction that
// disagrees with the recorded size or hash.
type IntegrityError struct {
	Field string
	Want  string
	Got   string
}

func (e *IntegrityError) Error() string {
	if e.Want == "" && e.Got == "" {
		return fmt.Sprintf("manifest integrity: invalid field %s", e.Field)
	}
	return fmt.Sprintf("manifest integrity: %s mismatch (want %s, got %s)", e.Field, e.Want, e.Got)
}

// ReversalStep documents one stage of the inverse transform, in order.
type ReversalStep struct {
	Step        int    `json:"step"`
	Operation   string `json:"operation"`
	Description string `json:"description"`
}

// Manifest is the persisted record. It is immutable after Build; the
// conversion map uses integer keys that serialize as decimal strings.
type Manifest struct {
	Version       string            `json:"version"`
	Encoding      string            `json:"encoding"`
	ChunkSize     uint              `json:"chunk_size"`
	CodeToChunk   map[string]string `json:"code_to_chunk"`
	SymbolTable   map[string]string `json:"symbol_table,omitempty"`
	SymbolEncoded bool              `json:"symbol_encoded,omitempty"`
	// ChunkOverrides carries one byte per chunk (symbol width in the high
	// nibble, collision-class index in the low nibble) so the first-stage
	// decode is exact despite the table's shared and empty symbols.
	ChunkOverrides []byte `json:"chunk_overrides,omitempty"`
	Padding        uint   `json:"padding"`
	// CodeCount is the true number of 10-bit codes on the block path,
	// guarding the final partial group that Unpack would otherwise drop.
	CodeCount             uint32          `json:"code_count,omitempty"`
	DictionaryFingerprint string          `json:"dictionary_fingerprint,omitempty"`
	OriginalSize          uint64          `json:"original_size"`
	ContentHash           string          `json:"content_hash"`
	HashAlgorithm         string          `json:"hash_algorithm"`
	ConversionMap         map[uint8]uint8 `json:"conversion_map,omitempty"`
	ReversalSteps         []ReversalStep  `json:"reversal_steps,omitempty"`
	UploadID              string          `json:"upload_id,omitempty"`
	CreatedAt             string          `json:"created_at,omitempty"`
}

// Params aggregates the outputs of the encode stages for Build.
type Params struct {
	Encoding              string
	ChunkSize             uint
	CodeToChunk           map[string]string
	SymbolTable           map[string]string
	SymbolEncoded         bool
	ChunkOverrides        []byte
	Padding               uint
	CodeCount             uint32
	DictionaryFingerprint string
	OriginalSize          uint64
	ContentHash           string
	HashAlgorithm         hash.Algorithm
	ConversionMap         map[uint8]uint8
	UploadID              string
	CreatedAt             string
}

// Build validates and aggregates params into an immutable Manifest.
func Build(p Params) (*Manifest, error) {
	if p.Encoding != EncodingChunk && p.Encoding != EncodingBlock {
		return nil, &IntegrityError{Field: "encoding"}
	}
	if p.ChunkSize == 0 {
		return nil, &IntegrityError{Field: "chunk_size"}
	}
	if len(p.CodeToChunk) == 0 {
		return nil, &IntegrityError{Field: "code_to_chunk"}
	}
	if p.ContentHash == "" {
		return nil, &IntegrityError{Field: "content_hash"}
	}
	if p.HashAlgorithm == hash.UndefinedAlgorithm {
		return nil, &IntegrityError{Field: "hash_algorithm"}
	}
	if p.Padding >= p.ChunkSize {
		return nil, &IntegrityError{Field: "padding"}
	}

	m := &Manifest{
		Version:               Version,
		Encoding:              p.Encoding,
		ChunkSize:             p.ChunkSize,
		CodeToChunk:           p.CodeToChunk,
		SymbolTable:           p.SymbolTable,
		SymbolEncoded:         p.SymbolEncoded,
		ChunkOverrides:        p.ChunkOverrides,
		Padding:               p.Padding,
		CodeCount:             p.CodeCount,
		DictionaryFingerprint: p.DictionaryFingerprint,
		OriginalSize:          p.OriginalSize,
		ContentHash:           p.ContentHash,
		HashAlgorithm:         p.HashAlgorithm.String(),
		ConversionMap:         p.ConversionMap,
		UploadID:              p.UploadID,
		CreatedAt:             p.CreatedAt,
	}
	m.ReversalSteps = reversalSteps(m)
	return m, nil
}

func reversalSteps(m *Manifest) []ReversalStep {
	var steps []ReversalStep
	add := func(op, desc string) {
		steps = append(steps, ReversalStep{Step: len(steps) + 1, Operation: op, Description: desc})
	}
	switch m.Encoding {
	case EncodingBlock:
		add("unpack_codes", "drain 10-bit codes from the packed bytes, keeping code_count codes")
		add("expand_codes", "replace each code with its bit pattern from code_to_chunk")
	case EncodingChunk:
		if m.SymbolEncoded {
			add("decode_symbols", "expand each compact character through symbol_table")
		}
		add("decode_chunks", "resolve symbols to 5-bit chunks using chunk_overrides")
	}
	add("strip_padding", "drop the recorded number of trailing zero bits")
	add("bits_to_bytes", "convert the bit-string back to bytes, trimming to original_size")
	return steps
}

// Save persists the manifest as deterministic JSON. The write goes through
// a temp file and rename so a reconstruction never observes a partially
// written manifest.
func Save(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize manifest: %w", err)
	}
	return nil
}

// Load reads a manifest persisted by Save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Decode(data)
}

// Encode renders the manifest as JSON.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// Decode parses manifest JSON and checks the required fields.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch {
	case m.Encoding != EncodingChunk && m.Encoding != EncodingBlock:
		return &IntegrityError{Field: "encoding"}
	case m.ChunkSize == 0:
		return &IntegrityError{Field: "chunk_size"}
	case len(m.CodeToChunk) == 0:
		return &IntegrityError{Field: "code_to_chunk"}
	case m.ContentHash == "":
		return &IntegrityError{Field: "content_hash"}
	case m.Encoding == EncodingChunk && m.SymbolEncoded && len(m.SymbolTable) == 0:
		return &IntegrityError{Field: "symbol_table"}
	}
	return nil
}

// Algorithm resolves the manifest's recorded hash algorithm.
func (m *Manifest) Algorithm() (hash.Algorithm, error) {
	a, err := hash.ParseAlgorithm(m.HashAlgorithm)
	if err != nil {
		return hash.UndefinedAlgorithm, &IntegrityError{Field: "hash_algorithm"}
	}
	return a, nil
}

// verifyOutput checks the reconstructed bytes against the recorded size
// and content hash.
func (m *Manifest) verifyOutput(out []byte) error {
	if uint64(len(out)) != m.OriginalSize {
		return &IntegrityError{
			Field: "original_size",
			Want:  fmt.Sprintf("%d", m.OriginalSize),
			Got:   fmt.Sprintf("%d", len(out)),
		}
	}
	algorithm, err := m.Algorithm()
	if err != nil {
		return err
	}
	result := hash.Bytes(out, algorithm)
	if result.Error != nil {
		return result.Error
	}
	if !hash.Equal(result.Hash, m.ContentHash) {
		return &IntegrityError{Field: "content_hash", Want: m.ContentHash, Got: result.Hash}
	}
	return nil
}

// ReverseConversionMap returns printable-to-original pairs for the
// injective subset of the conversion map. Entries whose printable byte
// stands for more than one original are omitted: the normalization is not
// guaranteed injective, so the canonical reconstruction target stays the
// normalized byte array.
func (m *Manifest) ReverseConversionMap() map[uint8]uint8 {
	counts := make(map[uint8]int, len(m.ConversionMap))
	for _, printable := range m.ConversionMap {
		counts[printable]++
	}
	reverse := make(map[uint8]uint8)
	for original, printable := range m.ConversionMap {
		if counts[printable] == 1 {
			reverse[printable] = original
		}
	}
	return reverse
}
