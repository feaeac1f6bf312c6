// Package pipeline wires the transform stages together: normalize, bit
// serialize, dictionary encode (chunk/symbol or block) and manifest
// construction for the forward direction, and manifest replay for the
// inverse. All dictionaries are injected, immutable and shared by
// reference, so concurrent encodes need no locking.
package pipeline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/TFMV/squeeze/internal/ascii"
	"github.com/TFMV/squeeze/internal/bitstring"
	"github.com/TFMV/squeeze/internal/block"
	"github.com/TFMV/squeeze/internal/codec"
	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/TFMV/squeeze/internal/hash"
	"github.com/TFMV/squeeze/internal/manifest"
)

// ioChunkSize bounds how much input is transformed between cancellation
// checks.
const ioChunkSize = 8 * 1024

// uploadIDLength is the hex prefix of the content hash used as the
// default upload identifier.
const uploadIDLength = 16

// ErrDictionaryRequired is returned when the block path is requested
// without a code dictionary.
var ErrDictionaryRequired = errors.New("block encoding requires a code dictionary")

// Options configures one encode run.
type Options struct {
	// Algorithm selects the content hash recorded in the manifest.
	Algorithm hash.Algorithm
	// UseBlock selects the 10-bit block path instead of chunk/symbol.
	UseBlock bool
	// Dictionary is the code dictionary for the block path.
	Dictionary *dictionary.Dictionary
	// UploadID overrides the derived identifier when non-empty.
	UploadID string
}

// DefaultOptions returns the options used by the CLI when no flags are
// given.
func DefaultOptions() Options {
	return Options{Algorithm: hash.BLAKE3}
}

// Result is the outcome of an encode: the transformed payload and the
// manifest that inverts it, plus the normalization stats for reporting.
type Result struct {
	Payload  []byte
	Manifest *manifest.Manifest
	Stats    *ascii.Stats
}

// Encode runs the forward pipeline over data. The transform yields at
// chunk boundaries so cancellation cannot leave a partially built
// manifest: on context error nothing is returned.
func Encode(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if opts.UseBlock && opts.Dictionary == nil {
		return nil, ErrDictionaryRequired
	}

	norm, stats, err := normalizeChunked(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hashResult := hash.Bytes(norm, opts.Algorithm)
	if hashResult.Error != nil {
		return nil, hashResult.Error
	}
	uploadID := opts.UploadID
	if uploadID == "" {
		uploadID = hashResult.Hash[:uploadIDLength]
	}

	params := manifest.Params{
		OriginalSize:  uint64(len(norm)),
		ContentHash:   hashResult.Hash,
		HashAlgorithm: opts.Algorithm,
		ConversionMap: stats.ConversionMap(),
		UploadID:      uploadID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	var payload []byte
	if opts.UseBlock {
		payload, err = encodeBlock(ctx, norm, opts.Dictionary, &params)
	} else {
		payload, err = encodeChunks(ctx, norm, &params)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := manifest.Build(params)
	if err != nil {
		return nil, err
	}
	return &Result{Payload: payload, Manifest: m, Stats: stats}, nil
}

// Decode replays the manifest against the transformed payload.
func Decode(ctx context.Context, m *manifest.Manifest, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return manifest.Reconstruct(m, payload)
}

// VerifyDictionary checks a loaded dictionary against the fingerprint a
// manifest was encoded with.
func VerifyDictionary(m *manifest.Manifest, dict *dictionary.Dictionary) error {
	if m.DictionaryFingerprint == "" || dict == nil {
		return nil
	}
	if dict.Fingerprint() != m.DictionaryFingerprint {
		return &manifest.IntegrityError{
			Field: "dictionary_fingerprint",
			Want:  m.DictionaryFingerprint,
			Got:   dict.Fingerprint(),
		}
	}
	return nil
}

// normalizeChunked runs the normalizer in bounded chunks, checking for
// cancellation between chunks.
func normalizeChunked(ctx context.Context, data []byte) ([]byte, *ascii.Stats, error) {
	norm := make([]byte, 0, len(data))
	stats := &ascii.Stats{TotalBytes: len(data), Histogram: make(map[byte]int)}
	for off := 0; off < len(data); off += ioChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := off + ioChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunkOut, chunkStats := ascii.Normalize(data[off:end])
		norm = append(norm, chunkOut...)
		stats.ConvertedBytes += chunkStats.ConvertedBytes
		for b, n := range chunkStats.Histogram {
			stats.Histogram[b] += n
		}
	}
	return norm, stats, nil
}

// encodeChunks runs the chunk pass and, when the text is inside the
// symbol table's domain, the symbol pass on top. The fallback to plain
// chunk text is recorded in the manifest so reconstruction knows which
// stages to reverse.
func encodeChunks(ctx context.Context, norm []byte, params *manifest.Params) ([]byte, error) {
	bits := bitstring.FromBytes(norm)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enc, err := codec.EncodeChunks(bits)
	if err != nil {
		return nil, err
	}

	params.Encoding = manifest.EncodingChunk
	params.ChunkSize = codec.ChunkSize
	params.CodeToChunk = codec.ChunkTable()
	params.Padding = uint(enc.Padding)
	// Leave nil for empty input so the manifest round-trips byte for byte.
	if len(enc.Overrides) > 0 {
		params.ChunkOverrides = enc.Overrides
	}

	symbols, err := codec.EncodeSymbols(enc.Text)
	if err != nil {
		var lookupErr *codec.LookupError
		if !errors.As(err, &lookupErr) {
			return nil, err
		}
		return []byte(enc.Text), nil
	}
	params.SymbolEncoded = true
	params.SymbolTable = codec.SymbolTable()
	return []byte(symbols), nil
}

// encodeBlock runs the 10-bit dictionary path and embeds the used subset
// of the dictionary so the manifest stays self-contained.
func encodeBlock(ctx context.Context, norm []byte, dict *dictionary.Dictionary, params *manifest.Params) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := block.Compress(norm, dict)
	if err != nil {
		return nil, err
	}

	used := make(map[string]string, len(res.Codes))
	for _, code := range res.Codes {
		pattern, ok := dict.Pattern(code)
		if ok {
			used[strconv.Itoa(int(code))] = pattern
		}
	}
	if len(used) == 0 {
		// Empty input still needs a non-empty table for a valid manifest.
		if pattern, ok := dict.Pattern(0); ok {
			used["0"] = pattern
		}
	}

	params.Encoding = manifest.EncodingBlock
	params.ChunkSize = dictionary.CodeBits
	params.CodeToChunk = used
	params.CodeCount = uint32(res.CodeCount)
	params.Padding = uint(res.Padding)
	params.DictionaryFingerprint = dict.Fingerprint()
	return res.Packed, nil
}
