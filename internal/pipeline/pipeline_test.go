package pipeline

import (
	"context"
	"testing"

	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/TFMV/squeeze/internal/hash"
	"github.com/TFMV/squeeze/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helloInput normalizes to "0Hello World!": NUL becomes '0' and the
// newline becomes a space.
var helloInput = []byte{0, 'H', 'e', 'l', 'l', 'o', '\n', 'W', 'o', 'r', 'l', 'd', '!'}

const helloNormalized = "0Hello World!"

const helloSHA256 = "ba51feaef8ebf207f449ff496ca1f6d2e6dfe45d56cba1499fb7b6ef30345616"

func TestEncodeChunkPath(t *testing.T) {
	t.Parallel()

	opts := Options{Algorithm: hash.SHA256}
	res, err := Encode(context.Background(), helloInput, opts)
	require.NoError(t, err)

	m := res.Manifest
	assert.Equal(t, manifest.EncodingChunk, m.Encoding)
	assert.Equal(t, uint(5), m.ChunkSize)
	assert.Equal(t, uint(1), m.Padding)
	assert.Equal(t, uint64(len(helloNormalized)), m.OriginalSize)
	assert.Equal(t, helloSHA256, m.ContentHash)
	assert.Equal(t, "SHA256", m.HashAlgorithm)
	assert.Equal(t, map[uint8]uint8{0: '0', '\n': ' '}, m.ConversionMap)
	assert.Equal(t, helloSHA256[:16], m.UploadID)

	// The dot text for this input contains a space-led run the symbol
	// table cannot absorb, so the second stage is skipped.
	assert.False(t, m.SymbolEncoded)
	assert.Empty(t, m.SymbolTable)

	// 104 input bits pad to 105, giving 21 chunks and one override each.
	assert.Equal(t, []byte{
		33, 16, 18, 33, 50, 80, 32, 34, 64, 50, 20,
		48, 49, 80, 80, 52, 64, 51, 52, 17, 17,
	}, m.ChunkOverrides)

	assert.Equal(t, 2, res.Stats.ConvertedBytes)
	assert.Equal(t, len(helloInput), res.Stats.TotalBytes)

	out, err := Decode(context.Background(), m, res.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte(helloNormalized), out)
}

func TestEncodeSymbolPath(t *testing.T) {
	t.Parallel()

	// A single space yields the dot text ".", which the symbol table
	// collapses to "*".
	res, err := Encode(context.Background(), []byte{' '}, DefaultOptions())
	require.NoError(t, err)

	m := res.Manifest
	assert.True(t, m.SymbolEncoded)
	assert.NotEmpty(t, m.SymbolTable)
	assert.Equal(t, []byte("*"), res.Payload)
	assert.Equal(t, []byte{0x12, 0x00}, m.ChunkOverrides)

	out, err := Decode(context.Background(), m, res.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{' '}, out)
}

func TestEncodeBlockPath(t *testing.T) {
	t.Parallel()

	dict := dictionary.Generate()
	opts := Options{Algorithm: hash.SHA256, UseBlock: true, Dictionary: dict}
	res, err := Encode(context.Background(), helloInput, opts)
	require.NoError(t, err)

	m := res.Manifest
	assert.Equal(t, manifest.EncodingBlock, m.Encoding)
	assert.Equal(t, uint(10), m.ChunkSize)
	assert.Equal(t, uint(6), m.Padding)
	assert.Equal(t, uint32(11), m.CodeCount)
	assert.Len(t, m.CodeToChunk, 11)
	assert.Equal(t, dict.Fingerprint(), m.DictionaryFingerprint)

	// The identity dictionary makes packing a no-op up to the padded tail.
	assert.Equal(t, append([]byte(helloNormalized), 0), res.Payload)

	require.NoError(t, VerifyDictionary(m, dict))

	out, err := Decode(context.Background(), m, res.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte(helloNormalized), out)
}

func TestEncodeEmptyInput(t *testing.T) {
	t.Parallel()

	t.Run("Chunk", func(t *testing.T) {
		t.Parallel()

		res, err := Encode(context.Background(), nil, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, res.Payload)
		assert.Equal(t, uint64(0), res.Manifest.OriginalSize)

		out, err := Decode(context.Background(), res.Manifest, res.Payload)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("Block", func(t *testing.T) {
		t.Parallel()

		opts := Options{Algorithm: hash.BLAKE3, UseBlock: true, Dictionary: dictionary.Generate()}
		res, err := Encode(context.Background(), nil, opts)
		require.NoError(t, err)
		assert.Empty(t, res.Payload)
		assert.Equal(t, uint32(0), res.Manifest.CodeCount)

		out, err := Decode(context.Background(), res.Manifest, res.Payload)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestEncodeRequiresDictionaryForBlock(t *testing.T) {
	t.Parallel()

	_, err := Encode(context.Background(), helloInput, Options{UseBlock: true})
	require.ErrorIs(t, err, ErrDictionaryRequired)
}

func TestEncodeHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Encode(ctx, helloInput, DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)

	_, err = Decode(ctx, &manifest.Manifest{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestUploadIDOverride(t *testing.T) {
	t.Parallel()

	res, err := Encode(context.Background(), helloInput, Options{
		Algorithm: hash.BLAKE3,
		UploadID:  "custom-upload-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-upload-id", res.Manifest.UploadID)
}

func TestVerifyDictionaryMismatch(t *testing.T) {
	t.Parallel()

	dict := dictionary.Generate()
	opts := Options{Algorithm: hash.BLAKE3, UseBlock: true, Dictionary: dict}
	res, err := Encode(context.Background(), helloInput, opts)
	require.NoError(t, err)

	res.Manifest.DictionaryFingerprint = "not-the-real-fingerprint"
	err = VerifyDictionary(res.Manifest, dict)
	require.Error(t, err)
	var integrityErr *manifest.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, "dictionary_fingerprint", integrityErr.Field)

	// Manifests without a fingerprint skip the check.
	res.Manifest.DictionaryFingerprint = ""
	require.NoError(t, VerifyDictionary(res.Manifest, dict))
}

func TestRoundTripLargeInput(t *testing.T) {
	t.Parallel()

	// Spans several normalization chunks to exercise the stat merging.
	data := make([]byte, 3*ioChunkSize+17)
	for i := range data {
		data[i] = byte(i % 256)
	}

	res, err := Encode(context.Background(), data, DefaultOptions())
	require.NoError(t, err)

	out, err := Decode(context.Background(), res.Manifest, res.Payload)
	require.NoError(t, err)
	assert.Len(t, out, len(data))

	// Every output byte is printable by construction.
	for i, b := range out {
		require.GreaterOrEqual(t, b, byte(32), "pos %d", i)
		require.LessOrEqual(t, b, byte(126), "pos %d", i)
	}
}
