package manifest

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/TFMV/squeeze/internal/bitstring"
	"github.com/TFMV/squeeze/internal/block"
	"github.com/TFMV/squeeze/internal/codec"
	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/TFMV/squeeze/internal/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkParams(t *testing.T, data []byte) (Params, []byte) {
	t.Helper()

	bits := bitstring.FromBytes(data)
	enc, err := codec.EncodeChunks(bits)
	require.NoError(t, err)

	result := hash.Bytes(data, hash.BLAKE3)
	require.NoError(t, result.Error)

	return Params{
		Encoding:       EncodingChunk,
		ChunkSize:      codec.ChunkSize,
		CodeToChunk:    codec.ChunkTable(),
		ChunkOverrides: enc.Overrides,
		Padding:        uint(enc.Padding),
		OriginalSize:   uint64(len(data)),
		ContentHash:    result.Hash,
		HashAlgorithm:  hash.BLAKE3,
	}, []byte(enc.Text)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		params, _ := chunkParams(t, []byte("Hi"))
		params.ConversionMap = map[uint8]uint8{0: '0', 10: ' '}
		m, err := Build(params)
		require.NoError(t, err)
		assert.Equal(t, Version, m.Version)
		assert.Equal(t, EncodingChunk, m.Encoding)
		assert.NotEmpty(t, m.ReversalSteps)
		assert.Equal(t, "BLAKE3", m.HashAlgorithm)
	})

	t.Run("MalformedParams", func(t *testing.T) {
		t.Parallel()

		base, _ := chunkParams(t, []byte("Hi"))

		cases := map[string]func(p *Params){
			"encoding":       func(p *Params) { p.Encoding = "zip" },
			"chunk_size":     func(p *Params) { p.ChunkSize = 0 },
			"code_to_chunk":  func(p *Params) { p.CodeToChunk = nil },
			"content_hash":   func(p *Params) { p.ContentHash = "" },
			"hash_algorithm": func(p *Params) { p.HashAlgorithm = hash.UndefinedAlgorithm },
			"padding":        func(p *Params) { p.Padding = 5 },
		}
		for field, mutate := range cases {
			p := base
			mutate(&p)
			_, err := Build(p)
			require.Error(t, err, "field %s", field)
			var integrityErr *IntegrityError
			require.ErrorAs(t, err, &integrityErr)
			assert.Equal(t, field, integrityErr.Field)
		}
	})

	t.Run("ReversalStepsFollowEncoding", func(t *testing.T) {
		t.Parallel()

		params, _ := chunkParams(t, []byte("Hi"))
		params.SymbolEncoded = true
		params.SymbolTable = codec.SymbolTable()
		m, err := Build(params)
		require.NoError(t, err)
		assert.Equal(t, "decode_symbols", m.ReversalSteps[0].Operation)
		assert.Equal(t, "decode_chunks", m.ReversalSteps[1].Operation)

		params, _ = chunkParams(t, []byte("Hi"))
		params.Encoding = EncodingBlock
		params.ChunkSize = dictionary.CodeBits
		params.CodeToChunk = map[string]string{"0": "0000000000"}
		m, err = Build(params)
		require.NoError(t, err)
		assert.Equal(t, "unpack_codes", m.ReversalSteps[0].Operation)
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	params, _ := chunkParams(t, []byte("round trip me"))
	params.ConversionMap = map[uint8]uint8{0: '0', 9: ' ', 10: ' ', 200: 'x'}
	params.UploadID = "deadbeefcafef00d"
	params.CreatedAt = "2026-08-30T12:00:00Z"
	m, err := Build(params)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "roundtrip.manifest.json")
	require.NoError(t, Save(m, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m, loaded)

	// Integer-keyed conversion map must serialize with string keys.
	data, err := Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"200": 120`)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("not json"))
	require.Error(t, err)

	_, err = Decode([]byte(`{"version":"1.0","encoding":"chunk"}`))
	require.Error(t, err)
	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
}

func TestReconstructChunkPath(t *testing.T) {
	t.Parallel()

	data := []byte("Reconstruct me, exactly.")
	params, payload := chunkParams(t, data)
	m, err := Build(params)
	require.NoError(t, err)

	out, err := Reconstruct(m, payload)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestReconstructBlockPath(t *testing.T) {
	t.Parallel()

	data := []byte("0Hello World!")
	dict := dictionary.Generate()
	res, err := block.Compress(data, dict)
	require.NoError(t, err)

	used := make(map[string]string)
	for _, code := range res.Codes {
		pattern, ok := dict.Pattern(code)
		require.True(t, ok)
		used[strconv.Itoa(int(code))] = pattern
	}

	result := hash.Bytes(data, hash.SHA256)
	require.NoError(t, result.Error)

	m, err := Build(Params{
		Encoding:      EncodingBlock,
		ChunkSize:     dictionary.CodeBits,
		CodeToChunk:   used,
		Padding:       uint(res.Padding),
		CodeCount:     uint32(res.CodeCount),
		OriginalSize:  uint64(len(data)),
		ContentHash:   result.Hash,
		HashAlgorithm: hash.SHA256,
	})
	require.NoError(t, err)

	out, err := Reconstruct(m, res.Packed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestReconstructFailures(t *testing.T) {
	t.Parallel()

	data := []byte("tamper target")
	params, payload := chunkParams(t, data)

	t.Run("HashMismatch", func(t *testing.T) {
		t.Parallel()

		p := params
		p.ContentHash = "0000000000000000"
		m, err := Build(p)
		require.NoError(t, err)

		_, err = Reconstruct(m, payload)
		require.Error(t, err)
		var integrityErr *IntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "content_hash", integrityErr.Field)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		t.Parallel()

		p := params
		p.OriginalSize = 5
		m, err := Build(p)
		require.NoError(t, err)

		_, err = Reconstruct(m, payload)
		require.Error(t, err)
		var integrityErr *IntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "original_size", integrityErr.Field)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		t.Parallel()

		m, err := Build(params)
		require.NoError(t, err)

		_, err = Reconstruct(m, []byte("definitely not dot text"))
		require.Error(t, err)
	})

	t.Run("MissingBlockCode", func(t *testing.T) {
		t.Parallel()

		result := hash.Bytes([]byte("x"), hash.BLAKE3)
		m, err := Build(Params{
			Encoding:      EncodingBlock,
			ChunkSize:     dictionary.CodeBits,
			CodeToChunk:   map[string]string{"0": "0000000000"},
			CodeCount:     1,
			OriginalSize:  1,
			ContentHash:   result.Hash,
			HashAlgorithm: hash.BLAKE3,
		})
		require.NoError(t, err)

		// Two bytes unpack to code 1023, which the table lacks.
		_, err = Reconstruct(m, []byte{255, 192})
		require.Error(t, err)
		var lookupErr *codec.LookupError
		assert.ErrorAs(t, err, &lookupErr)
	})

	t.Run("TruncatedBlockPayload", func(t *testing.T) {
		t.Parallel()

		result := hash.Bytes([]byte("x"), hash.BLAKE3)
		m, err := Build(Params{
			Encoding:      EncodingBlock,
			ChunkSize:     dictionary.CodeBits,
			CodeToChunk:   map[string]string{"0": "0000000000"},
			CodeCount:     4,
			OriginalSize:  1,
			ContentHash:   result.Hash,
			HashAlgorithm: hash.BLAKE3,
		})
		require.NoError(t, err)

		_, err = Reconstruct(m, []byte{0})
		require.Error(t, err)
		var integrityErr *IntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "code_count", integrityErr.Field)
	})
}

func TestReverseConversionMap(t *testing.T) {
	t.Parallel()

	m := &Manifest{ConversionMap: map[uint8]uint8{
		0:  '0', // unique
		9:  ' ', // collides with 10 and 13
		10: ' ',
		13: ' ',
	}}
	reverse := m.ReverseConversionMap()
	assert.Equal(t, map[uint8]uint8{'0': 0}, reverse)
}
