package storage

import (
	"context"
	"os"
	"testing"

	"github.com/TFMV/squeeze/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ArchiveStore {
	t.Helper()

	store, err := NewArchiveStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func encodeTestArchive(t *testing.T, data []byte) *pipeline.Result {
	t.Helper()

	res, err := pipeline.Encode(context.Background(), data, pipeline.DefaultOptions())
	require.NoError(t, err)
	return res
}

func TestWriteReadArchive(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	res := encodeTestArchive(t, []byte("archive round trip"))
	id := res.Manifest.UploadID

	require.NoError(t, store.WriteArchive(id, res.Manifest, res.Payload))

	payload, err := store.ReadPayload(id)
	require.NoError(t, err)
	assert.Equal(t, res.Payload, payload)

	m, err := store.ReadManifest(id)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, m)

	// A stored archive must reconstruct without any in-memory state.
	out, err := pipeline.Decode(context.Background(), m, payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive round trip"), out)
}

func TestReadPayloadUsesCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	res := encodeTestArchive(t, []byte("cached payload"))
	id := res.Manifest.UploadID
	require.NoError(t, store.WriteArchive(id, res.Manifest, res.Payload))

	// Corrupt the file on disk; the cached copy must still be served.
	require.NoError(t, os.WriteFile(store.PayloadPath(id), []byte("junk"), 0644))

	payload, err := store.ReadPayload(id)
	require.NoError(t, err)
	assert.Equal(t, res.Payload, payload)
}

func TestReadPayloadDetectsCorruption(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	res := encodeTestArchive(t, []byte("to be corrupted"))
	id := res.Manifest.UploadID
	require.NoError(t, store.WriteArchive(id, res.Manifest, res.Payload))

	// Evict the cached copy so the next read hits disk.
	store.SetCacheSize(0)

	framed, err := os.ReadFile(store.PayloadPath(id))
	require.NoError(t, err)
	framed[0] ^= 0xFF
	require.NoError(t, os.WriteFile(store.PayloadPath(id), framed, 0644))

	_, err = store.ReadPayload(id)
	require.ErrorIs(t, err, ErrCorruptArchive)

	require.NoError(t, os.WriteFile(store.PayloadPath(id), []byte{1, 2}, 0644))
	_, err = store.ReadPayload(id)
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestMissingArchive(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.ReadPayload("nope")
	require.ErrorIs(t, err, ErrArchiveNotFound)

	_, err = store.ReadManifest("nope")
	require.ErrorIs(t, err, ErrArchiveNotFound)

	require.ErrorIs(t, store.DeleteArchive("nope"), ErrArchiveNotFound)
}

func TestListAndDeleteArchives(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	first := encodeTestArchive(t, []byte("first"))
	second := encodeTestArchive(t, []byte("second"))

	require.NoError(t, store.WriteArchive(first.Manifest.UploadID, first.Manifest, first.Payload))
	require.NoError(t, store.WriteArchive(second.Manifest.UploadID, second.Manifest, second.Payload))

	archives, err := store.ListArchives()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.Manifest.UploadID, second.Manifest.UploadID}, archives)

	require.NoError(t, store.DeleteArchive(first.Manifest.UploadID))

	archives, err = store.ListArchives()
	require.NoError(t, err)
	assert.Equal(t, []string{second.Manifest.UploadID}, archives)

	_, err = store.ReadPayload(first.Manifest.UploadID)
	require.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestCacheEviction(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.SetCacheSize(1)

	first := encodeTestArchive(t, []byte("first"))
	second := encodeTestArchive(t, []byte("second"))
	require.NoError(t, store.WriteArchive(first.Manifest.UploadID, first.Manifest, first.Payload))
	require.NoError(t, store.WriteArchive(second.Manifest.UploadID, second.Manifest, second.Payload))

	store.cacheMutex.RLock()
	_, firstCached := store.payloadCache[first.Manifest.UploadID]
	_, secondCached := store.payloadCache[second.Manifest.UploadID]
	store.cacheMutex.RUnlock()

	assert.False(t, firstCached)
	assert.True(t, secondCached)
}
