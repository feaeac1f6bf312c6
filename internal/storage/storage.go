// Package storage persists encoded archives: the compressed payload and
// the manifest that inverts it, keyed by upload ID.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TFMV/squeeze/internal/manifest"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	// DefaultCompression is the default zstd compression level
	DefaultCompression = 3
	// DefaultCacheSize is the default number of payloads to cache
	DefaultCacheSize = 10
	// PayloadFileExt is the file extension for payload files
	PayloadFileExt = ".sqz"
	// ManifestFileExt is the file extension for manifest files
	ManifestFileExt = ".manifest.json"

	// trailerSize is the xxhash64 checksum appended to each payload file.
	trailerSize = 8
)

var (
	// ErrArchiveNotFound is returned when an archive is not found
	ErrArchiveNotFound = errors.New("archive not found")
	// ErrCorruptArchive is returned when a payload file fails its checksum
	ErrCorruptArchive = errors.New("corrupt archive")
)

// ArchiveStore manages archive storage operations
type ArchiveStore struct {
	baseDir      string
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
	cacheMutex   sync.RWMutex
	payloadCache map[string][]byte
	cacheSize    int
	cacheKeys    []string
}

// NewArchiveStore creates a new archive store rooted at baseDir
func NewArchiveStore(baseDir string) (*ArchiveStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevel(DefaultCompression)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &ArchiveStore{
		baseDir:      baseDir,
		encoder:      encoder,
		decoder:      decoder,
		payloadCache: make(map[string][]byte),
		cacheSize:    DefaultCacheSize,
		cacheKeys:    make([]string, 0, DefaultCacheSize),
	}, nil
}

// Close closes the archive store
func (s *ArchiveStore) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return nil
}

// PayloadPath returns the on-disk location of an archive's payload
func (s *ArchiveStore) PayloadPath(id string) string {
	return filepath.Join(s.baseDir, id+PayloadFileExt)
}

// ManifestPath returns the on-disk location of an archive's manifest
func (s *ArchiveStore) ManifestPath(id string) string {
	return filepath.Join(s.baseDir, id+ManifestFileExt)
}

// WriteArchive writes the manifest and the compressed payload to disk. The
// payload carries an xxhash64 trailer so corruption is caught before the
// decoder sees the bytes.
func (s *ArchiveStore) WriteArchive(id string, m *manifest.Manifest, payload []byte) error {
	if err := manifest.Save(m, s.ManifestPath(id)); err != nil {
		return err
	}

	compressed := s.encoder.EncodeAll(payload, nil)
	framed := make([]byte, len(compressed)+trailerSize)
	copy(framed, compressed)
	binary.BigEndian.PutUint64(framed[len(compressed):], xxhash.Sum64(compressed))

	// Use O_SYNC for durability
	f, err := os.OpenFile(s.PayloadPath(id), os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_SYNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(framed); err != nil {
		return err
	}

	s.cachePayload(id, payload)
	return nil
}

// ReadPayload reads an archive's payload from cache or disk, verifying the
// checksum trailer before decompressing.
func (s *ArchiveStore) ReadPayload(id string) ([]byte, error) {
	s.cacheMutex.RLock()
	if data, ok := s.payloadCache[id]; ok {
		s.cacheMutex.RUnlock()
		return data, nil
	}
	s.cacheMutex.RUnlock()

	framed, err := os.ReadFile(s.PayloadPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}
	if len(framed) < trailerSize {
		return nil, ErrCorruptArchive
	}

	compressed := framed[:len(framed)-trailerSize]
	want := binary.BigEndian.Uint64(framed[len(framed)-trailerSize:])
	if xxhash.Sum64(compressed) != want {
		return nil, ErrCorruptArchive
	}

	payload, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptArchive, err)
	}

	s.cachePayload(id, payload)
	return payload, nil
}

// ReadManifest reads an archive's manifest from disk.
func (s *ArchiveStore) ReadManifest(id string) (*manifest.Manifest, error) {
	m, err := manifest.Load(s.ManifestPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListArchives returns the IDs of archives with a manifest on disk
func (s *ArchiveStore) ListArchives() ([]string, error) {
	files, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	archives := make([]string, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if len(name) > len(ManifestFileExt) && name[len(name)-len(ManifestFileExt):] == ManifestFileExt {
			archives = append(archives, name[:len(name)-len(ManifestFileExt)])
		}
	}

	return archives, nil
}

// DeleteArchive deletes an archive's payload and manifest
func (s *ArchiveStore) DeleteArchive(id string) error {
	s.cacheMutex.Lock()
	delete(s.payloadCache, id)
	for i, key := range s.cacheKeys {
		if key == id {
			s.cacheKeys = append(s.cacheKeys[:i], s.cacheKeys[i+1:]...)
			break
		}
	}
	s.cacheMutex.Unlock()

	if err := os.Remove(s.ManifestPath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrArchiveNotFound
		}
		return err
	}
	if err := os.Remove(s.PayloadPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SetCacheSize sets the maximum number of payloads to cache
func (s *ArchiveStore) SetCacheSize(size int) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.cacheSize = size

	for len(s.cacheKeys) > s.cacheSize {
		oldestKey := s.cacheKeys[0]
		s.cacheKeys = s.cacheKeys[1:]
		delete(s.payloadCache, oldestKey)
	}
}

// cachePayload adds a payload to the cache, evicting the least recently
// used entry when full.
func (s *ArchiveStore) cachePayload(id string, data []byte) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	for i, key := range s.cacheKeys {
		if key == id {
			s.cacheKeys = append(s.cacheKeys[:i], s.cacheKeys[i+1:]...)
			s.cacheKeys = append(s.cacheKeys, id)
			s.payloadCache[id] = data
			return
		}
	}

	if len(s.cacheKeys) >= s.cacheSize {
		oldestKey := s.cacheKeys[0]
		s.cacheKeys = s.cacheKeys[1:]
		delete(s.payloadCache, oldestKey)
	}

	s.cacheKeys = append(s.cacheKeys, id)
	s.payloadCache[id] = data
}
