// Package hash computes the content hashes recorded in manifests.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Algorithm represents a supported hash algorithm. Using a typed constant
// instead of a string prevents accidental misuse with invalid names.
type Algorithm int

const (
	// BLAKE3 is the default and recommended algorithm (fast and secure).
	BLAKE3 Algorithm = iota
	// SHA256 is a secure but slower algorithm, kept for interoperability
	// with manifests produced by other implementations.
	SHA256
	// UndefinedAlgorithm is used for error handling.
	UndefinedAlgorithm
)

// String provides the string representation of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case BLAKE3:
		return "BLAKE3"
	case SHA256:
		return "SHA256"
	default:
		return "Undefined"
	}
}

// ParseAlgorithm resolves an algorithm name as it appears in a manifest's
// hash_algorithm field.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "BLAKE3":
		return BLAKE3, nil
	case "SHA256":
		return SHA256, nil
	default:
		return UndefinedAlgorithm, fmt.Errorf("unsupported hash algorithm: %q", name)
	}
}

// Result represents the result of a hashing operation.
type Result struct {
	// Hash is the hex-encoded hash string.
	Hash string
	// Error is any error that occurred during hashing.
	Error error
	// Algorithm is the algorithm used for hashing.
	Algorithm Algorithm
	// Size is the size of the hashed data in bytes.
	Size int64
}

func newHasher(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case BLAKE3:
		return blake3.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Bytes computes the hash of a byte slice.
func Bytes(data []byte, algorithm Algorithm) Result {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return Result{Algorithm: algorithm, Error: err}
	}
	if _, err := hasher.Write(data); err != nil {
		return Result{Algorithm: algorithm, Error: fmt.Errorf("failed to hash data: %w", err)}
	}
	return Result{
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Algorithm: algorithm,
		Size:      int64(len(data)),
	}
}

// Reader computes the hash of an io.Reader, allowing data to be hashed
// from files and pipes without buffering it whole.
func Reader(reader io.Reader, algorithm Algorithm) Result {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return Result{Algorithm: algorithm, Error: err}
	}
	size, err := io.Copy(hasher, reader)
	if err != nil {
		return Result{Algorithm: algorithm, Error: fmt.Errorf("failed to hash data: %w", err)}
	}
	return Result{
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Algorithm: algorithm,
		Size:      size,
	}
}

// Equal compares two hex-encoded hashes for equality.
func Equal(a, b string) bool {
	return a == b
}

// Verify checks whether data matches the expected hash.
func Verify(data []byte, expected string, algorithm Algorithm) (bool, error) {
	result := Bytes(data, algorithm)
	if result.Error != nil {
		return false, result.Error
	}
	return Equal(result.Hash, expected), nil
}
