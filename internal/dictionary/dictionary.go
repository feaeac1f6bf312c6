// Package dictionary manages the code dictionary consumed by the block
// codec: a read-only mapping between 10-bit integer codes and their bit
// patterns. The dictionary is loaded (or generated) once at startup and
// shared by reference; nothing in the encode/decode hot path touches disk.
package dictionary

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spaolacci/murmur3"
)

const (
	// CodeBits is the fixed code width in bits.
	CodeBits = 10
	// MaxCodes is the number of distinct codes at that width.
	MaxCodes = 1 << CodeBits
)

var (
	// ErrEmptyDictionary is returned when a dictionary file has no entries.
	ErrEmptyDictionary = errors.New("dictionary has no entries")
	// ErrDuplicatePattern is returned when two codes share a bit pattern.
	ErrDuplicatePattern = errors.New("duplicate bit pattern in dictionary")
)

// Dictionary is an immutable code-to-pattern bijection.
type Dictionary struct {
	codeToPattern map[uint16]string
	patternToCode map[string]uint16
	fingerprint   string
}

// Generate builds the identity dictionary: code i maps to the 10-bit
// binary rendering of i. This is the dictionary the encoder ships with
// when no external file is supplied.
func Generate() *Dictionary {
	codes := make(map[uint16]string, MaxCodes)
	for i := 0; i < MaxCodes; i++ {
		codes[uint16(i)] = fmt.Sprintf("%010b", i)
	}
	d, _ := build(codes)
	return d
}

// Load reads a dictionary file: a JSON object mapping decimal code strings
// to bit-pattern strings.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary file %q: %w", path, err)
	}
	codes := make(map[uint16]string, len(raw))
	for key, pattern := range raw {
		code, err := strconv.ParseUint(key, 10, 16)
		if err != nil || code >= MaxCodes {
			return nil, fmt.Errorf("invalid dictionary code %q in %q", key, path)
		}
		for i := 0; i < len(pattern); i++ {
			if pattern[i] != '0' && pattern[i] != '1' {
				return nil, fmt.Errorf("invalid bit pattern %q for code %s in %q", pattern, key, path)
			}
		}
		codes[uint16(code)] = pattern
	}
	return build(codes)
}

func build(codes map[uint16]string) (*Dictionary, error) {
	if len(codes) == 0 {
		return nil, ErrEmptyDictionary
	}
	reverse := make(map[string]uint16, len(codes))
	for code, pattern := range codes {
		if _, dup := reverse[pattern]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePattern, pattern)
		}
		reverse[pattern] = code
	}
	return &Dictionary{
		codeToPattern: codes,
		patternToCode: reverse,
		fingerprint:   fingerprint(codes),
	}, nil
}

// fingerprint hashes the sorted entries with murmur3 so two processes can
// cheaply check they loaded the same dictionary.
func fingerprint(codes map[uint16]string) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, int(code))
	}
	sort.Ints(keys)
	h := murmur3.New128()
	for _, code := range keys {
		fmt.Fprintf(h, "%d=%s;", code, codes[uint16(code)])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Pattern returns the bit pattern for a code.
func (d *Dictionary) Pattern(code uint16) (string, bool) {
	p, ok := d.codeToPattern[code]
	return p, ok
}

// Code returns the code for a bit pattern.
func (d *Dictionary) Code(pattern string) (uint16, bool) {
	c, ok := d.patternToCode[pattern]
	return c, ok
}

// Len reports the number of entries.
func (d *Dictionary) Len() int { return len(d.codeToPattern) }

// Fingerprint returns the murmur3 hash of the dictionary contents.
func (d *Dictionary) Fingerprint() string { return d.fingerprint }

// Entries returns a copy of the code-to-pattern map with decimal string
// keys, the shape used by dictionary files and manifests.
func (d *Dictionary) Entries() map[string]string {
	m := make(map[string]string, len(d.codeToPattern))
	for code, pattern := range d.codeToPattern {
		m[strconv.Itoa(int(code))] = pattern
	}
	return m
}

// Save writes the dictionary in the file format Load reads.
func (d *Dictionary) Save(path string) error {
	data, err := json.MarshalIndent(d.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dictionary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dictionary file: %w", err)
	}
	return nil
}
