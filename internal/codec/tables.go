// Package codec implements the two fixed dictionary passes of the encode
// pipeline: the 5-bit chunk table that turns a bit-string into dot/space
// text, and the run-length symbol table that shrinks that text further.
package codec

import (
	"fmt"
	"sort"
)

// ChunkSize is the fixed width of a first-stage chunk in bits.
const ChunkSize = 5

// chunkTable is the canonical 32-entry dictionary. The entry for "00000"
// is the empty string; several distinct chunks share a symbol, so decoding
// without the positional overrides recorded at encode time resolves each
// symbol to its lowest-valued chunk.
var chunkTable = map[string]string{
	"00000": "",
	"00001": ".",
	"00010": ".",
	"00011": "..",
	"00100": ".",
	"00101": ". .",
	"00110": "..",
	"00111": "...",
	"01000": ".",
	"01001": ". .",
	"01010": ". .",
	"01011": ". ..",
	"01100": "..",
	"01101": ".. .",
	"01110": "...",
	"01111": "....",
	"10000": ".",
	"10001": ". .",
	"10010": ". .",
	"10011": ". ..",
	"10100": ". .",
	"10101": ". . .",
	"10110": ". ..",
	"10111": ". ...",
	"11000": "..",
	"11001": ".. .",
	"11010": ".. .",
	"11011": ".. ..",
	"11100": "...",
	"11101": "... .",
	"11110": "....",
	"11111": ".....",
}

// symbolTable is the second-stage dictionary over the dot/space alphabet.
var symbolTable = map[string]byte{
	".":     '*',
	"..":    '%',
	"...":   '$',
	"....":  '#',
	".....": '!',
	". .":   '&',
}

var (
	defaultChunkDict *ChunkDictionary
	// symbolPatterns holds the second-stage patterns, longest first.
	symbolPatterns []string
	// symbolReverse maps compact characters back to their patterns.
	symbolReverse map[byte]string
)

func init() {
	var err error
	defaultChunkDict, err = NewChunkDictionary(chunkTable)
	if err != nil {
		panic(fmt.Sprintf("canonical chunk table is invalid: %v", err))
	}

	symbolReverse = make(map[byte]string, len(symbolTable))
	for pattern, ch := range symbolTable {
		symbolPatterns = append(symbolPatterns, pattern)
		symbolReverse[ch] = pattern
	}
	sortLongestFirst(symbolPatterns)
}

func sortLongestFirst(tokens []string) {
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
}

// Default returns the dictionary built from the canonical fixed table.
func Default() *ChunkDictionary {
	return defaultChunkDict
}

// ChunkTable returns a copy of the chunk dictionary for embedding in a
// manifest.
func ChunkTable() map[string]string {
	m := make(map[string]string, len(chunkTable))
	for k, v := range chunkTable {
		m[k] = v
	}
	return m
}

// SymbolTable returns a copy of the symbol dictionary with single-character
// string values, for embedding in a manifest.
func SymbolTable() map[string]string {
	m := make(map[string]string, len(symbolTable))
	for k, v := range symbolTable {
		m[k] = string(v)
	}
	return m
}

// LookupError reports input with no dictionary entry at a given position.
type LookupError struct {
	Pos   int
	Token string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no dictionary entry for %q at position %d", e.Token, e.Pos)
}
