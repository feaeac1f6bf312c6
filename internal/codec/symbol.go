package codec

import (
	"strings"
)

// EncodeSymbols compresses dot/space text by greedy longest-match against
// the second-stage table, one compact character per matched run. Not every
// first-stage output is in the table's domain: a space that cannot be
// absorbed by the ". ." pattern has no entry and fails with a LookupError
// carrying the offending position. Callers that need totality fall back to
// storing the first-stage text and record that choice in the manifest.
func EncodeSymbols(text string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(text) {
		matched := false
		for _, pattern := range symbolPatterns {
			if strings.HasPrefix(text[i:], pattern) {
				sb.WriteByte(symbolTable[pattern])
				i += len(pattern)
				matched = true
				break
			}
		}
		if !matched {
			return "", &LookupError{Pos: i, Token: residue(text, i)}
		}
	}
	return sb.String(), nil
}

// DecodeSymbols expands compact characters back into dot/space text using
// the canonical table. Any character without a table entry fails with its
// position.
func DecodeSymbols(encoded string) (string, error) {
	return decodeSymbols(encoded, symbolReverse)
}

// DecodeSymbolsWith decodes against a pattern-to-character table as
// embedded in a manifest, so reconstruction does not depend on the
// compiled-in constants.
func DecodeSymbolsWith(encoded string, table map[string]string) (string, error) {
	reverse := make(map[byte]string, len(table))
	for pattern, ch := range table {
		if len(ch) != 1 {
			return "", &LookupError{Pos: 0, Token: ch}
		}
		reverse[ch[0]] = pattern
	}
	return decodeSymbols(encoded, reverse)
}

func decodeSymbols(encoded string, reverse map[byte]string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(encoded); i++ {
		pattern, ok := reverse[encoded[i]]
		if !ok {
			return "", &LookupError{Pos: i, Token: string(encoded[i])}
		}
		sb.WriteString(pattern)
	}
	return sb.String(), nil
}
