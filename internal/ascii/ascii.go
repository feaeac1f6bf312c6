package ascii

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// PrintableStart is the first byte of the printable band (space).
	PrintableStart byte = 32
	// PrintableEnd is the last byte of the printable band ('~').
	PrintableEnd byte = 126
)

// controlTable maps the control codes with dedicated substitutions.
// Control codes 16-26 and 28-31 use the linear rules in normalizeByte,
// and bytes above 127 use the modulo rule.
var controlTable = map[byte]byte{
	0:   '0', // NUL
	1:   '1',
	2:   '2',
	3:   '3',
	4:   '4',
	5:   '5',
	6:   '6',
	7:   '7',
	8:   'b', // BS
	9:   ' ', // TAB
	10:  ' ', // LF
	11:  'v', // VT
	12:  'f', // FF
	13:  ' ', // CR
	14:  'e', // SO
	15:  'f', // SI
	27:  'E', // ESC
	127: 'D', // DEL
}

// Stats tracks what Normalize changed.
type Stats struct {
	// TotalBytes is the number of input bytes processed.
	TotalBytes int
	// ConvertedBytes is the number of bytes that required substitution.
	ConvertedBytes int
	// Histogram counts substitutions per original byte value.
	Histogram map[byte]int
}

// InvalidInputError reports the first byte outside the printable band.
type InvalidInputError struct {
	Pos  int
	Byte byte
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("non-printable byte 0x%02X at position %d", e.Byte, e.Pos)
}

// normalizeByte maps a single byte into [PrintableStart, PrintableEnd].
func normalizeByte(b byte) byte {
	if b >= PrintableStart && b <= PrintableEnd {
		return b
	}
	if to, ok := controlTable[b]; ok {
		return to
	}
	if b > 127 {
		return 48 + (b-128)%75
	}
	switch {
	case b >= 16 && b <= 26:
		return 'A' + (b - 16)
	case b >= 28 && b <= 31:
		return 'L' + (b - 28)
	}
	return '?'
}

// Normalize maps every byte of data into the printable band. It is total:
// printable bytes pass through unchanged and every other byte gets a
// deterministic substitution. The returned Stats records each substitution.
func Normalize(data []byte) ([]byte, *Stats) {
	stats := &Stats{
		TotalBytes: len(data),
		Histogram:  make(map[byte]int),
	}
	out := make([]byte, len(data))
	for i, b := range data {
		n := normalizeByte(b)
		if n != b {
			stats.ConvertedBytes++
			stats.Histogram[b]++
		}
		out[i] = n
	}
	return out, stats
}

// Validate scans data for bytes outside the printable band and returns an
// InvalidInputError for the first offender.
func Validate(data []byte) error {
	for i, b := range data {
		if b < PrintableStart || b > PrintableEnd {
			return &InvalidInputError{Pos: i, Byte: b}
		}
	}
	return nil
}

// ConversionMap returns the original-to-printable substitutions observed
// during the Normalize call that produced s.
func (s *Stats) ConversionMap() map[byte]byte {
	if len(s.Histogram) == 0 {
		return nil
	}
	m := make(map[byte]byte, len(s.Histogram))
	for b := range s.Histogram {
		m[b] = normalizeByte(b)
	}
	return m
}

// Summary renders a human-readable conversion report, most frequent
// substitutions first.
func (s *Stats) Summary() string {
	if s.ConvertedBytes == 0 {
		return "no conversions needed, input is printable"
	}
	var sb strings.Builder
	pct := float64(s.ConvertedBytes) / float64(s.TotalBytes) * 100
	fmt.Fprintf(&sb, "%d of %d bytes converted (%.2f%%)\n", s.ConvertedBytes, s.TotalBytes, pct)

	type entry struct {
		b byte
		n int
	}
	entries := make([]entry, 0, len(s.Histogram))
	for b, n := range s.Histogram {
		entries = append(entries, entry{b, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].b < entries[j].b
	})
	const maxShown = 10
	for i, e := range entries {
		if i == maxShown {
			fmt.Fprintf(&sb, "  ... %d more unique bytes\n", len(entries)-maxShown)
			break
		}
		fmt.Fprintf(&sb, "  0x%02X -> %q (%d times)\n", e.b, string(normalizeByte(e.b)), e.n)
	}
	return sb.String()
}
