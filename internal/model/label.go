package model

import (
	"strconv"
	"strings"
)

// LabelFormat is the alphabet used to label answer options. Grading always
// works on option positions; the format only affects rendering and parsing.
type LabelFormat string

const (
	LabelLettersUpper LabelFormat = "letters_upper"
	LabelLettersLower LabelFormat = "letters_lower"
	LabelNumbers      LabelFormat = "numbers"
)

var validLabelFormats = map[LabelFormat]bool{
	LabelLettersUpper: true,
	LabelLettersLower: true,
	LabelNumbers:      true,
}

// IsValidLabelFormat checks if a label format name is known.
func IsValidLabelFormat(f string) bool {
	return validLabelFormats[LabelFormat(f)]
}

// MaxOptions is the number of options the format can label, or 0 when it is
// unbounded.
func (f LabelFormat) MaxOptions() int {
	if f == LabelNumbers {
		return 0
	}
	return 26
}

// Label renders the 0-based option position.
func (f LabelFormat) Label(position int) string {
	switch f {
	case LabelLettersLower:
		return string(rune('a' + position))
	case LabelNumbers:
		return strconv.Itoa(position + 1)
	default:
		return string(rune('A' + position))
	}
}

// Position parses a submitted label back into a 0-based option position.
// Letters are matched case-insensitively; numeric labels written by a
// spreadsheet as "2.0" are accepted.
func (f LabelFormat) Position(label string) (int, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	switch f {
	case LabelNumbers:
		label = strings.TrimSuffix(label, ".0")
		n, err := strconv.Atoi(label)
		if err != nil || n < 1 {
			return 0, false
		}
		return n - 1, true
	default:
		if len(label) != 1 {
			return 0, false
		}
		c := strings.ToUpper(label)[0]
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		return int(c - 'A'), true
	}
}

// LaTeXCounter is the exam-class counter command matching the format.
func (f LabelFormat) LaTeXCounter() string {
	switch f {
	case LabelLettersLower:
		return `\alph{choice}`
	case LabelNumbers:
		return `\arabic{choice}`
	default:
		return `\Alph{choice}`
	}
}
