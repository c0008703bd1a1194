// Package glyph reverses the font-substitution obfuscation used by the source
// documents. The tables here were reverse-engineered from the embedded font
// remapping and are a fixed data contract: they cannot be derived and must not
// be "corrected".
package glyph

import (
	"regexp"
	"strconv"
	"strings"
)

// charMap covers the direct single-character substitutions: uppercase D-Z
// shift to lowercase a-w, the punctuation run $ through : shifts to uppercase
// A-W, and backslash maps to y.
var charMap = map[rune]rune{
	'D': 'a', 'E': 'b', 'F': 'c', 'G': 'd', 'H': 'e', 'I': 'f', 'J': 'g', 'K': 'h',
	'L': 'i', 'M': 'j', 'N': 'k', 'O': 'l', 'P': 'm', 'Q': 'n', 'R': 'o', 'S': 'p',
	'T': 'q', 'U': 'r', 'V': 's', 'W': 't', 'X': 'u', 'Y': 'v', 'Z': 'w',

	'$': 'A', '%': 'B', '&': 'C', '\'': 'D', '(': 'E', ')': 'F', '*': 'G', '+': 'H',
	',': 'I', '-': 'J', '.': 'K', '/': 'L', '0': 'M', '1': 'N', '2': 'O', '3': 'P',
	'4': 'Q', '5': 'R', '6': 'S', '7': 'T', '8': 'U', '9': 'V', ':': 'W',

	'\\': 'y',
}

var cidPattern = regexp.MustCompile(`\(cid[W]?:(\d+)\)`)

// Decode maps obfuscated text back to plain text in one left-to-right scan.
// Indexed-code groups ("(cid:N)" and the "(cidW:N)" variant) decode through
// the numeric table; everything else goes through charMap or passes through
// unchanged. Decode never fails: unknown codes decode to nothing and unknown
// characters are kept as-is. Runs of whitespace collapse to a single space.
func Decode(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))

	i := 0
	for i < len(raw) {
		if prefixLen := cidPrefix(raw[i:]); prefixLen > 0 {
			end := strings.IndexByte(raw[i:], ')')
			if end != -1 {
				code := raw[i+prefixLen : i+end]
				if n, err := strconv.Atoi(code); err == nil {
					b.WriteString(decodeCID(n))
				}
				i += end + 1
				continue
			}
		}

		if raw[i] >= 0x80 {
			// Multi-byte runes are never part of the obfuscated alphabet.
			b.WriteByte(raw[i])
			i++
			continue
		}

		r := rune(raw[i])
		if mapped, ok := charMap[r]; ok {
			b.WriteRune(mapped)
		} else {
			b.WriteRune(r)
		}
		i++
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// cidPrefix reports the length of an indexed-code prefix at the start of s, or
// zero when s does not open a code group.
func cidPrefix(s string) int {
	if strings.HasPrefix(s, "(cid:") {
		return len("(cid:")
	}
	if strings.HasPrefix(s, "(cidW:") {
		return len("(cidW:")
	}
	return 0
}

// decodeCID resolves one indexed code. Codes outside the table decode to the
// empty string: dropping a symbol beats losing the line.
func decodeCID(n int) string {
	switch {
	case n >= 19 && n <= 28:
		return strconv.Itoa(n - 19)
	case n == 17:
		return "."
	case n == 16, n == 18:
		return "/"
	case n == 15:
		return " "
	case n == 29:
		return ":"
	default:
		return ""
	}
}

// StripCIDs removes indexed-code wrapper syntax without decoding it. Used when
// a token should reduce to its plain-character remainder, e.g. serial numbers.
func StripCIDs(s string) string {
	return cidPattern.ReplaceAllString(s, "")
}

// CIDDigits returns the decoded digit values of every indexed-code group in s,
// in order. Codes that do not decode to a single digit are skipped.
func CIDDigits(s string) []int {
	matches := cidPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	digits := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 19 && n <= 28 {
			digits = append(digits, n-19)
		}
	}
	return digits
}
