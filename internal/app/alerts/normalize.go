package alerts

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform decomposes to NFD, strips combining marks and recomposes, so
// "Lớp" and "Lop" compare equal.
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold normalizes Vietnamese text for comparison: lowercase, diacritics
// removed, đ/Đ mapped to d (đ is a base letter, not a combining mark, so the
// Unicode mark stripping alone does not catch it).
func Fold(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "đ", "d")
	return strings.TrimSpace(folded)
}
