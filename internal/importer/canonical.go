package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// translit maps letters that survive combining-mark stripping (or that
// lowercase badly, like the Turkish dotless ı) to their base Latin form.
// Applied before Unicode decomposition so that "Pişirme" and "PISIRME"
// canonicalize identically.
var translit = map[rune]string{
	'ı': "i", 'İ': "I",
	'ş': "s", 'Ş': "S",
	'ğ': "g", 'Ğ': "G",
	'ç': "c", 'Ç': "C",
	'ö': "o", 'Ö': "O",
	'ü': "u", 'Ü': "U",
	'ß': "ss",
	'æ': "ae", 'Æ': "AE",
	'ø': "o", 'Ø': "O",
	'å': "a", 'Å': "A",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'þ': "th", 'Þ': "TH",
	'œ': "oe", 'Œ': "OE",
	'ł': "l", 'Ł': "L",
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := translit[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonicalize reduces a display name to the form used for entity equality:
// transliterated, decomposed with combining marks stripped, case-folded,
// internal whitespace collapsed, trimmed. Two names with equal canonical
// forms are treated as the same real-world entity.
func Canonicalize(name string) string {
	s := transliterate(name)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Slugify derives a URL-safe slug from a display name using the same
// transliteration as Canonicalize, so identical input always yields an
// identical slug. Collision suffixing is the resolver's job.
func Slugify(name string) string {
	canonical := Canonicalize(name)
	var b strings.Builder
	b.Grow(len(canonical))
	lastDash := true // suppress a leading dash
	for _, r := range canonical {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NormalizeSpecKey folds a "Spec:<key>" column header into the normalized
// key stored in the variant spec map.
func NormalizeSpecKey(key string) string {
	return Slugify(key)
}
