package games

import (
	"strings"
	"unicode"
)

// foldable maps Arabic letter variants onto one canonical form so answers
// match regardless of which variant the player typed.
var foldable = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ة': 'ه',
	'ى': 'ي',
	'ؤ': 'و',
	'ئ': 'ي',
}

// isDiacritic reports whether r is an Arabic short vowel mark or the
// tatweel stretch character, both dropped before comparison.
func isDiacritic(r rune) bool {
	return (r >= 0x064B && r <= 0x0652) || r == 0x0640
}

// Normalize canonicalizes a player's answer: trim, lowercase, fold Arabic
// letter variants, and strip diacritics and punctuation, so that "أحمد" and
// "احمد" compare equal, "keyboard!" matches "keyboard", and casing never
// matters for Latin answers. Inner whitespace is kept so multi-word answers
// stay distinct.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if isDiacritic(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		if folded, ok := foldable[r]; ok {
			r = folded
		}
		b.WriteRune(r)
	}
	return b.String()
}
