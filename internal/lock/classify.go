package lock

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
)

// longMessageLimit is the character count over which a text message counts
// as over-length.
const longMessageLimit = 4096

// Compiled patterns for text classification. Compiled once at package init
// and reused for every event, safe for concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, and t.me invite links.
	urlPattern = regexp.MustCompile(`(?i)(https?://[^\s<>"]+|www\.[^\s<>"]+|t\.me/[^\s<>"]+)`)

	// hashtagPattern matches a # followed by word characters.
	hashtagPattern = regexp.MustCompile(`#\w+`)

	// arabicPattern matches text consisting solely of Arabic-block runes
	// after stripping digits, whitespace, and common punctuation.
	arabicPattern = regexp.MustCompile(`^[\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{08A0}-\x{08FF}]+$`)

	// latinPattern matches text consisting solely of Latin letters after
	// the same stripping.
	latinPattern = regexp.MustCompile(`^[a-zA-Z]+$`)

	// persianPattern matches the Persian-specific letters absent from
	// standard Arabic (پ چ ژ گ ی ک).
	persianPattern = regexp.MustCompile(`[\x{067E}\x{0686}\x{0698}\x{06AF}\x{06CC}\x{06A9}]`)

	// strippable removes neutral characters before the script-only checks.
	strippable = regexp.MustCompile(`[\s\d.,!?؟،؛:;()\[\]{}\-_]`)
)

// ContainsLink reports whether text carries a URL or invite link.
func ContainsLink(text string) bool {
	return urlPattern.MatchString(text)
}

// ContainsHashtag reports whether text carries a hashtag.
func ContainsHashtag(text string) bool {
	return hashtagPattern.MatchString(text)
}

// IsArabicOnly reports whether text contains only Arabic script (digits and
// punctuation are neutral). Empty text counts as Arabic-only.
func IsArabicOnly(text string) bool {
	cleaned := strippable.ReplaceAllString(text, "")
	if cleaned == "" {
		return true
	}
	return arabicPattern.MatchString(cleaned)
}

// IsEnglishOnly reports whether text contains only Latin script (digits and
// punctuation are neutral). Empty text counts as English-only.
func IsEnglishOnly(text string) bool {
	cleaned := strippable.ReplaceAllString(text, "")
	if cleaned == "" {
		return true
	}
	return latinPattern.MatchString(cleaned)
}

// IsLongMessage reports whether text exceeds the over-length limit.
func IsLongMessage(text string) bool {
	return len([]rune(text)) > longMessageLimit
}

// IsCommand reports whether text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// ContainsPersian reports whether text carries Persian-specific letters.
func ContainsPersian(text string) bool {
	return persianPattern.MatchString(text)
}

// profaneTerms is the seed profanity list. Matching is word-boundary based
// after lowercasing, so "classic" does not match "ass".
var profaneTerms = map[string]bool{
	"fuck": true, "shit": true, "bitch": true, "bastard": true,
	"asshole": true, "dick": true, "cunt": true,
}

// ContainsProfanity reports whether text contains a profane term.
func ContainsProfanity(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if profaneTerms[w] {
			return true
		}
	}
	return false
}

// textCheck pairs a feature name with its detection function. Order matters:
// the first locked-and-matching check wins.
type textCheck struct {
	feature string
	match   func(string) bool
}

// textChecks is the fixed classification priority for plain-text messages.
var textChecks = []textCheck{
	{FeatureLink, ContainsLink},
	{FeatureHashtag, ContainsHashtag},
	{FeatureArabicOnly, func(t string) bool { return !IsArabicOnly(t) }},
	{FeatureEnglishOnly, func(t string) bool { return !IsEnglishOnly(t) }},
	{FeatureLongMessage, IsLongMessage},
	{FeatureCommand, IsCommand},
	{FeatureProfanity, ContainsProfanity},
	{FeaturePersian, ContainsPersian},
}

// Classify maps an event to the single violated feature among the chat's
// active locks. Classification follows a fixed priority order (structural
// content type, then the forwarded flag, then the text checks) and reports
// at most one violation even when several rules would match. A category
// whose lock is inactive does not shield the message: an unlocked content
// type falls through to the forward check, and an unlocked forward flag
// falls through to the text checks. The bot-member and edit features are
// handled by their own enforcement paths, and flood is consulted by the
// engine only after Classify finds nothing.
func Classify(evt *gateway.Event, locks map[string]group.Punishment) (string, bool) {
	if evt.HasContent() {
		feature := contentFeature(evt.Content)
		if _, locked := locks[feature]; locked {
			return feature, true
		}
	}

	if evt.Forwarded {
		if _, locked := locks[FeatureForward]; locked {
			return FeatureForward, true
		}
	}

	if evt.Text != "" {
		for _, check := range textChecks {
			if _, locked := locks[check.feature]; !locked {
				continue
			}
			if check.match(evt.Text) {
				return check.feature, true
			}
		}
	}

	return "", false
}
