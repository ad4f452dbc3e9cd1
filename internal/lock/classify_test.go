package lock

import (
	"strings"
	"testing"

	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
)

func allTextLocks() map[string]group.Punishment {
	locks := make(map[string]group.Punishment)
	for _, check := range textChecks {
		locks[check.feature] = group.PunishDelete
	}
	return locks
}

func TestContainsLink(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"visit https://example.com now", true},
		{"visit http://example.com", true},
		{"see www.example.com", true},
		{"join t.me/somechat", true},
		{"plain text", false},
		{"mention of dot com", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ContainsLink(tc.text); got != tc.want {
			t.Errorf("ContainsLink(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestContainsHashtag(t *testing.T) {
	if !ContainsHashtag("news #breaking today") {
		t.Error("expected hashtag match")
	}
	if ContainsHashtag("number # alone") {
		t.Error("bare # should not match")
	}
}

func TestScriptChecks(t *testing.T) {
	if !IsArabicOnly("مرحبا بالجميع") {
		t.Error("Arabic text should be Arabic-only")
	}
	if !IsArabicOnly("مرحبا 123!") {
		t.Error("digits and punctuation should be neutral")
	}
	if IsArabicOnly("hello مرحبا") {
		t.Error("mixed text should not be Arabic-only")
	}
	if !IsEnglishOnly("hello there, 42!") {
		t.Error("Latin text with neutral chars should be English-only")
	}
	if IsEnglishOnly("hello مرحبا") {
		t.Error("mixed text should not be English-only")
	}
}

func TestContainsPersian(t *testing.T) {
	if !ContainsPersian("سلام، چطوری؟") {
		t.Error("Persian-specific letters should match")
	}
	if ContainsPersian("مرحبا بالجميع") {
		t.Error("plain Arabic should not match")
	}
}

func TestContainsProfanity(t *testing.T) {
	if !ContainsProfanity("what the FUCK is this") {
		t.Error("expected profanity match, case-insensitive")
	}
	if ContainsProfanity("a classic assortment") {
		t.Error("substrings inside words should not match")
	}
}

func TestIsLongMessage(t *testing.T) {
	if IsLongMessage(strings.Repeat("a", longMessageLimit)) {
		t.Error("exactly at the limit should pass")
	}
	if !IsLongMessage(strings.Repeat("ن", longMessageLimit+1)) {
		t.Error("one rune over the limit should fail, counted in runes")
	}
}

func groupEvent(text string) *gateway.Event {
	return &gateway.Event{ChatID: "c1", ChatKind: gateway.KindGroup, SenderID: "u1", Text: text}
}

func TestClassifyContentTypeFirst(t *testing.T) {
	locks := allTextLocks()
	locks[FeaturePhoto] = group.PunishWarn

	evt := groupEvent("caption with https://example.com")
	evt.Content = gateway.ContentPhoto

	feature, violated := Classify(evt, locks)
	if !violated || feature != FeaturePhoto {
		t.Fatalf("got (%q, %v), want photo to take priority over link", feature, violated)
	}
}

func TestClassifyUnlockedPlainPhotoPasses(t *testing.T) {
	// A photo in a chat that locks only links: photos carry no text, so
	// nothing violates.
	locks := map[string]group.Punishment{FeatureLink: group.PunishDelete}
	evt := groupEvent("")
	evt.Content = gateway.ContentPhoto

	if feature, violated := Classify(evt, locks); violated {
		t.Fatalf("unlocked photo classified as %q", feature)
	}
}

func TestClassifyUnlockedContentFallsToForward(t *testing.T) {
	// Photos are unlocked but forwards are not: a forwarded photo still
	// violates the forward lock.
	locks := map[string]group.Punishment{FeatureForward: group.PunishWarn}
	evt := groupEvent("")
	evt.Content = gateway.ContentPhoto
	evt.Forwarded = true

	feature, violated := Classify(evt, locks)
	if !violated || feature != FeatureForward {
		t.Fatalf("got (%q, %v), want forward", feature, violated)
	}
}

func TestClassifyUnlockedForwardFallsToText(t *testing.T) {
	// Forwards are unlocked but links are not: a forwarded message carrying
	// a link still violates the link lock.
	locks := map[string]group.Punishment{FeatureLink: group.PunishDelete}
	evt := groupEvent("fwd: https://example.com")
	evt.Forwarded = true

	feature, violated := Classify(evt, locks)
	if !violated || feature != FeatureLink {
		t.Fatalf("got (%q, %v), want link", feature, violated)
	}

	// The whole chain unlocked for the matching categories: no violation.
	evt.Content = gateway.ContentPhoto
	if feature, violated := Classify(evt, map[string]group.Punishment{FeatureHashtag: group.PunishDelete}); violated {
		t.Fatalf("forwarded photo with only hashtag locked classified as %q", feature)
	}
}

func TestClassifyForwardBeforeText(t *testing.T) {
	locks := map[string]group.Punishment{
		FeatureForward: group.PunishKick,
		FeatureLink:    group.PunishDelete,
	}
	evt := groupEvent("fwd: https://example.com")
	evt.Forwarded = true

	feature, violated := Classify(evt, locks)
	if !violated || feature != FeatureForward {
		t.Fatalf("got (%q, %v), want forward to take priority", feature, violated)
	}
}

func TestClassifySingleViolation(t *testing.T) {
	// Text matching several locked rules reports only the highest-priority
	// one: link beats hashtag beats command.
	locks := allTextLocks()
	delete(locks, FeatureArabicOnly)
	delete(locks, FeatureEnglishOnly)

	feature, violated := Classify(groupEvent("/go #tag https://x.example"), locks)
	if !violated || feature != FeatureLink {
		t.Fatalf("got (%q, %v), want link", feature, violated)
	}

	feature, violated = Classify(groupEvent("/go #tag"), locks)
	if !violated || feature != FeatureHashtag {
		t.Fatalf("got (%q, %v), want hashtag", feature, violated)
	}

	feature, violated = Classify(groupEvent("/go"), locks)
	if !violated || feature != FeatureCommand {
		t.Fatalf("got (%q, %v), want command", feature, violated)
	}
}

func TestClassifyOnlyLockedFeatures(t *testing.T) {
	locks := map[string]group.Punishment{FeatureHashtag: group.PunishDelete}

	// Link present but unlocked: hashtag (locked, lower priority) wins.
	feature, violated := Classify(groupEvent("#tag https://x.example"), locks)
	if !violated || feature != FeatureHashtag {
		t.Fatalf("got (%q, %v), want hashtag", feature, violated)
	}

	// Nothing locked matches.
	if feature, violated := Classify(groupEvent("hello"), locks); violated {
		t.Fatalf("clean text classified as %q", feature)
	}
}

func TestClassifyEmptyLocks(t *testing.T) {
	if feature, violated := Classify(groupEvent("https://example.com"), nil); violated {
		t.Fatalf("no locks but classified as %q", feature)
	}
}

func TestKnownFeature(t *testing.T) {
	for _, f := range Features {
		if !KnownFeature(f) {
			t.Errorf("feature %q not recognized", f)
		}
	}
	if KnownFeature("gif") {
		t.Error("unknown name recognized")
	}
}
