// Package lock implements the content-moderation engine: a per-chat map of
// feature -> punishment rules, deterministic content classification, and the
// punishment state machine that runs in the pipeline's earliest stage.
package lock

import "github.com/guardian/groupbot/internal/gateway"

// Lockable feature names. A chat binds any subset of these to punishments.
const (
	// Structural content types, matching gateway.ContentType values.
	FeaturePhoto     = "photo"
	FeatureVideo     = "video"
	FeatureSticker   = "sticker"
	FeatureAnimation = "animation"
	FeatureDocument  = "document"
	FeatureVoice     = "voice"
	FeatureVideoNote = "video_note"
	FeatureAudio     = "audio"
	FeatureContact   = "contact"
	FeatureLocation  = "location"
	FeaturePoll      = "poll"
	FeatureDice      = "dice"
	FeatureInline    = "inline"

	// Message properties.
	FeatureForward = "forward"
	FeatureEdit    = "edit"

	// Membership.
	FeatureBot = "bot"

	// Text content checks, in classification priority order.
	FeatureLink        = "link"
	FeatureHashtag     = "hashtag"
	FeatureArabicOnly  = "arabic_only"
	FeatureEnglishOnly = "english_only"
	FeatureLongMessage = "long_message"
	FeatureCommand     = "command"
	FeatureProfanity   = "profanity"
	FeaturePersian     = "persian"

	// Behavioral.
	FeatureFlood = "flood"
)

// Features lists every lockable feature, for command parsing and listings.
var Features = []string{
	FeaturePhoto, FeatureVideo, FeatureSticker, FeatureAnimation,
	FeatureDocument, FeatureVoice, FeatureVideoNote, FeatureAudio,
	FeatureContact, FeatureLocation, FeaturePoll, FeatureDice, FeatureInline,
	FeatureForward, FeatureEdit, FeatureBot,
	FeatureLink, FeatureHashtag, FeatureArabicOnly, FeatureEnglishOnly,
	FeatureLongMessage, FeatureCommand, FeatureProfanity, FeaturePersian,
	FeatureFlood,
}

var featureSet = func() map[string]bool {
	m := make(map[string]bool, len(Features))
	for _, f := range Features {
		m[f] = true
	}
	return m
}()

// KnownFeature reports whether name is a lockable feature.
func KnownFeature(name string) bool {
	return featureSet[name]
}

// contentFeature maps a structural content type to its feature name.
func contentFeature(c gateway.ContentType) string {
	return string(c)
}
