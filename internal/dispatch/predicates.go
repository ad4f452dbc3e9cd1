package dispatch

import (
	"regexp"
	"strings"

	"github.com/guardian/groupbot/internal/gateway"
)

// TextEquals matches a plain-text message exactly (after trimming).
func TextEquals(trigger string) Predicate {
	return func(evt *gateway.Event) bool {
		return strings.TrimSpace(evt.Text) == trigger
	}
}

// TextPrefix matches a message beginning with trigger.
func TextPrefix(trigger string) Predicate {
	return func(evt *gateway.Event) bool {
		return strings.HasPrefix(strings.TrimSpace(evt.Text), trigger)
	}
}

// TextPattern matches message text against a compiled pattern.
func TextPattern(re *regexp.Regexp) Predicate {
	return func(evt *gateway.Event) bool {
		return evt.Text != "" && re.MatchString(evt.Text)
	}
}

// HasText matches any non-empty plain-text message.
func HasText(evt *gateway.Event) bool {
	return evt.Text != ""
}

// InGroup scopes a predicate to group chats.
func InGroup(evt *gateway.Event) bool {
	return evt.ChatKind == gateway.KindGroup
}

// InDirect scopes a predicate to direct conversations.
func InDirect(evt *gateway.Event) bool {
	return evt.ChatKind == gateway.KindDirect
}

// FromSender matches events from one specific sender, e.g. the designated
// operator.
func FromSender(id string) Predicate {
	return func(evt *gateway.Event) bool {
		return evt.SenderID == id
	}
}

// HasNewMembers matches membership-join events.
func HasNewMembers(evt *gateway.Event) bool {
	return len(evt.NewMembers) > 0
}

// HasLeftMember matches membership-departure events.
func HasLeftMember(evt *gateway.Event) bool {
	return evt.LeftMember != nil
}

// IsEdited matches edited-message events.
func IsEdited(evt *gateway.Event) bool {
	return evt.Edited
}

// Any matches everything.
func Any(evt *gateway.Event) bool {
	return true
}

// All combines predicates conjunctively.
func All(preds ...Predicate) Predicate {
	return func(evt *gateway.Event) bool {
		for _, p := range preds {
			if !p(evt) {
				return false
			}
		}
		return true
	}
}
