// Package gateway defines the platform collaborator: the inbound event model
// the dispatch pipeline consumes and the outbound action interface the
// handlers call. All platform-specific encoding (buttons, media rendering)
// stays behind the Gateway implementation.
package gateway

import "time"

// ChatKind distinguishes group chats from direct conversations.
type ChatKind string

const (
	KindGroup  ChatKind = "group"
	KindDirect ChatKind = "direct"
)

// ContentType identifies the structural media kind a message carries, if any.
type ContentType string

const (
	ContentPhoto     ContentType = "photo"
	ContentVideo     ContentType = "video"
	ContentSticker   ContentType = "sticker"
	ContentAnimation ContentType = "animation"
	ContentDocument  ContentType = "document"
	ContentVoice     ContentType = "voice"
	ContentVideoNote ContentType = "video_note"
	ContentAudio     ContentType = "audio"
	ContentContact   ContentType = "contact"
	ContentLocation  ContentType = "location"
	ContentPoll      ContentType = "poll"
	ContentDice      ContentType = "dice"
	ContentInline    ContentType = "inline"
)

// Member is a user identity in a membership-change event.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

// Ref points at an earlier message, used for reply-targeted commands.
type Ref struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
}

// Event is one inbound platform event. Exactly one event object flows through
// the pipeline per update; stages inspect it but never mutate it.
type Event struct {
	ID         string      `json:"id"` // assigned by the gateway (UUID)
	ChatID     string      `json:"chat_id"`
	ChatKind   ChatKind    `json:"chat_kind"`
	ChatTitle  string      `json:"chat_title,omitempty"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	MessageID  string      `json:"message_id"`
	Text       string      `json:"text,omitempty"`
	ReplyTo    *Ref        `json:"reply_to,omitempty"`
	Content    ContentType `json:"content,omitempty"` // empty for plain text
	Forwarded  bool        `json:"forwarded,omitempty"`
	Edited     bool        `json:"edited,omitempty"`
	NewMembers []Member    `json:"new_members,omitempty"`
	LeftMember *Member     `json:"left_member,omitempty"`
	Timestamp  time.Time   `json:"ts"`
}

// IsGroup reports whether the event happened in a group chat.
func (e *Event) IsGroup() bool {
	return e.ChatKind == KindGroup
}

// HasContent reports whether the event carries a structural media type.
func (e *Event) HasContent() bool {
	return e.Content != ""
}
