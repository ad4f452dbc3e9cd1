// Package gatewaytest provides an in-memory Gateway for handler and
// enforcement tests. It records every action in order and lets tests
// script member statuses and admin lists.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/guardian/groupbot/internal/gateway"
)

// Action is one recorded gateway call.
type Action struct {
	Name   string // send_message, delete_message, kick_member, ...
	ChatID string
	Target string // user or message ID, depending on the action
	Text   string // message text or title, when applicable
}

// Fake implements gateway.Gateway, recording calls instead of performing
// them. Safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	actions  []Action
	Statuses map[string]gateway.MemberStatus // userID -> status
	Admins   []gateway.Member
	Err      error // returned from every call when set
}

// NewFake returns a Fake where every member, including the bot, is an
// administrator unless overridden via Statuses.
func NewFake() *Fake {
	return &Fake{Statuses: make(map[string]gateway.MemberStatus)}
}

// Actions returns a copy of the recorded actions in call order.
func (f *Fake) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// Named returns the recorded actions with the given name.
func (f *Fake) Named(name string) []Action {
	var out []Action
	for _, a := range f.Actions() {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// Reset clears the recorded actions.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = nil
}

func (f *Fake) record(a Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.actions = append(f.actions, a)
	return nil
}

func (f *Fake) SendMessage(_ context.Context, chatID, text string) error {
	return f.record(Action{Name: "send_message", ChatID: chatID, Text: text})
}

func (f *Fake) Reply(_ context.Context, chatID, messageID, text string) error {
	return f.record(Action{Name: "reply", ChatID: chatID, Target: messageID, Text: text})
}

func (f *Fake) DeleteMessage(_ context.Context, chatID, messageID string) error {
	return f.record(Action{Name: "delete_message", ChatID: chatID, Target: messageID})
}

func (f *Fake) KickMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "kick_member", ChatID: chatID, Target: userID})
}

func (f *Fake) BanMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "ban_member", ChatID: chatID, Target: userID})
}

func (f *Fake) UnbanMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "unban_member", ChatID: chatID, Target: userID})
}

func (f *Fake) RestrictMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "restrict_member", ChatID: chatID, Target: userID})
}

func (f *Fake) UnrestrictMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "unrestrict_member", ChatID: chatID, Target: userID})
}

func (f *Fake) PromoteMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "promote_member", ChatID: chatID, Target: userID})
}

func (f *Fake) DemoteMember(_ context.Context, chatID, userID string) error {
	return f.record(Action{Name: "demote_member", ChatID: chatID, Target: userID})
}

func (f *Fake) SetChatTitle(_ context.Context, chatID, title string) error {
	return f.record(Action{Name: "set_chat_title", ChatID: chatID, Text: title})
}

func (f *Fake) SetChatDescription(_ context.Context, chatID, description string) error {
	return f.record(Action{Name: "set_chat_description", ChatID: chatID, Text: description})
}

func (f *Fake) ChatAdministrators(_ context.Context, _ string) ([]gateway.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Admins, nil
}

func (f *Fake) MemberStatus(_ context.Context, _, userID string) (gateway.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if s, ok := f.Statuses[userID]; ok {
		return s, nil
	}
	return gateway.StatusAdministrator, nil
}

var _ gateway.Gateway = (*Fake)(nil)
