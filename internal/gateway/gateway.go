package gateway

import "context"

// MemberStatus is the platform's view of a member's standing in a chat.
type MemberStatus string

const (
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusBanned        MemberStatus = "banned"
)

// Gateway is the outbound half of the platform collaborator. Implementations
// are responsible for all wire encoding; callers treat every action as
// best-effort and must tolerate failures without aborting the dispatch loop.
type Gateway interface {
	// SendMessage posts text to a chat.
	SendMessage(ctx context.Context, chatID, text string) error
	// Reply posts text referencing an earlier message.
	Reply(ctx context.Context, chatID, messageID, text string) error
	// DeleteMessage removes a message from a chat.
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	// KickMember removes a member but allows them to rejoin.
	KickMember(ctx context.Context, chatID, userID string) error
	// BanMember removes a member and prevents rejoining.
	BanMember(ctx context.Context, chatID, userID string) error
	// UnbanMember lifts a ban, allowing the user to rejoin.
	UnbanMember(ctx context.Context, chatID, userID string) error
	// RestrictMember revokes a member's right to send messages.
	RestrictMember(ctx context.Context, chatID, userID string) error
	// UnrestrictMember restores a member's right to send messages.
	UnrestrictMember(ctx context.Context, chatID, userID string) error
	// PromoteMember grants platform-level admin rights.
	PromoteMember(ctx context.Context, chatID, userID string) error
	// DemoteMember revokes platform-level admin rights.
	DemoteMember(ctx context.Context, chatID, userID string) error
	// SetChatTitle updates the chat title.
	SetChatTitle(ctx context.Context, chatID, title string) error
	// SetChatDescription updates the chat description.
	SetChatDescription(ctx context.Context, chatID, description string) error
	// ChatAdministrators lists the platform-side administrators of a chat.
	ChatAdministrators(ctx context.Context, chatID string) ([]Member, error)
	// MemberStatus reports a member's standing; used to check whether the
	// bot itself has the rights to moderate.
	MemberStatus(ctx context.Context, chatID, userID string) (MemberStatus, error)
}
