// Package perm resolves an actor's effective role and authorizes actions.
// It is purely a decision layer over the role hierarchy and stored role
// records: nothing here mutates state.
//
// Store failures degrade to the least-privileged answer (Member / deny) so
// an outage can never grant access, and never crash the dispatch loop.
package perm

import (
	"context"
	"log"

	"github.com/guardian/groupbot/internal/roles"
	"github.com/guardian/groupbot/internal/user"
)

// Gate authorizes actions against the role hierarchy.
type Gate struct {
	users *user.Store

	// superOperator is the bot-wide operator ID. It passes every check
	// unconditionally, bypassing rank comparison entirely. Intentional:
	// the operator must never be locked out by role state.
	superOperator string
}

// NewGate creates a permission gate.
func NewGate(users *user.Store, superOperatorID string) *Gate {
	return &Gate{users: users, superOperator: superOperatorID}
}

// IsSuperOperator reports whether id is the bot-wide operator.
func (g *Gate) IsSuperOperator(id string) bool {
	return g.superOperator != "" && id == g.superOperator
}

// EffectiveRole returns the higher-privilege of the actor's global and
// chat-scoped roles. The chat-scoped role defaults to Member.
func (g *Gate) EffectiveRole(ctx context.Context, userID, chatID string) roles.Role {
	global, err := g.users.GlobalRole(ctx, userID)
	if err != nil {
		log.Printf("[perm] global role %s: %v (degrading to Member)", userID, err)
		global = roles.Member
	}
	if chatID == "" {
		return global
	}

	chat, err := g.users.ChatRole(ctx, chatID, userID)
	if err != nil {
		log.Printf("[perm] chat role %s/%s: %v (degrading to Member)", chatID, userID, err)
		chat = roles.Member
	}

	if roles.OutranksOrEqual(global, chat) {
		return global
	}
	return chat
}

// Authorize reports whether the actor may perform an action gated at the
// required rank. The super-operator always passes.
func (g *Gate) Authorize(ctx context.Context, userID, chatID string, required roles.Role) bool {
	if g.IsSuperOperator(userID) {
		return true
	}
	return roles.OutranksOrEqual(g.EffectiveRole(ctx, userID, chatID), required)
}

// AuthorizeAction reports whether actor may perform a moderation action on
// target in the chat: actor must hold the required rank, and may not act on
// a peer whose effective role strictly outranks their own. The
// super-operator bypasses both checks.
func (g *Gate) AuthorizeAction(ctx context.Context, actorID, targetID, chatID string, required roles.Role) bool {
	if g.IsSuperOperator(actorID) {
		return true
	}
	actorRole := g.EffectiveRole(ctx, actorID, chatID)
	if !roles.OutranksOrEqual(actorRole, required) {
		return false
	}
	targetRole := g.EffectiveRole(ctx, targetID, chatID)
	return !roles.Outranks(targetRole, actorRole)
}

// IsExempt reports whether a user is exempt from lock enforcement:
// chat-admin tier, sudo tier, or the super-operator.
func (g *Gate) IsExempt(ctx context.Context, userID, chatID string) bool {
	if g.IsSuperOperator(userID) {
		return true
	}
	return roles.IsChatAdmin(g.EffectiveRole(ctx, userID, chatID))
}
