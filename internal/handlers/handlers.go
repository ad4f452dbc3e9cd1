// Package handlers assembles the dispatch pipeline: lock enforcement first,
// then membership bookkeeping, then the command surface, then games and
// auto-responses. Stage numbers are the bot's fixed priority groups;
// matchers within a stage are plain predicate/action pairs so static
// command tables plug in unchanged.
package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/flood"
	"github.com/guardian/groupbot/internal/games"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/lock"
	"github.com/guardian/groupbot/internal/messaging"
	"github.com/guardian/groupbot/internal/perm"
	"github.com/guardian/groupbot/internal/session"
	"github.com/guardian/groupbot/internal/stats"
	"github.com/guardian/groupbot/internal/user"
	"github.com/guardian/groupbot/internal/warnings"
)

// Pipeline stages, ascending.
const (
	stageLocks      = 1
	stageMembership = 2
	stageModeration = 3
	stageRoles      = 4
	stageSettings   = 5
	stageGames      = 6
	stageCustom     = 7
	stageAutoReply  = 8
)

// Deps carries every collaborator the pipeline needs. Events and Stats are
// optional (nil no-ops).
type Deps struct {
	BotID    string
	Gateway  gateway.Gateway
	Users    *user.Store
	Groups   *group.Store
	Warnings *warnings.Ledger
	Flood    *flood.Detector
	Gate     *perm.Gate
	Engine   *lock.Engine
	Games    *games.Manager
	Sessions *session.Store
	Events   *messaging.Client
	Stats    *stats.Store
}

// Build wires every stage and returns the ready pipeline.
func Build(d Deps) *dispatch.Pipeline {
	p := dispatch.New()

	registerLockStage(p, d)
	registerMembershipStage(p, d)
	registerModerationStage(p, d)
	registerRoleStage(p, d)
	registerSettingsStage(p, d)
	registerGameStage(p, d)
	registerCustomStage(p, d)
	registerAutoReplyStage(p, d)

	return p
}

func registerLockStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageLocks, dispatch.Matcher{
		Name:      "enforce_edit_locks",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.IsEdited),
		Action:    d.Engine.EnforceEdit,
	})
	p.Register(stageLocks, dispatch.Matcher{
		Name:      "enforce_locks",
		Predicate: dispatch.InGroup,
		Action:    d.Engine.Enforce,
	})
}

// reply answers the triggering message, logging failures.
func reply(ctx context.Context, gw gateway.Gateway, evt *gateway.Event, text string) error {
	if err := gw.Reply(ctx, evt.ChatID, evt.MessageID, text); err != nil {
		log.Printf("[handlers] reply chat=%s: %v", evt.ChatID, err)
	}
	return nil
}

// commandArg returns the text after the trigger word, trimmed.
func commandArg(evt *gateway.Event, trigger string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(evt.Text), trigger))
}

// target resolves the user a moderation command addresses: the sender of
// the replied-to message when the command is a reply, otherwise the
// command's trailing argument.
func target(evt *gateway.Event, trigger string) string {
	if evt.ReplyTo != nil && evt.ReplyTo.SenderID != "" {
		return evt.ReplyTo.SenderID
	}
	return commandArg(evt, trigger)
}
