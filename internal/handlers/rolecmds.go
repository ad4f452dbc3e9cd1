package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/roles"
)

// rankWords maps single-word command keywords onto roles, derived from the
// hierarchy so the two never drift apart.
var rankWords = func() map[string]roles.Role {
	m := make(map[string]roles.Role, len(roles.Hierarchy))
	for _, r := range roles.Hierarchy {
		word := strings.ToLower(strings.ReplaceAll(roles.Name(r), " ", ""))
		m[word] = r
	}
	return m
}()

func rankUsage() string {
	words := make([]string, 0, len(rankWords))
	for w := range rankWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return "Usage: promote <rank> <user>. Ranks: " + strings.Join(words, ", ")
}

func registerRoleStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageRoles, dispatch.Matcher{
		Name:      "cmd_promote",
		Predicate: command("promote"),
		Action:    promoteAction(d),
	})
	p.Register(stageRoles, dispatch.Matcher{
		Name:      "cmd_demote",
		Predicate: command("demote"),
		Action:    demoteAction(d),
	})
	p.Register(stageRoles, dispatch.Matcher{
		Name:      "cmd_staff",
		Predicate: command("staff"),
		Action:    staffAction(d),
	})
}

func promoteAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		arg := commandArg(evt, "promote")
		fields := strings.Fields(strings.ToLower(arg))
		if len(fields) == 0 {
			return reply(ctx, d.Gateway, evt, rankUsage())
		}

		rank, ok := rankWords[fields[0]]
		if !ok {
			return reply(ctx, d.Gateway, evt, rankUsage())
		}

		var targetID string
		switch {
		case evt.ReplyTo != nil && evt.ReplyTo.SenderID != "":
			targetID = evt.ReplyTo.SenderID
		case len(fields) > 1:
			targetID = fields[1]
		default:
			return reply(ctx, d.Gateway, evt, rankUsage())
		}

		// Granting a rank requires strictly outranking it, and the target
		// must not outrank the actor.
		actorRole := d.Gate.EffectiveRole(ctx, evt.SenderID, evt.ChatID)
		allowed := d.Gate.IsSuperOperator(evt.SenderID) ||
			(roles.Outranks(actorRole, rank) &&
				d.Gate.AuthorizeAction(ctx, evt.SenderID, targetID, evt.ChatID, roles.Admin))
		if !allowed {
			return reply(ctx, d.Gateway, evt, "You are not allowed to grant that rank.")
		}

		redirected, err := d.Users.SetRole(ctx, targetID, rank, evt.ChatID)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%s is now %s.", targetID, roles.Name(rank))
		if redirected {
			text += " This rank applies in every chat."
		}
		return reply(ctx, d.Gateway, evt, text)
	}
}

func demoteAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		targetID := target(evt, "demote")
		if targetID == "" {
			return reply(ctx, d.Gateway, evt, "Reply to a message or give a user ID: demote <user>")
		}
		if !d.Gate.AuthorizeAction(ctx, evt.SenderID, targetID, evt.ChatID, roles.Manager) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		if err := d.Users.RemoveRole(ctx, targetID, evt.ChatID); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("%s is now a regular member.", targetID))
	}
}

func staffAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}

		var lines []string
		for _, r := range roles.Hierarchy {
			if r == roles.Member {
				continue
			}
			ids, err := d.Users.ListByRole(ctx, r, evt.ChatID)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				continue
			}
			sort.Strings(ids)
			lines = append(lines, fmt.Sprintf("%s: %s", roles.Name(r), strings.Join(ids, ", ")))
		}
		if len(lines) == 0 {
			return reply(ctx, d.Gateway, evt, "No staff assigned in this chat.")
		}
		return reply(ctx, d.Gateway, evt, strings.Join(lines, "\n"))
	}
}
