package handlers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/roles"
)

// command matches a bare trigger word or the trigger followed by arguments,
// in group chats only.
func command(trigger string) dispatch.Predicate {
	exact := dispatch.TextEquals(trigger)
	prefixed := dispatch.TextPrefix(trigger + " ")
	return dispatch.All(dispatch.InGroup, func(evt *gateway.Event) bool {
		return exact(evt) || prefixed(evt)
	})
}

func registerModerationStage(p *dispatch.Pipeline, d Deps) {
	targeted := []struct {
		trigger string
		apply   func(ctx context.Context, chatID, userID string) (string, error)
	}{
		{"ban", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Users.SetBanned(ctx, chatID, userID, true); err != nil {
				return "", err
			}
			if err := d.Gateway.BanMember(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s is banned.", userID), nil
		}},
		{"unban", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Users.SetBanned(ctx, chatID, userID, false); err != nil {
				return "", err
			}
			if err := d.Gateway.UnbanMember(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s is unbanned.", userID), nil
		}},
		{"kick", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Gateway.KickMember(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s was kicked.", userID), nil
		}},
		{"mute", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Users.SetMuted(ctx, chatID, userID, true); err != nil {
				return "", err
			}
			if err := d.Gateway.RestrictMember(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s is muted.", userID), nil
		}},
		{"unmute", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Users.SetMuted(ctx, chatID, userID, false); err != nil {
				return "", err
			}
			if err := d.Gateway.UnrestrictMember(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s is unmuted.", userID), nil
		}},
		{"unwarn", func(ctx context.Context, chatID, userID string) (string, error) {
			if err := d.Warnings.Reset(ctx, chatID, userID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Warnings cleared for %s.", userID), nil
		}},
	}
	for _, cmd := range targeted {
		trigger, apply := cmd.trigger, cmd.apply
		p.Register(stageModeration, dispatch.Matcher{
			Name:      "cmd_" + trigger,
			Predicate: command(trigger),
			Action:    targetedAction(d, trigger, apply),
		})
	}

	p.Register(stageModeration, dispatch.Matcher{
		Name:      "cmd_warn",
		Predicate: command("warn"),
		Action:    warnAction(d),
	})

	rosters := []struct {
		trigger string
		empty   string
		list    func(ctx context.Context, chatID string) ([]string, error)
	}{
		{"banned", "Nobody is banned.", d.Users.ListBanned},
		{"muted", "Nobody is muted.", d.Users.ListMuted},
	}
	for _, r := range rosters {
		trigger, empty, list := r.trigger, r.empty, r.list
		p.Register(stageModeration, dispatch.Matcher{
			Name:      "cmd_" + trigger,
			Predicate: command(trigger),
			Action: func(ctx context.Context, evt *gateway.Event) error {
				if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
					return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
				}
				ids, err := list(ctx, evt.ChatID)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					return reply(ctx, d.Gateway, evt, empty)
				}
				return reply(ctx, d.Gateway, evt, strings.Join(ids, "\n"))
			},
		})
	}

	p.Register(stageModeration, dispatch.Matcher{
		Name:      "cmd_warnings",
		Predicate: command("warnings"),
		Action:    warningsRosterAction(d),
	})
}

// targetedAction wraps a member action with target extraction and the
// actor/target permission check.
func targetedAction(d Deps, trigger string,
	apply func(ctx context.Context, chatID, userID string) (string, error)) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		targetID := target(evt, trigger)
		if targetID == "" {
			return reply(ctx, d.Gateway, evt,
				fmt.Sprintf("Reply to a message or give a user ID: %s <user>", trigger))
		}
		if !d.Gate.AuthorizeAction(ctx, evt.SenderID, targetID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		text, err := apply(ctx, evt.ChatID, targetID)
		if err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, text)
	}
}

// warnAction applies a manual warning with the same threshold escalation as
// lock enforcement: reaching the limit resets the count and kicks, once.
func warnAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		targetID := target(evt, "warn")
		if targetID == "" {
			return reply(ctx, d.Gateway, evt, "Reply to a message or give a user ID: warn <user>")
		}
		if !d.Gate.AuthorizeAction(ctx, evt.SenderID, targetID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}

		settings, err := d.Groups.Settings(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		count, err := d.Warnings.Add(ctx, evt.ChatID, targetID)
		if err != nil {
			return err
		}
		if err := d.Stats.LogWarning(ctx, targetID); err != nil {
			log.Printf("[handlers] durable warning user=%s: %v", targetID, err)
		}

		if count >= settings.MaxWarnings {
			if err := d.Warnings.Reset(ctx, evt.ChatID, targetID); err != nil {
				log.Printf("[handlers] reset warnings chat=%s user=%s: %v", evt.ChatID, targetID, err)
			}
			if err := d.Gateway.KickMember(ctx, evt.ChatID, targetID); err != nil {
				log.Printf("[handlers] kick chat=%s user=%s: %v", evt.ChatID, targetID, err)
			}
			return reply(ctx, d.Gateway, evt, fmt.Sprintf(
				"%s reached the warning limit (%d) and was kicked.", targetID, settings.MaxWarnings))
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf(
			"%s warned (%d/%d).", targetID, count, settings.MaxWarnings))
	}
}

func warningsRosterAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		warned, err := d.Warnings.Warned(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		if len(warned) == 0 {
			return reply(ctx, d.Gateway, evt, "Nobody has warnings.")
		}
		lines := make([]string, 0, len(warned))
		for id, count := range warned {
			lines = append(lines, fmt.Sprintf("%s: %d", id, count))
		}
		sort.Strings(lines)
		return reply(ctx, d.Gateway, evt, strings.Join(lines, "\n"))
	}
}
