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

func registerCustomStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_addcommand",
		Predicate: command("addcommand"),
		Action:    addCommandAction(d),
	})
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_delcommand",
		Predicate: command("delcommand"),
		Action:    delCommandAction(d),
	})
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_commands",
		Predicate: command("commands"),
		Action:    listCommandsAction(d),
	})
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_rules",
		Predicate: command("rules"),
		Action:    rulesAction(d),
	})
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_stats",
		Predicate: command("stats"),
		Action:    chatStatsAction(d),
	})
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "cmd_mystats",
		Predicate: command("mystats"),
		Action:    myStatsAction(d),
	})

	// Free-text lookup against the chat's trigger table, then the global
	// one. Runs last in the stage so the built-in commands keep priority.
	p.Register(stageCustom, dispatch.Matcher{
		Name:      "custom_trigger",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasText),
		Action: func(ctx context.Context, evt *gateway.Event) error {
			response, ok, err := d.Groups.LookupCommand(ctx, evt.ChatID, evt.Text)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return reply(ctx, d.Gateway, evt, response)
		},
	})
}

func addCommandAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		trigger, response, ok := strings.Cut(commandArg(evt, "addcommand"), " ")
		response = strings.TrimSpace(response)
		if !ok || trigger == "" || response == "" {
			return reply(ctx, d.Gateway, evt, "Usage: addcommand <trigger> <response>")
		}
		if err := d.Groups.SetCommand(ctx, evt.ChatID, trigger, response); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Added trigger %q.", strings.ToLower(trigger)))
	}
}

func delCommandAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		trigger := commandArg(evt, "delcommand")
		if trigger == "" {
			return reply(ctx, d.Gateway, evt, "Usage: delcommand <trigger>")
		}
		if err := d.Groups.RemoveCommand(ctx, evt.ChatID, trigger); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Removed trigger %q.", strings.ToLower(trigger)))
	}
}

func listCommandsAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		local, err := d.Groups.Commands(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		global, err := d.Groups.Commands(ctx, "")
		if err != nil {
			return err
		}
		triggers := make([]string, 0, len(local)+len(global))
		for t := range local {
			triggers = append(triggers, t)
		}
		for t := range global {
			if _, shadowed := local[t]; !shadowed {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 {
			return reply(ctx, d.Gateway, evt, "No custom commands defined.")
		}
		sort.Strings(triggers)
		return reply(ctx, d.Gateway, evt, "Triggers: "+strings.Join(triggers, ", "))
	}
}

func rulesAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		settings, err := d.Groups.Settings(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		if settings.RulesText == "" {
			return reply(ctx, d.Gateway, evt, "No rules set. Admins can use: set rules <text>")
		}
		return reply(ctx, d.Gateway, evt, settings.RulesText)
	}
}

func chatStatsAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		messages, err := d.Groups.Stat(ctx, evt.ChatID, "messages")
		if err != nil {
			return err
		}
		title, err := d.Groups.Title(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		if title == "" {
			title = evt.ChatID
		}
		return reply(ctx, d.Gateway, evt,
			fmt.Sprintf("%s: %d messages since registration.", title, messages))
	}
}

func myStatsAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		messages, err := d.Users.Messages(ctx, evt.ChatID, evt.SenderID)
		if err != nil {
			return err
		}
		warningCount, err := d.Warnings.Count(ctx, evt.ChatID, evt.SenderID)
		if err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf(
			"Messages here: %d. Warnings: %d.", messages, warningCount))
	}
}
