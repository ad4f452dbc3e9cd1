package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/lock"
	"github.com/guardian/groupbot/internal/roles"
)

func registerSettingsStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_lock",
		Predicate: command("lock"),
		Action:    lockAction(d),
	})
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_unlock",
		Predicate: command("unlock"),
		Action:    unlockAction(d),
	})
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_locks",
		Predicate: command("locks"),
		Action:    locksListAction(d),
	})
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_enable",
		Predicate: command("enable"),
		Action:    toggleAction(d, "enable", true),
	})
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_disable",
		Predicate: command("disable"),
		Action:    toggleAction(d, "disable", false),
	})
	p.Register(stageSettings, dispatch.Matcher{
		Name:      "cmd_set",
		Predicate: command("set"),
		Action:    setAction(d),
	})
}

// authorizeSettings gates every configuration command behind Admin rank.
func authorizeSettings(ctx context.Context, d Deps, evt *gateway.Event) (bool, error) {
	if d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
		return true, nil
	}
	return false, reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
}

func lockAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if ok, err := authorizeSettings(ctx, d, evt); !ok {
			return err
		}
		fields := strings.Fields(strings.ToLower(commandArg(evt, "lock")))
		if len(fields) == 0 {
			return reply(ctx, d.Gateway, evt,
				"Usage: lock <feature> [delete|warn|kick|mute|ban]")
		}
		feature := fields[0]
		if !lock.KnownFeature(feature) {
			return reply(ctx, d.Gateway, evt,
				"Unknown feature. Available: "+strings.Join(lock.Features, ", "))
		}

		punishment := group.PunishDelete
		if len(fields) > 1 {
			punishment = group.Punishment(fields[1])
			if !group.ValidPunishment(punishment) {
				return reply(ctx, d.Gateway, evt,
					"Unknown punishment. Available: delete, warn, kick, mute, ban")
			}
		}

		if err := d.Groups.SetLock(ctx, evt.ChatID, feature, punishment); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt,
			fmt.Sprintf("Locked %s (punishment: %s).", feature, punishment))
	}
}

func unlockAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if ok, err := authorizeSettings(ctx, d, evt); !ok {
			return err
		}
		feature := strings.ToLower(commandArg(evt, "unlock"))
		if feature == "" || !lock.KnownFeature(feature) {
			return reply(ctx, d.Gateway, evt, "Usage: unlock <feature>")
		}
		if err := d.Groups.RemoveLock(ctx, evt.ChatID, feature); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Unlocked %s.", feature))
	}
}

func locksListAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if ok, err := authorizeSettings(ctx, d, evt); !ok {
			return err
		}
		locks, err := d.Groups.AllLocks(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		if len(locks) == 0 {
			return reply(ctx, d.Gateway, evt, "No locks active.")
		}
		lines := make([]string, 0, len(locks))
		for feature, punishment := range locks {
			lines = append(lines, fmt.Sprintf("%s: %s", feature, punishment))
		}
		sort.Strings(lines)
		return reply(ctx, d.Gateway, evt, strings.Join(lines, "\n"))
	}
}

// toggles maps setting keywords onto their typed setters.
var toggles = map[string]func(d Deps, ctx context.Context, chatID string, on bool) error{
	"welcome": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetWelcomeEnabled(ctx, chatID, on)
	},
	"farewell": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetFarewellEnabled(ctx, chatID, on)
	},
	"games": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetGamesEnabled(ctx, chatID, on)
	},
	"tag": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetTagEnabled(ctx, chatID, on)
	},
	"broadcast": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetBroadcastEnabled(ctx, chatID, on)
	},
	"protection": func(d Deps, ctx context.Context, chatID string, on bool) error {
		return d.Groups.SetProtectionEnabled(ctx, chatID, on)
	},
}

func toggleUsage(verb string) string {
	names := make([]string, 0, len(toggles))
	for name := range toggles {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("Usage: %s <%s>", verb, strings.Join(names, "|"))
}

func toggleAction(d Deps, verb string, on bool) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if ok, err := authorizeSettings(ctx, d, evt); !ok {
			return err
		}
		name := strings.ToLower(commandArg(evt, verb))
		setter, ok := toggles[name]
		if !ok {
			return reply(ctx, d.Gateway, evt, toggleUsage(verb))
		}
		if err := setter(d, ctx, evt.ChatID, on); err != nil {
			return err
		}
		state := "enabled"
		if !on {
			state = "disabled"
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("%s is now %s.", name, state))
	}
}

func setAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if ok, err := authorizeSettings(ctx, d, evt); !ok {
			return err
		}
		arg := commandArg(evt, "set")
		name, value, _ := strings.Cut(arg, " ")
		name = strings.ToLower(name)
		value = strings.TrimSpace(value)

		switch name {
		case "welcome":
			if err := d.Groups.SetWelcomeText(ctx, evt.ChatID, value); err != nil {
				return err
			}
			return reply(ctx, d.Gateway, evt, "Welcome message updated.")
		case "rules":
			if err := d.Groups.SetRulesText(ctx, evt.ChatID, value); err != nil {
				return err
			}
			return reply(ctx, d.Gateway, evt, "Rules updated.")
		case "floodlimit":
			return setNumeric(ctx, d, evt, value, "flood limit", d.Groups.SetFloodLimit)
		case "floodinterval":
			return setNumeric(ctx, d, evt, value, "flood interval", d.Groups.SetFloodInterval)
		case "maxwarnings":
			return setNumeric(ctx, d, evt, value, "warning limit", d.Groups.SetMaxWarnings)
		}
		return reply(ctx, d.Gateway, evt,
			"Usage: set <welcome|rules|floodlimit|floodinterval|maxwarnings> <value>")
	}
}

func setNumeric(ctx context.Context, d Deps, evt *gateway.Event, value, what string,
	setter func(ctx context.Context, chatID string, n int) error) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("The %s must be a number.", what))
	}
	if err := setter(ctx, evt.ChatID, n); err != nil {
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Invalid %s: %v", what, err))
	}
	return reply(ctx, d.Gateway, evt, fmt.Sprintf("The %s is now %d.", what, n))
}
