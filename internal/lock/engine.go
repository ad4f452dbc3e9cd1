package lock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/guardian/groupbot/internal/flood"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/messaging"
	"github.com/guardian/groupbot/internal/metrics"
	"github.com/guardian/groupbot/internal/perm"
	"github.com/guardian/groupbot/internal/user"
	"github.com/guardian/groupbot/internal/warnings"
)

// Engine enforces lock rules on inbound events. All gateway calls are
// best-effort: failures are logged and swallowed so enforcement can never
// break the dispatch loop. Store failures fail open (treated as unlocked).
type Engine struct {
	botID  string // the bot's own platform identity, exempt from the bot lock
	gw     gateway.Gateway
	gate   *perm.Gate
	groups *group.Store
	users  *user.Store
	warns  *warnings.Ledger
	floods *flood.Detector
	events *messaging.Client // nil-safe
}

// NewEngine creates a lock engine.
func NewEngine(botID string, gw gateway.Gateway, gate *perm.Gate, groups *group.Store,
	users *user.Store, warns *warnings.Ledger, floods *flood.Detector, events *messaging.Client) *Engine {
	return &Engine{
		botID:  botID,
		gw:     gw,
		gate:   gate,
		groups: groups,
		users:  users,
		warns:  warns,
		floods: floods,
		events: events,
	}
}

// canModerate reports whether the bot has administrator standing in the
// chat. Without it, enforcement is silently skipped.
func (e *Engine) canModerate(ctx context.Context, chatID string) bool {
	status, err := e.gw.MemberStatus(ctx, chatID, e.botID)
	if err != nil {
		log.Printf("[lock] member status chat=%s: %v (skipping enforcement)", chatID, err)
		return false
	}
	return status == gateway.StatusAdministrator
}

// Enforce runs lock enforcement for one content-bearing group event. It is
// registered at the pipeline's earliest stage so it observes every event
// before any content-producing handler.
func (e *Engine) Enforce(ctx context.Context, evt *gateway.Event) error {
	if !evt.IsGroup() {
		return nil
	}

	if e.gate.IsExempt(ctx, evt.SenderID, evt.ChatID) {
		return nil
	}

	locks, err := e.groups.AllLocks(ctx, evt.ChatID)
	if err != nil {
		// Fail open: an unreadable rule set must not block the chat.
		log.Printf("[lock] load locks chat=%s: %v (failing open)", evt.ChatID, err)
		metrics.StoreErrors.WithLabelValues("locks").Inc()
		return nil
	}
	if len(locks) == 0 {
		return nil
	}

	// New-member events: an active bot lock short-circuits all other
	// classification. With the bot lock off, the join still counts toward
	// the flood window below.
	if len(evt.NewMembers) > 0 {
		if _, locked := locks[FeatureBot]; locked {
			e.enforceBotLock(ctx, evt)
			return nil
		}
	}

	settings, err := e.groups.Settings(ctx, evt.ChatID)
	if err != nil {
		log.Printf("[lock] load settings chat=%s: %v (failing open)", evt.ChatID, err)
		metrics.StoreErrors.WithLabelValues("settings").Inc()
		return nil
	}

	feature, violated := Classify(evt, locks)

	// Flood is consulted only when no content lock matched.
	if !violated {
		if _, locked := locks[FeatureFlood]; locked {
			count, err := e.floods.Track(ctx, evt.ChatID, evt.SenderID, settings.FloodInterval())
			if err != nil {
				log.Printf("[lock] flood track chat=%s user=%s: %v (failing open)",
					evt.ChatID, evt.SenderID, err)
				metrics.StoreErrors.WithLabelValues("flood").Inc()
			} else if count > int64(settings.FloodLimit) {
				feature, violated = FeatureFlood, true
			}
		}
	}

	if !violated {
		return nil
	}

	metrics.ViolationsTotal.WithLabelValues(feature).Inc()
	e.events.PublishViolation(messaging.ViolationEvent{
		ChatID:  evt.ChatID,
		UserID:  evt.SenderID,
		Feature: feature,
		Ts:      time.Now().Unix(),
	})

	if !e.canModerate(ctx, evt.ChatID) {
		return nil
	}

	punishment := locks[feature]
	e.apply(ctx, evt, feature, punishment, settings)
	return nil
}

// apply deletes the offending message and executes the configured
// punishment. Every non-noop action emits one notification naming the
// punishment and the violated feature.
func (e *Engine) apply(ctx context.Context, evt *gateway.Event, feature string,
	punishment group.Punishment, settings group.Settings) {

	// The offending message is always deleted, whatever the punishment.
	if err := e.gw.DeleteMessage(ctx, evt.ChatID, evt.MessageID); err != nil {
		log.Printf("[lock] delete message chat=%s msg=%s: %v", evt.ChatID, evt.MessageID, err)
	}
	metrics.PunishmentsTotal.WithLabelValues(string(punishment)).Inc()
	e.events.PublishPunishment(messaging.PunishmentEvent{
		ChatID:     evt.ChatID,
		UserID:     evt.SenderID,
		Feature:    feature,
		Punishment: string(punishment),
		Ts:         time.Now().Unix(),
	})

	name := evt.SenderName
	if name == "" {
		name = evt.SenderID
	}

	switch punishment {
	case group.PunishDelete:
		// Already deleted, nothing further.

	case group.PunishWarn:
		count, err := e.warns.Add(ctx, evt.ChatID, evt.SenderID)
		if err != nil {
			log.Printf("[lock] add warning chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
			metrics.StoreErrors.WithLabelValues("warnings").Inc()
			return
		}
		if count >= settings.MaxWarnings {
			// Threshold reached: reset and escalate to a kick, exactly once.
			if err := e.warns.Reset(ctx, evt.ChatID, evt.SenderID); err != nil {
				log.Printf("[lock] reset warnings chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
			}
			e.act(ctx, evt.ChatID, e.gw.KickMember, evt.SenderID, "kick")
			e.notify(ctx, evt.ChatID, fmt.Sprintf(
				"%s reached the warning limit (%d) and was kicked. Reason: %s",
				name, settings.MaxWarnings, feature))
		} else {
			e.notify(ctx, evt.ChatID, fmt.Sprintf(
				"%s warned (%d/%d). Reason: %s", name, count, settings.MaxWarnings, feature))
		}

	case group.PunishKick:
		e.act(ctx, evt.ChatID, e.gw.KickMember, evt.SenderID, "kick")
		e.notify(ctx, evt.ChatID, fmt.Sprintf("%s was kicked. Reason: %s", name, feature))

	case group.PunishMute:
		if err := e.users.SetMuted(ctx, evt.ChatID, evt.SenderID, true); err != nil {
			log.Printf("[lock] persist mute chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
		}
		e.act(ctx, evt.ChatID, e.gw.RestrictMember, evt.SenderID, "mute")
		e.notify(ctx, evt.ChatID, fmt.Sprintf("%s was muted. Reason: %s", name, feature))

	case group.PunishBan:
		if err := e.users.SetBanned(ctx, evt.ChatID, evt.SenderID, true); err != nil {
			log.Printf("[lock] persist ban chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
		}
		e.act(ctx, evt.ChatID, e.gw.BanMember, evt.SenderID, "ban")
		e.notify(ctx, evt.ChatID, fmt.Sprintf("%s was banned. Reason: %s", name, feature))
	}
}

// enforceBotLock kicks every non-self bot among the event's new members and
// sends a single notification.
func (e *Engine) enforceBotLock(ctx context.Context, evt *gateway.Event) {
	if !e.canModerate(ctx, evt.ChatID) {
		return
	}
	kicked := 0
	for _, m := range evt.NewMembers {
		if !m.IsBot || m.ID == e.botID {
			continue
		}
		e.act(ctx, evt.ChatID, e.gw.KickMember, m.ID, "kick")
		kicked++
	}
	if kicked > 0 {
		metrics.PunishmentsTotal.WithLabelValues("kick").Inc()
		e.notify(ctx, evt.ChatID, "Bots are locked in this chat; new bots were removed.")
	}
}

// EnforceEdit deletes edited messages outright when the edit lock is active
// and the editor is not exempt. No punishment escalation.
func (e *Engine) EnforceEdit(ctx context.Context, evt *gateway.Event) error {
	if !evt.IsGroup() || !evt.Edited {
		return nil
	}
	if e.gate.IsExempt(ctx, evt.SenderID, evt.ChatID) {
		return nil
	}

	locked, err := e.groups.IsLocked(ctx, evt.ChatID, FeatureEdit)
	if err != nil {
		log.Printf("[lock] edit lock chat=%s: %v (failing open)", evt.ChatID, err)
		metrics.StoreErrors.WithLabelValues("locks").Inc()
		return nil
	}
	if !locked {
		return nil
	}
	if !e.canModerate(ctx, evt.ChatID) {
		return nil
	}

	if err := e.gw.DeleteMessage(ctx, evt.ChatID, evt.MessageID); err != nil {
		log.Printf("[lock] delete edited message chat=%s msg=%s: %v", evt.ChatID, evt.MessageID, err)
	}
	metrics.ViolationsTotal.WithLabelValues(FeatureEdit).Inc()
	return nil
}

// act runs one member action, logging failures.
func (e *Engine) act(ctx context.Context, chatID string,
	fn func(context.Context, string, string) error, userID, what string) {
	if err := fn(ctx, chatID, userID); err != nil {
		log.Printf("[lock] %s chat=%s user=%s: %v", what, chatID, userID, err)
	}
}

// notify sends one chat notification, logging failures.
func (e *Engine) notify(ctx context.Context, chatID, text string) {
	if err := e.gw.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("[lock] notify chat=%s: %v", chatID, err)
	}
}
