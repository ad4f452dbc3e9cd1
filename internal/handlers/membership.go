package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/messaging"
)

func registerMembershipStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageMembership, dispatch.Matcher{
		Name:      "member_joined",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasNewMembers),
		Action:    onJoin(d),
	})
	p.Register(stageMembership, dispatch.Matcher{
		Name:      "member_left",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasLeftMember),
		Action:    onLeave(d),
	})
	p.Register(stageMembership, dispatch.Matcher{
		Name:      "activity_bookkeeping",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasText),
		Action:    onActivity(d),
	})
}

func onJoin(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		for _, m := range evt.NewMembers {
			if m.ID == d.BotID {
				// The bot itself was added: register the chat.
				if err := d.Groups.Register(ctx, evt.ChatID, evt.ChatTitle); err != nil {
					return err
				}
				d.Events.PublishChatRegistered(messaging.ChatRegisteredEvent{
					ChatID: evt.ChatID,
					Title:  evt.ChatTitle,
					Ts:     time.Now().Unix(),
				})
				log.Printf("[handlers] registered chat=%s title=%q", evt.ChatID, evt.ChatTitle)
				return nil
			}
		}

		settings, err := d.Groups.Settings(ctx, evt.ChatID)
		if err != nil {
			return err
		}

		var humans []string
		for _, m := range evt.NewMembers {
			if m.IsBot {
				continue
			}
			if err := d.Users.SaveInfo(ctx, m.ID, m.Name, ""); err != nil {
				log.Printf("[handlers] save member chat=%s user=%s: %v", evt.ChatID, m.ID, err)
			}
			name := m.Name
			if name == "" {
				name = m.ID
			}
			humans = append(humans, name)
		}

		if !settings.WelcomeEnabled || len(humans) == 0 {
			return nil
		}
		text := settings.WelcomeText
		if text == "" {
			text = fmt.Sprintf("Welcome, %s!", strings.Join(humans, ", "))
		}
		return d.Gateway.SendMessage(ctx, evt.ChatID, text)
	}
}

func onLeave(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		left := evt.LeftMember
		if left.ID == d.BotID {
			// The bot was removed: drop every record for the chat.
			log.Printf("[handlers] removed from chat=%s, dropping records", evt.ChatID)
			return d.Groups.Remove(ctx, evt.ChatID)
		}

		// Departed members start clean if they return.
		if err := d.Warnings.Reset(ctx, evt.ChatID, left.ID); err != nil {
			log.Printf("[handlers] reset warnings chat=%s user=%s: %v", evt.ChatID, left.ID, err)
		}

		settings, err := d.Groups.Settings(ctx, evt.ChatID)
		if err != nil {
			return err
		}
		if !settings.FarewellEnabled {
			return nil
		}
		name := left.Name
		if name == "" {
			name = left.ID
		}
		return d.Gateway.SendMessage(ctx, evt.ChatID, fmt.Sprintf("Goodbye, %s.", name))
	}
}

func onActivity(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if err := d.Users.SaveInfo(ctx, evt.SenderID, evt.SenderName, ""); err != nil {
			log.Printf("[handlers] save sender chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
		}
		if _, err := d.Users.IncrMessages(ctx, evt.ChatID, evt.SenderID); err != nil {
			log.Printf("[handlers] count message chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
		}
		if _, err := d.Groups.IncrStat(ctx, evt.ChatID, "messages"); err != nil {
			log.Printf("[handlers] chat stat chat=%s: %v", evt.ChatID, err)
		}
		if err := d.Stats.LogMessage(ctx, evt.SenderID); err != nil {
			log.Printf("[handlers] durable stat user=%s: %v", evt.SenderID, err)
		}
		return nil
	}
}
