package handlers

import (
	"context"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/gateway"
)

// autoResponses is the built-in trigger table, matched case-insensitively
// on the whole message after the custom tables had their chance.
var autoResponses = map[string]string{
	"ping":         "pong",
	"hello":        "Hello!",
	"good morning": "Good morning!",
	"good night":   "Good night!",
	"thanks":       "You're welcome!",
	"thank you":    "You're welcome!",
}

func registerAutoReplyStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageAutoReply, dispatch.Matcher{
		Name:      "auto_response",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasText),
		Action: func(ctx context.Context, evt *gateway.Event) error {
			response, ok := autoResponses[strings.ToLower(strings.TrimSpace(evt.Text))]
			if !ok {
				return nil
			}
			return reply(ctx, d.Gateway, evt, response)
		},
	})
}
