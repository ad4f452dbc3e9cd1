package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/games"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/roles"
)

func registerGameStage(p *dispatch.Pipeline, d Deps) {
	p.Register(stageGames, dispatch.Matcher{
		Name:      "cmd_game",
		Predicate: command("game"),
		Action:    startGameAction(d),
	})
	p.Register(stageGames, dispatch.Matcher{
		Name:      "cmd_games",
		Predicate: command("games"),
		Action: func(ctx context.Context, evt *gateway.Event) error {
			return reply(ctx, d.Gateway, evt,
				"Games: "+strings.Join(games.Kinds, ", ")+". Start one with: game <name>")
		},
	})
	p.Register(stageGames, dispatch.Matcher{
		Name:      "cmd_stopgame",
		Predicate: command("stopgame"),
		Action:    stopGameAction(d),
	})
	p.Register(stageGames, dispatch.Matcher{
		Name:      "cmd_leaderboard",
		Predicate: command("leaderboard"),
		Action:    leaderboardAction(d),
	})
	p.Register(stageGames, dispatch.Matcher{
		Name:      "cmd_score",
		Predicate: command("score"),
		Action:    scoreAction(d),
	})

	// Any other text while a round is open may be an answer. Consumed
	// answers stop later stages so custom triggers never fire on them.
	p.Register(stageGames, dispatch.Matcher{
		Name:      "game_answer",
		Predicate: dispatch.All(dispatch.InGroup, dispatch.HasText),
		Action: func(ctx context.Context, evt *gateway.Event) error {
			handled, err := d.Games.Submit(ctx, evt)
			if err != nil {
				return err
			}
			if handled {
				return dispatch.ErrStopPropagation
			}
			return nil
		},
	})
}

func startGameAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		kind := strings.ToLower(commandArg(evt, "game"))
		if !games.KnownKind(kind) {
			return reply(ctx, d.Gateway, evt,
				"Usage: game <"+strings.Join(games.Kinds, "|")+">")
		}
		err := d.Games.Start(ctx, evt.ChatID, kind)
		if errors.Is(err, games.ErrGamesDisabled) {
			return reply(ctx, d.Gateway, evt, "Games are disabled in this chat.")
		}
		return err
	}
}

func stopGameAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		if !d.Gate.Authorize(ctx, evt.SenderID, evt.ChatID, roles.Admin) {
			return reply(ctx, d.Gateway, evt, "You are not allowed to do that.")
		}
		kind := strings.ToLower(commandArg(evt, "stopgame"))
		if !games.KnownKind(kind) {
			return reply(ctx, d.Gateway, evt,
				"Usage: stopgame <"+strings.Join(games.Kinds, "|")+">")
		}
		if err := d.Games.Stop(ctx, evt.ChatID, kind); err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Stopped the %s round.", kind))
	}
}

func leaderboardAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		board, err := d.Sessions.Leaderboard(ctx, evt.ChatID, 10)
		if err != nil {
			return err
		}
		if len(board) == 0 {
			return reply(ctx, d.Gateway, evt, "Nobody has scored yet.")
		}
		lines := make([]string, 0, len(board))
		for i, entry := range board {
			lines = append(lines, fmt.Sprintf("%d. %s: %d", i+1, entry.UserID, entry.Score))
		}
		return reply(ctx, d.Gateway, evt, strings.Join(lines, "\n"))
	}
}

func scoreAction(d Deps) dispatch.Action {
	return func(ctx context.Context, evt *gateway.Event) error {
		score, err := d.Sessions.Score(ctx, evt.ChatID, evt.SenderID)
		if err != nil {
			return err
		}
		return reply(ctx, d.Gateway, evt, fmt.Sprintf("Your score: %d", score))
	}
}
