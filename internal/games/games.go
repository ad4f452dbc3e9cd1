// Package games runs short chat games on top of the round store. A round is
// opened by a command, players answer in the chat, and the first correct
// answer claims the round atomically, so simultaneous correct answers
// produce exactly one winner.
package games

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/messaging"
	"github.com/guardian/groupbot/internal/metrics"
	"github.com/guardian/groupbot/internal/session"
)

// Game kinds.
const (
	KindEmoji    = "emoji"
	KindGuess    = "guess"
	KindLetter   = "letter"
	KindScramble = "scramble"
	KindMeaning  = "meaning"
	KindRiddle   = "riddle"
	KindMath     = "math"
)

// Kinds lists every playable game, in the order rounds are matched against
// incoming answers.
var Kinds = []string{
	KindEmoji, KindGuess, KindLetter, KindScramble, KindMeaning, KindRiddle, KindMath,
}

// roundTTLs bounds how long each kind stays open without a winner.
var roundTTLs = map[string]time.Duration{
	KindEmoji:    2 * time.Minute,
	KindGuess:    2 * time.Minute,
	KindLetter:   2 * time.Minute,
	KindScramble: 2 * time.Minute,
	KindMeaning:  2 * time.Minute,
	KindRiddle:   3 * time.Minute,
	KindMath:     time.Minute,
}

// KnownKind reports whether name is a playable game kind.
func KnownKind(name string) bool {
	_, ok := roundTTLs[name]
	return ok
}

// ErrGamesDisabled is returned by Start when the chat has games turned off.
var ErrGamesDisabled = errors.New("games: disabled in this chat")

// Manager starts rounds and resolves answers.
type Manager struct {
	rounds *session.Store
	groups *group.Store
	gw     gateway.Gateway
	events *messaging.Client
}

func NewManager(rounds *session.Store, groups *group.Store, gw gateway.Gateway, events *messaging.Client) *Manager {
	return &Manager{rounds: rounds, groups: groups, gw: gw, events: events}
}

// Start opens a round of the given kind in the chat, replacing any active
// round of that kind, and posts the prompt.
func (m *Manager) Start(ctx context.Context, chatID, kind string) error {
	if !KnownKind(kind) {
		return fmt.Errorf("games: unknown game %q", kind)
	}
	settings, err := m.groups.Settings(ctx, chatID)
	if err != nil {
		return fmt.Errorf("games: load settings: %w", err)
	}
	if !settings.GamesEnabled {
		return ErrGamesDisabled
	}

	prompt, answer := generate(kind)
	if _, err := m.rounds.StartRound(ctx, chatID, kind, answer, roundTTLs[kind]); err != nil {
		return err
	}
	metrics.RoundsTotal.WithLabelValues(kind, "started").Inc()

	if err := m.gw.SendMessage(ctx, chatID, prompt); err != nil {
		log.Printf("[games] post prompt chat=%s kind=%s: %v", chatID, kind, err)
	}
	return nil
}

// Stop cancels the active round of the given kind, if any.
func (m *Manager) Stop(ctx context.Context, chatID, kind string) error {
	if !KnownKind(kind) {
		return fmt.Errorf("games: unknown game %q", kind)
	}
	return m.rounds.ClearRound(ctx, chatID, kind)
}

// Submit checks a chat message against every active round in the chat.
// It reports whether the message was consumed as a game answer. A correct
// answer that loses the claim race is still consumed: the round is already
// settled and the winner has been announced. Every open round sees the
// message; only when none matches does a numeric message count as a wrong
// guess for an open guess round.
func (m *Manager) Submit(ctx context.Context, evt *gateway.Event) (bool, error) {
	if evt.Text == "" {
		return false, nil
	}
	answer := Normalize(evt.Text)

	wrongGuess := false
	for _, kind := range Kinds {
		round, ok, err := m.rounds.ActiveRound(ctx, evt.ChatID, kind)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		if answer != Normalize(round.Answer) {
			if kind == KindGuess && isNumeric(answer) {
				wrongGuess = true
			}
			continue
		}

		won, err := m.rounds.Claim(ctx, round)
		if err != nil {
			return false, err
		}
		if !won {
			return true, nil
		}
		m.announceWinner(ctx, evt, kind)
		return true, nil
	}

	// Numeric games echo wrong attempts so players keep guessing.
	if wrongGuess {
		if err := m.gw.Reply(ctx, evt.ChatID, evt.MessageID, "Wrong, try again."); err != nil {
			log.Printf("[games] reply chat=%s: %v", evt.ChatID, err)
		}
		return true, nil
	}
	return false, nil
}

func (m *Manager) announceWinner(ctx context.Context, evt *gateway.Event, kind string) {
	metrics.RoundsTotal.WithLabelValues(kind, "won").Inc()
	m.events.PublishRoundWon(messaging.RoundWonEvent{
		ChatID: evt.ChatID,
		UserID: evt.SenderID,
		Kind:   kind,
		Ts:     time.Now().Unix(),
	})

	total, err := m.rounds.AwardPoint(ctx, evt.ChatID, evt.SenderID)
	if err != nil {
		log.Printf("[games] award point chat=%s user=%s: %v", evt.ChatID, evt.SenderID, err)
		metrics.StoreErrors.WithLabelValues("scores").Inc()
	}

	name := evt.SenderName
	if name == "" {
		name = evt.SenderID
	}
	text := fmt.Sprintf("Correct! %s wins the round and now has %d point(s).", name, total)
	if err := m.gw.Reply(ctx, evt.ChatID, evt.MessageID, text); err != nil {
		log.Printf("[games] announce chat=%s: %v", evt.ChatID, err)
	}
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// --- Prompt generation ---

var emojiPool = []struct{ emoji, name string }{
	{"🐘", "elephant"},
	{"🦁", "lion"},
	{"🐫", "camel"},
	{"🦊", "fox"},
	{"🐢", "turtle"},
	{"🦉", "owl"},
	{"🐝", "bee"},
	{"🐬", "dolphin"},
}

var scramblePool = []string{
	"guardian", "message", "keyboard", "network", "channel", "penguin", "library",
}

var meaningPool = []struct{ word, meaning string }{
	{"ephemeral", "lasting a very short time"},
	{"ubiquitous", "present everywhere"},
	{"candid", "honest and direct"},
	{"obsolete", "no longer in use"},
	{"meticulous", "very careful and precise"},
}

var riddlePool = []struct{ question, answer string }{
	{"What has keys but opens no locks?", "keyboard"},
	{"What gets wetter the more it dries?", "towel"},
	{"What has a head and a tail but no body?", "coin"},
	{"I speak without a mouth and hear without ears. What am I?", "echo"},
}

// letterGridSize is the side length of the odd-one-out grid.
const letterGridSize = 6

var letterGridPairs = []struct{ common, odd string }{
	{"ن", "ت"},
	{"ح", "خ"},
	{"د", "ذ"},
	{"س", "ش"},
	{"o", "0"},
	{"l", "1"},
}

// generate produces a prompt and its expected answer for one round.
func generate(kind string) (prompt, answer string) {
	switch kind {
	case KindEmoji:
		pick := emojiPool[rand.Intn(len(emojiPool))]
		return fmt.Sprintf("Name this animal: %s", pick.emoji), pick.name

	case KindGuess:
		n := rand.Intn(10) + 1
		return "I am thinking of a number between 1 and 10. First correct guess wins!", strconv.Itoa(n)

	case KindLetter:
		pair := letterGridPairs[rand.Intn(len(letterGridPairs))]
		pos := rand.Intn(letterGridSize * letterGridSize)
		var b strings.Builder
		for i := 0; i < letterGridSize*letterGridSize; i++ {
			if i == pos {
				b.WriteString(pair.odd)
			} else {
				b.WriteString(pair.common)
			}
			if (i+1)%letterGridSize == 0 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		return "Find the odd one out and send it:\n" + b.String(), pair.odd

	case KindScramble:
		word := scramblePool[rand.Intn(len(scramblePool))]
		return fmt.Sprintf("Unscramble this word: %s", scramble(word)), word

	case KindMeaning:
		pick := meaningPool[rand.Intn(len(meaningPool))]
		return fmt.Sprintf("Which word means: %q?", pick.meaning), pick.word

	case KindRiddle:
		pick := riddlePool[rand.Intn(len(riddlePool))]
		return pick.question, pick.answer

	case KindMath:
		a, b := rand.Intn(50)+1, rand.Intn(50)+1
		switch rand.Intn(3) {
		case 0:
			return fmt.Sprintf("Quick: %d + %d = ?", a, b), strconv.Itoa(a + b)
		case 1:
			if a < b {
				a, b = b, a
			}
			return fmt.Sprintf("Quick: %d - %d = ?", a, b), strconv.Itoa(a - b)
		default:
			a, b = rand.Intn(12)+1, rand.Intn(12)+1
			return fmt.Sprintf("Quick: %d × %d = ?", a, b), strconv.Itoa(a * b)
		}
	}
	return "", ""
}

// scramble shuffles the letters of word, retrying so the result is never
// the word itself.
func scramble(word string) string {
	runes := []rune(word)
	for {
		rand.Shuffle(len(runes), func(i, j int) {
			runes[i], runes[j] = runes[j], runes[i]
		})
		if s := string(runes); s != word {
			return s
		}
	}
}
