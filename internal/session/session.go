// Package session stores ephemeral game-round state and per-chat scores in
// Redis. A round is a single key whose value carries the round identity and
// expected answer; claiming a round is an atomic compare-and-delete, so even
// when many correct answers race, exactly one claimant wins.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guardian/groupbot/internal/store"
)

// Round TTL bounds. Every round expires on its own even if nobody answers;
// a request outside the bounds is clamped rather than rejected.
const (
	MinRoundTTL     = 30 * time.Second
	MaxRoundTTL     = 10 * time.Minute
	DefaultRoundTTL = 2 * time.Minute
)

// Round is one active game round in a chat. At most one round per
// (chat, kind) pair exists; starting a new one replaces any active round.
type Round struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	ChatID string `json:"chat_id"`
	Answer string `json:"answer"`

	// raw is the exact stored encoding, kept for the compare-and-delete
	// claim. A round re-read after being replaced carries a different ID
	// and therefore a different raw value, so stale claims lose.
	raw string
}

// Store manages rounds and scores.
type Store struct {
	kv *store.Store
}

func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func roundKey(chatID, kind string) string {
	return fmt.Sprintf("round:%s:%s", kind, chatID)
}

func scoreKey(chatID, userID string) string {
	return fmt.Sprintf("score:%s:%s", chatID, userID)
}

func clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultRoundTTL
	case ttl < MinRoundTTL:
		return MinRoundTTL
	case ttl > MaxRoundTTL:
		return MaxRoundTTL
	}
	return ttl
}

// StartRound opens a round for the (chat, kind) pair, replacing any round
// already active there. The round expires after the clamped TTL.
func (s *Store) StartRound(ctx context.Context, chatID, kind, answer string, ttl time.Duration) (*Round, error) {
	r := &Round{
		ID:     uuid.New().String(),
		Kind:   kind,
		ChatID: chatID,
		Answer: answer,
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("session: encode round: %w", err)
	}
	r.raw = string(data)
	if err := s.kv.Set(ctx, roundKey(chatID, kind), r.raw, clampTTL(ttl)); err != nil {
		return nil, fmt.Errorf("session: start round: %w", err)
	}
	return r, nil
}

// ActiveRound returns the round currently open for the (chat, kind) pair,
// or ok=false when none is active or it has expired.
func (s *Store) ActiveRound(ctx context.Context, chatID, kind string) (*Round, bool, error) {
	raw, ok, err := s.kv.Get(ctx, roundKey(chatID, kind))
	if err != nil {
		return nil, false, fmt.Errorf("session: read round: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var r Round
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false, fmt.Errorf("session: decode round: %w", err)
	}
	r.raw = raw
	return &r, true, nil
}

// Claim atomically closes the round if it is still the active one. Exactly
// one caller wins per round; everyone else gets false, including claims
// against an expired or already-replaced round.
func (s *Store) Claim(ctx context.Context, r *Round) (bool, error) {
	raw := r.raw
	if raw == "" {
		data, err := json.Marshal(r)
		if err != nil {
			return false, fmt.Errorf("session: encode round: %w", err)
		}
		raw = string(data)
	}
	won, err := s.kv.ClaimAndDelete(ctx, roundKey(r.ChatID, r.Kind), raw)
	if err != nil {
		return false, fmt.Errorf("session: claim round: %w", err)
	}
	return won, nil
}

// ClearRound drops the active round for the (chat, kind) pair, if any.
func (s *Store) ClearRound(ctx context.Context, chatID, kind string) error {
	return s.kv.Delete(ctx, roundKey(chatID, kind))
}

// AwardPoint adds one point to a user's score in a chat and returns the new
// total. Scores do not expire.
func (s *Store) AwardPoint(ctx context.Context, chatID, userID string) (int64, error) {
	return s.kv.Incr(ctx, scoreKey(chatID, userID))
}

// Score returns a user's score in a chat, zero when they never scored.
func (s *Store) Score(ctx context.Context, chatID, userID string) (int64, error) {
	return s.kv.GetInt(ctx, scoreKey(chatID, userID))
}

// Entry is one leaderboard row.
type Entry struct {
	UserID string
	Score  int64
}

// Leaderboard returns up to limit entries for a chat, highest score first.
// Ties order by user ID for stable output.
func (s *Store) Leaderboard(ctx context.Context, chatID string, limit int) ([]Entry, error) {
	prefix := fmt.Sprintf("score:%s:", chatID)
	keys, err := s.kv.ScanPrefix(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("session: scan scores: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		score, err := s.kv.GetInt(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("session: read score %s: %w", key, err)
		}
		entries = append(entries, Entry{
			UserID: strings.TrimPrefix(key, prefix),
			Score:  score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
