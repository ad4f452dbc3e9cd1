// Package flood implements the sliding-window abuse counter. Each
// (chat, user) pair gets a decaying Redis counter:
//
//	Key: chat:<chat_id>:flood:<user_id>
//	TTL: the chat's configured flood interval, set on first increment
//
// After a quiet period the counter silently expires and the cycle repeats.
// Whether a count constitutes a violation is the caller's decision (the lock
// engine compares against the chat's flood limit).
package flood

import (
	"context"
	"fmt"
	"time"

	"github.com/guardian/groupbot/internal/store"
)

// Detector tracks per-user message bursts.
type Detector struct {
	kv *store.Store
}

// NewDetector creates a flood detector backed by the given KV store.
func NewDetector(kv *store.Store) *Detector {
	return &Detector{kv: kv}
}

func key(chatID, userID string) string {
	return "chat:" + chatID + ":flood:" + userID
}

// Track increments the counter for (chat, user) and returns the new count.
// The window TTL is attached on the first increment only, so the window
// does not slide.
func (d *Detector) Track(ctx context.Context, chatID, userID string, interval time.Duration) (int64, error) {
	count, err := d.kv.IncrWindow(ctx, key(chatID, userID), interval)
	if err != nil {
		return 0, fmt.Errorf("flood: track %s/%s: %w", chatID, userID, err)
	}
	return count, nil
}

// Count returns the current counter value without incrementing, 0 when the
// window has expired or never started.
func (d *Detector) Count(ctx context.Context, chatID, userID string) (int64, error) {
	return d.kv.GetInt(ctx, key(chatID, userID))
}
