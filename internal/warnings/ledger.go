// Package warnings maintains the per-user-per-chat warning counter.
//
//	Key: chat:<chat_id>:user:<user_id>   field "warnings"
//
// The counter is a plain atomic increment with no TTL; the
// reach-maximum-then-escalate policy deliberately lives in the callers so a
// manual warn command and automatic lock enforcement share the counting
// semantics while choosing their own post-threshold action and messaging.
package warnings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/guardian/groupbot/internal/store"
)

// Ledger counts warnings.
type Ledger struct {
	kv *store.Store
}

// NewLedger creates a warning ledger backed by the given KV store.
func NewLedger(kv *store.Store) *Ledger {
	return &Ledger{kv: kv}
}

func key(chatID, userID string) string {
	return "chat:" + chatID + ":user:" + userID
}

// Add increments the warning count atomically and returns the new count.
// Two simultaneous warnings for one user never lose an update.
func (l *Ledger) Add(ctx context.Context, chatID, userID string) (int, error) {
	count, err := l.kv.HIncrBy(ctx, key(chatID, userID), "warnings", 1)
	if err != nil {
		return 0, fmt.Errorf("warnings: add %s/%s: %w", chatID, userID, err)
	}
	return int(count), nil
}

// Count returns the current warning count, 0 when none recorded.
func (l *Ledger) Count(ctx context.Context, chatID, userID string) (int, error) {
	val, ok, err := l.kv.HGet(ctx, key(chatID, userID), "warnings")
	if err != nil {
		return 0, fmt.Errorf("warnings: count %s/%s: %w", chatID, userID, err)
	}
	if !ok {
		return 0, nil
	}
	n, _ := strconv.Atoi(val)
	return n, nil
}

// Reset zeroes the warning count.
func (l *Ledger) Reset(ctx context.Context, chatID, userID string) error {
	if err := l.kv.HSet(ctx, key(chatID, userID), map[string]interface{}{
		"warnings": 0,
	}); err != nil {
		return fmt.Errorf("warnings: reset %s/%s: %w", chatID, userID, err)
	}
	return nil
}

// Warned returns the IDs of users with at least one warning in a chat.
func (l *Ledger) Warned(ctx context.Context, chatID string) (map[string]int, error) {
	keys, err := l.kv.ScanPrefix(ctx, "chat:"+chatID+":user:*")
	if err != nil {
		return nil, fmt.Errorf("warnings: warned %s: %w", chatID, err)
	}
	warned := make(map[string]int)
	for _, k := range keys {
		val, ok, err := l.kv.HGet(ctx, k, "warnings")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if n, _ := strconv.Atoi(val); n > 0 {
			warned[idFromKey(k)] = n
		}
	}
	return warned, nil
}

func idFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return key
}
