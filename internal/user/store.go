// Package user stores actor records: global roles, per-chat roles, muted and
// banned flags, and message counters. Records live in Redis hashes:
//
//	Key: user:<id>                    global record (name, role, global flags)
//	Key: chat:<chat_id>:user:<id>     chat-scoped record (role, flags, counters)
//	Key: users                        set of every user the bot has seen
package user

import (
	"context"
	"fmt"
	"strconv"

	"github.com/guardian/groupbot/internal/roles"
	"github.com/guardian/groupbot/internal/store"
)

const (
	userPrefix = "user:"
	usersKey   = "users"
)

// User is the global half of an actor record.
type User struct {
	ID           string
	Name         string
	Username     string
	Role         roles.Role
	GlobalBanned bool
	GlobalMuted  bool
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Store manages actor records.
type Store struct {
	kv *store.Store
}

// NewStore creates a user store backed by the given KV store.
func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func userKey(id string) string {
	return userPrefix + id
}

func chatUserKey(chatID, userID string) string {
	return "chat:" + chatID + ":user:" + userID
}

// Get returns the global record for a user, defaulting to a fresh Member
// record when none exists.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	data, err := s.kv.HGetAll(ctx, userKey(id))
	if err != nil {
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}
	u := &User{ID: id, Role: roles.Member}
	if len(data) == 0 {
		return u, nil
	}
	u.Name = data["name"]
	u.Username = data["username"]
	if r, err := strconv.Atoi(data["role"]); err == nil && roles.Valid(roles.Role(r)) {
		u.Role = roles.Role(r)
	}
	u.GlobalBanned = data["global_banned"] == "1"
	u.GlobalMuted = data["global_muted"] == "1"
	return u, nil
}

// SaveInfo updates a user's identity fields and adds them to the registered
// set. Called on every inbound event so names stay current.
func (s *Store) SaveInfo(ctx context.Context, id, name, username string) error {
	if err := s.kv.HSet(ctx, userKey(id), map[string]interface{}{
		"name":     name,
		"username": username,
	}); err != nil {
		return fmt.Errorf("user: save info %s: %w", id, err)
	}
	return s.kv.SAdd(ctx, usersKey, id)
}

// Count returns the number of users ever seen.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.kv.SCard(ctx, usersKey)
}

// --- Roles ---

// GlobalRole returns the user's bot-wide role.
func (s *Store) GlobalRole(ctx context.Context, id string) (roles.Role, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return roles.Member, err
	}
	return u.Role, nil
}

// ChatRole returns the user's chat-scoped role, defaulting to Member.
func (s *Store) ChatRole(ctx context.Context, chatID, userID string) (roles.Role, error) {
	val, ok, err := s.kv.HGet(ctx, chatUserKey(chatID, userID), "role")
	if err != nil {
		return roles.Member, fmt.Errorf("user: chat role %s/%s: %w", chatID, userID, err)
	}
	if !ok {
		return roles.Member, nil
	}
	r, err := strconv.Atoi(val)
	if err != nil || !roles.Valid(roles.Role(r)) {
		return roles.Member, nil
	}
	return roles.Role(r), nil
}

// SetRole assigns a role. With an empty chatID the role is global. A sudo-tier
// role is always stored globally even when a chat scope is given; the return
// value reports whether such a redirect happened so callers can say so.
func (s *Store) SetRole(ctx context.Context, userID string, role roles.Role, chatID string) (redirected bool, err error) {
	if chatID != "" && !roles.IsSudo(role) {
		err := s.kv.HSet(ctx, chatUserKey(chatID, userID), map[string]interface{}{
			"role": int(role),
		})
		if err != nil {
			return false, fmt.Errorf("user: set chat role: %w", err)
		}
		return false, nil
	}

	redirected = chatID != "" && roles.IsSudo(role)
	err = s.kv.HSet(ctx, userKey(userID), map[string]interface{}{
		"role": int(role),
	})
	if err != nil {
		return redirected, fmt.Errorf("user: set global role: %w", err)
	}
	return redirected, nil
}

// RemoveRole resets a user to Member in the given scope.
func (s *Store) RemoveRole(ctx context.Context, userID, chatID string) error {
	_, err := s.SetRole(ctx, userID, roles.Member, chatID)
	return err
}

// ListByRole returns the IDs of users holding the given role. With a chatID
// the chat-scoped records are scanned; otherwise the global records.
func (s *Store) ListByRole(ctx context.Context, role roles.Role, chatID string) ([]string, error) {
	pattern := userPrefix + "*"
	if chatID != "" {
		pattern = "chat:" + chatID + ":user:*"
	}
	keys, err := s.kv.ScanPrefix(ctx, pattern)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, key := range keys {
		val, ok, err := s.kv.HGet(ctx, key, "role")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if r, err := strconv.Atoi(val); err == nil && roles.Role(r) == role {
			ids = append(ids, idFromKey(key))
		}
	}
	return ids, nil
}

// --- Flags ---

func (s *Store) setChatFlag(ctx context.Context, chatID, userID, field string, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	return s.kv.HSet(ctx, chatUserKey(chatID, userID), map[string]interface{}{field: val})
}

func (s *Store) chatFlag(ctx context.Context, chatID, userID, field string) (bool, error) {
	val, ok, err := s.kv.HGet(ctx, chatUserKey(chatID, userID), field)
	if err != nil {
		return false, err
	}
	return ok && val == "1", nil
}

// SetBanned records the per-chat banned flag.
func (s *Store) SetBanned(ctx context.Context, chatID, userID string, banned bool) error {
	return s.setChatFlag(ctx, chatID, userID, "banned", banned)
}

// IsBanned reports the per-chat banned flag.
func (s *Store) IsBanned(ctx context.Context, chatID, userID string) (bool, error) {
	return s.chatFlag(ctx, chatID, userID, "banned")
}

// SetMuted records the per-chat muted flag.
func (s *Store) SetMuted(ctx context.Context, chatID, userID string, muted bool) error {
	return s.setChatFlag(ctx, chatID, userID, "muted", muted)
}

// IsMuted reports the per-chat muted flag.
func (s *Store) IsMuted(ctx context.Context, chatID, userID string) (bool, error) {
	return s.chatFlag(ctx, chatID, userID, "muted")
}

// SetGlobalBanned records the bot-wide banned flag.
func (s *Store) SetGlobalBanned(ctx context.Context, userID string, banned bool) error {
	val := "0"
	if banned {
		val = "1"
	}
	return s.kv.HSet(ctx, userKey(userID), map[string]interface{}{"global_banned": val})
}

// SetGlobalMuted records the bot-wide muted flag.
func (s *Store) SetGlobalMuted(ctx context.Context, userID string, muted bool) error {
	val := "0"
	if muted {
		val = "1"
	}
	return s.kv.HSet(ctx, userKey(userID), map[string]interface{}{"global_muted": val})
}

// ListBanned returns IDs of users flagged banned in a chat.
func (s *Store) ListBanned(ctx context.Context, chatID string) ([]string, error) {
	return s.listFlagged(ctx, chatID, "banned")
}

// ListMuted returns IDs of users flagged muted in a chat.
func (s *Store) ListMuted(ctx context.Context, chatID string) ([]string, error) {
	return s.listFlagged(ctx, chatID, "muted")
}

func (s *Store) listFlagged(ctx context.Context, chatID, field string) ([]string, error) {
	keys, err := s.kv.ScanPrefix(ctx, "chat:"+chatID+":user:*")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, key := range keys {
		val, ok, err := s.kv.HGet(ctx, key, field)
		if err != nil {
			return nil, err
		}
		if ok && val == "1" {
			ids = append(ids, idFromKey(key))
		}
	}
	return ids, nil
}

// --- Counters ---

// IncrMessages atomically bumps a user's message count in a chat.
func (s *Store) IncrMessages(ctx context.Context, chatID, userID string) (int64, error) {
	return s.kv.HIncrBy(ctx, chatUserKey(chatID, userID), "message_count", 1)
}

// Messages returns a user's message count in a chat.
func (s *Store) Messages(ctx context.Context, chatID, userID string) (int64, error) {
	val, ok, err := s.kv.HGet(ctx, chatUserKey(chatID, userID), "message_count")
	if err != nil || !ok {
		return 0, err
	}
	n, _ := strconv.ParseInt(val, 10, 64)
	return n, nil
}

// idFromKey extracts the trailing user ID from a record key.
func idFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return key
}
