// Package group manages chat registration, typed settings, and the per-chat
// lock rules the moderation engine enforces. State lives in Redis:
//
//	Key: chat:<id>            hash (title, counters)
//	Key: chat:<id>:settings   JSON settings document
//	Key: chat:<id>:locks      hash feature -> punishment
//	Key: chat:<id>:commands   hash trigger -> response
//	Key: commands             global trigger -> response hash
//	Key: chats                set of registered chat IDs
package group

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guardian/groupbot/internal/store"
)

const chatsKey = "chats"

// Punishment is the enforcement action bound to a locked feature.
type Punishment string

const (
	PunishDelete Punishment = "delete"
	PunishWarn   Punishment = "warn"
	PunishKick   Punishment = "kick"
	PunishMute   Punishment = "mute"
	PunishBan    Punishment = "ban"
)

// ValidPunishment reports whether p is one of the defined punishment kinds.
func ValidPunishment(p Punishment) bool {
	switch p {
	case PunishDelete, PunishWarn, PunishKick, PunishMute, PunishBan:
		return true
	}
	return false
}

// Settings holds every per-chat toggle and threshold. Fields are mutated
// only through the typed setters below; there is no string-keyed access.
type Settings struct {
	WelcomeEnabled    bool   `json:"welcome_enabled"`
	FarewellEnabled   bool   `json:"farewell_enabled"`
	GamesEnabled      bool   `json:"games_enabled"`
	TagEnabled        bool   `json:"tag_enabled"`
	BroadcastEnabled  bool   `json:"broadcast_enabled"`
	ProtectionEnabled bool   `json:"protection_enabled"`
	WelcomeText       string `json:"welcome_text"`
	RulesText         string `json:"rules_text"`
	FloodLimit        int    `json:"flood_limit"`
	FloodIntervalSec  int    `json:"flood_interval_sec"`
	MaxWarnings       int    `json:"max_warnings"`
}

// DefaultSettings returns the settings applied to a newly registered chat.
func DefaultSettings() Settings {
	return Settings{
		WelcomeEnabled:   true,
		GamesEnabled:     true,
		TagEnabled:       true,
		BroadcastEnabled: true,
		FloodLimit:       10,
		FloodIntervalSec: 5,
		MaxWarnings:      3,
	}
}

// FloodInterval returns the flood window as a duration.
func (s Settings) FloodInterval() time.Duration {
	return time.Duration(s.FloodIntervalSec) * time.Second
}

// Store manages chat records.
type Store struct {
	kv *store.Store
}

// NewStore creates a group store backed by the given KV store.
func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func chatKey(id string) string     { return "chat:" + id }
func settingsKey(id string) string { return "chat:" + id + ":settings" }
func locksKey(id string) string    { return "chat:" + id + ":locks" }

// Register records a chat (first registration event) with default settings.
// Re-registering an existing chat only refreshes the title.
func (s *Store) Register(ctx context.Context, chatID, title string) error {
	if err := s.kv.HSet(ctx, chatKey(chatID), map[string]interface{}{
		"title": title,
	}); err != nil {
		return fmt.Errorf("group: register %s: %w", chatID, err)
	}
	if err := s.kv.SAdd(ctx, chatsKey, chatID); err != nil {
		return fmt.Errorf("group: register %s: %w", chatID, err)
	}

	// Only seed settings when none exist yet.
	if _, ok, err := s.kv.Get(ctx, settingsKey(chatID)); err != nil {
		return fmt.Errorf("group: register %s: %w", chatID, err)
	} else if !ok {
		return s.SaveSettings(ctx, chatID, DefaultSettings())
	}
	return nil
}

// Remove deletes every record for a chat; called when the bot departs.
func (s *Store) Remove(ctx context.Context, chatID string) error {
	if err := s.kv.SRem(ctx, chatsKey, chatID); err != nil {
		return fmt.Errorf("group: remove %s: %w", chatID, err)
	}
	return s.kv.Delete(ctx, chatKey(chatID), settingsKey(chatID), locksKey(chatID), commandsKey(chatID))
}

// All returns every registered chat ID.
func (s *Store) All(ctx context.Context) ([]string, error) {
	return s.kv.SMembers(ctx, chatsKey)
}

// Count returns the number of registered chats.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.kv.SCard(ctx, chatsKey)
}

// Title returns the stored chat title.
func (s *Store) Title(ctx context.Context, chatID string) (string, error) {
	val, _, err := s.kv.HGet(ctx, chatKey(chatID), "title")
	return val, err
}

// --- Settings ---

// Settings loads a chat's settings, falling back to defaults when the chat
// has none stored.
func (s *Store) Settings(ctx context.Context, chatID string) (Settings, error) {
	raw, ok, err := s.kv.Get(ctx, settingsKey(chatID))
	if err != nil {
		return DefaultSettings(), fmt.Errorf("group: settings %s: %w", chatID, err)
	}
	if !ok {
		return DefaultSettings(), nil
	}
	var settings Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("group: settings %s: %w", chatID, err)
	}
	return settings, nil
}

// SaveSettings persists a full settings document.
func (s *Store) SaveSettings(ctx context.Context, chatID string, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("group: save settings %s: %w", chatID, err)
	}
	return s.kv.SetForever(ctx, settingsKey(chatID), string(data))
}

// update loads, mutates, and persists settings.
func (s *Store) update(ctx context.Context, chatID string, mutate func(*Settings)) error {
	settings, err := s.Settings(ctx, chatID)
	if err != nil {
		return err
	}
	mutate(&settings)
	return s.SaveSettings(ctx, chatID, settings)
}

// Typed setters, one per field, validated at compile time.

func (s *Store) SetWelcomeEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.WelcomeEnabled = on })
}

func (s *Store) SetFarewellEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.FarewellEnabled = on })
}

func (s *Store) SetGamesEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.GamesEnabled = on })
}

func (s *Store) SetTagEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.TagEnabled = on })
}

func (s *Store) SetBroadcastEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.BroadcastEnabled = on })
}

func (s *Store) SetProtectionEnabled(ctx context.Context, chatID string, on bool) error {
	return s.update(ctx, chatID, func(v *Settings) { v.ProtectionEnabled = on })
}

func (s *Store) SetWelcomeText(ctx context.Context, chatID, text string) error {
	return s.update(ctx, chatID, func(v *Settings) { v.WelcomeText = text })
}

func (s *Store) SetRulesText(ctx context.Context, chatID, text string) error {
	return s.update(ctx, chatID, func(v *Settings) { v.RulesText = text })
}

func (s *Store) SetFloodLimit(ctx context.Context, chatID string, limit int) error {
	if limit < 1 {
		return fmt.Errorf("group: flood limit must be positive, got %d", limit)
	}
	return s.update(ctx, chatID, func(v *Settings) { v.FloodLimit = limit })
}

func (s *Store) SetFloodInterval(ctx context.Context, chatID string, seconds int) error {
	if seconds < 1 {
		return fmt.Errorf("group: flood interval must be positive, got %d", seconds)
	}
	return s.update(ctx, chatID, func(v *Settings) { v.FloodIntervalSec = seconds })
}

func (s *Store) SetMaxWarnings(ctx context.Context, chatID string, max int) error {
	if max < 1 {
		return fmt.Errorf("group: max warnings must be positive, got %d", max)
	}
	return s.update(ctx, chatID, func(v *Settings) { v.MaxWarnings = max })
}

// --- Lock rules ---

// SetLock binds a punishment to a feature. Upsert: a feature holds at most
// one rule per chat.
func (s *Store) SetLock(ctx context.Context, chatID, feature string, punishment Punishment) error {
	if !ValidPunishment(punishment) {
		return fmt.Errorf("group: invalid punishment %q", punishment)
	}
	return s.kv.HSet(ctx, locksKey(chatID), map[string]interface{}{
		feature: string(punishment),
	})
}

// RemoveLock deletes the rule for a feature.
func (s *Store) RemoveLock(ctx context.Context, chatID, feature string) error {
	return s.kv.HDel(ctx, locksKey(chatID), feature)
}

// Lock returns the punishment bound to a feature, if locked.
func (s *Store) Lock(ctx context.Context, chatID, feature string) (Punishment, bool, error) {
	val, ok, err := s.kv.HGet(ctx, locksKey(chatID), feature)
	if err != nil || !ok {
		return "", false, err
	}
	return Punishment(val), true, nil
}

// IsLocked reports whether a feature has an active rule.
func (s *Store) IsLocked(ctx context.Context, chatID, feature string) (bool, error) {
	_, ok, err := s.Lock(ctx, chatID, feature)
	return ok, err
}

// AllLocks returns every active rule for a chat as feature -> punishment.
func (s *Store) AllLocks(ctx context.Context, chatID string) (map[string]Punishment, error) {
	raw, err := s.kv.HGetAll(ctx, locksKey(chatID))
	if err != nil {
		return nil, fmt.Errorf("group: locks %s: %w", chatID, err)
	}
	locks := make(map[string]Punishment, len(raw))
	for feature, punishment := range raw {
		locks[feature] = Punishment(punishment)
	}
	return locks, nil
}

// --- Chat stats ---

// IncrStat atomically bumps a named chat counter.
func (s *Store) IncrStat(ctx context.Context, chatID, name string) (int64, error) {
	return s.kv.HIncrBy(ctx, chatKey(chatID), name, 1)
}

// Stat reads a named chat counter.
func (s *Store) Stat(ctx context.Context, chatID, name string) (int64, error) {
	val, ok, err := s.kv.HGet(ctx, chatKey(chatID), name)
	if err != nil || !ok {
		return 0, err
	}
	n, _ := strconv.ParseInt(val, 10, 64)
	return n, nil
}

// ResetStat zeroes a named chat counter.
func (s *Store) ResetStat(ctx context.Context, chatID, name string) error {
	return s.kv.HSet(ctx, chatKey(chatID), map[string]interface{}{name: 0})
}

// --- Custom commands ---

// globalCommandsKey holds triggers that fire in every chat; per-chat
// triggers shadow global ones.
const globalCommandsKey = "commands"

func commandsKey(chatID string) string {
	if chatID == "" {
		return globalCommandsKey
	}
	return "chat:" + chatID + ":commands"
}

// SetCommand registers a custom trigger -> response pair. An empty chatID
// registers it globally. Triggers are matched case-insensitively on the
// whole message text.
func (s *Store) SetCommand(ctx context.Context, chatID, trigger, response string) error {
	trigger = strings.ToLower(strings.TrimSpace(trigger))
	if trigger == "" {
		return fmt.Errorf("group: empty command trigger")
	}
	return s.kv.HSet(ctx, commandsKey(chatID), map[string]interface{}{trigger: response})
}

// RemoveCommand drops a custom trigger. An empty chatID targets the global
// table.
func (s *Store) RemoveCommand(ctx context.Context, chatID, trigger string) error {
	return s.kv.HDel(ctx, commandsKey(chatID), strings.ToLower(strings.TrimSpace(trigger)))
}

// Commands returns the trigger table for a chat, or the global table when
// chatID is empty.
func (s *Store) Commands(ctx context.Context, chatID string) (map[string]string, error) {
	return s.kv.HGetAll(ctx, commandsKey(chatID))
}

// LookupCommand resolves a message text against the chat's triggers first,
// then the global table.
func (s *Store) LookupCommand(ctx context.Context, chatID, text string) (string, bool, error) {
	trigger := strings.ToLower(strings.TrimSpace(text))
	if trigger == "" {
		return "", false, nil
	}
	response, ok, err := s.kv.HGet(ctx, commandsKey(chatID), trigger)
	if err != nil || ok {
		return response, ok, err
	}
	return s.kv.HGet(ctx, globalCommandsKey, trigger)
}
