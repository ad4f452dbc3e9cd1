package group

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardian/groupbot/internal/store"
)

// newTestStore builds a group store against a local Redis instance with a
// unique chat ID per test. Requires Redis on localhost:6379.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	chatID := fmt.Sprintf("grouptest_%s_%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, "*"+chatID+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.SRem(ctx, chatsKey, chatID)
		client.Close()
	})
	return NewStore(store.New(client)), chatID
}

func TestRegisterAndRemove(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, chatID, "gopher den"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	title, err := s.Title(ctx, chatID)
	if err != nil || title != "gopher den" {
		t.Fatalf("Title() = (%q, %v), want gopher den", title, err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	found := false
	for _, id := range all {
		if id == chatID {
			found = true
		}
	}
	if !found {
		t.Fatal("registered chat missing from All()")
	}

	if err := s.Remove(ctx, chatID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	title, err = s.Title(ctx, chatID)
	if err != nil || title != "" {
		t.Fatalf("Title() after remove = (%q, %v), want empty", title, err)
	}
}

func TestRegisterPreservesSettings(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, chatID, "first title"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := s.SetMaxWarnings(ctx, chatID, 7); err != nil {
		t.Fatalf("SetMaxWarnings() error: %v", err)
	}

	// Re-registration refreshes the title but keeps tuned settings.
	if err := s.Register(ctx, chatID, "second title"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	settings, err := s.Settings(ctx, chatID)
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if settings.MaxWarnings != 7 {
		t.Fatalf("max warnings = %d, want 7 preserved", settings.MaxWarnings)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s, chatID := newTestStore(t)

	settings, err := s.Settings(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if !settings.WelcomeEnabled || !settings.GamesEnabled {
		t.Fatalf("defaults = %+v, want welcome and games on", settings)
	}
	if settings.FloodLimit != 10 || settings.FloodIntervalSec != 5 || settings.MaxWarnings != 3 {
		t.Fatalf("defaults = %+v, want flood 10/5s and 3 warnings", settings)
	}
	if settings.FloodInterval() != 5*time.Second {
		t.Fatalf("FloodInterval() = %v, want 5s", settings.FloodInterval())
	}
}

func TestTypedSetters(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.SetGamesEnabled(ctx, chatID, false); err != nil {
		t.Fatalf("SetGamesEnabled() error: %v", err)
	}
	if err := s.SetWelcomeText(ctx, chatID, "hi there"); err != nil {
		t.Fatalf("SetWelcomeText() error: %v", err)
	}
	if err := s.SetFloodLimit(ctx, chatID, 20); err != nil {
		t.Fatalf("SetFloodLimit() error: %v", err)
	}

	settings, err := s.Settings(ctx, chatID)
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if settings.GamesEnabled || settings.WelcomeText != "hi there" || settings.FloodLimit != 20 {
		t.Fatalf("settings = %+v, want games off, custom welcome, flood 20", settings)
	}
}

func TestSetterValidation(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.SetFloodLimit(ctx, chatID, 0); err == nil {
		t.Error("SetFloodLimit(0) accepted")
	}
	if err := s.SetFloodInterval(ctx, chatID, -1); err == nil {
		t.Error("SetFloodInterval(-1) accepted")
	}
	if err := s.SetMaxWarnings(ctx, chatID, 0); err == nil {
		t.Error("SetMaxWarnings(0) accepted")
	}
}

func TestLocks(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.SetLock(ctx, chatID, "link", PunishWarn); err != nil {
		t.Fatalf("SetLock() error: %v", err)
	}
	punishment, ok, err := s.Lock(ctx, chatID, "link")
	if err != nil || !ok || punishment != PunishWarn {
		t.Fatalf("Lock() = (%v, %v, %v), want warn", punishment, ok, err)
	}

	// Upsert changes the punishment in place.
	if err := s.SetLock(ctx, chatID, "link", PunishBan); err != nil {
		t.Fatalf("SetLock() error: %v", err)
	}
	punishment, _, err = s.Lock(ctx, chatID, "link")
	if err != nil || punishment != PunishBan {
		t.Fatalf("Lock() after upsert = (%v, %v), want ban", punishment, err)
	}

	if err := s.SetLock(ctx, chatID, "photo", PunishDelete); err != nil {
		t.Fatalf("SetLock() error: %v", err)
	}
	locks, err := s.AllLocks(ctx, chatID)
	if err != nil || len(locks) != 2 {
		t.Fatalf("AllLocks() = (%v, %v), want 2 entries", locks, err)
	}

	if err := s.RemoveLock(ctx, chatID, "link"); err != nil {
		t.Fatalf("RemoveLock() error: %v", err)
	}
	ok, err = s.IsLocked(ctx, chatID, "link")
	if err != nil || ok {
		t.Fatalf("IsLocked() = (%v, %v), want false", ok, err)
	}
}

func TestSetLockRejectsBadPunishment(t *testing.T) {
	s, chatID := newTestStore(t)

	if err := s.SetLock(context.Background(), chatID, "link", Punishment("explode")); err == nil {
		t.Error("SetLock() accepted an unknown punishment")
	}
}

func TestChatStats(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.IncrStat(ctx, chatID, "messages"); err != nil {
			t.Fatalf("IncrStat() error: %v", err)
		}
	}
	n, err := s.Stat(ctx, chatID, "messages")
	if err != nil || n != 3 {
		t.Fatalf("Stat() = (%d, %v), want 3", n, err)
	}

	if err := s.ResetStat(ctx, chatID, "messages"); err != nil {
		t.Fatalf("ResetStat() error: %v", err)
	}
	n, err = s.Stat(ctx, chatID, "messages")
	if err != nil || n != 0 {
		t.Fatalf("Stat() after reset = (%d, %v), want 0", n, err)
	}
}

func TestCustomCommands(t *testing.T) {
	s, chatID := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCommand(ctx, chatID, "Schedule", "Mondays."); err != nil {
		t.Fatalf("SetCommand() error: %v", err)
	}

	// Lookup is case-insensitive and trim-tolerant.
	response, ok, err := s.LookupCommand(ctx, chatID, "  SCHEDULE ")
	if err != nil || !ok || response != "Mondays." {
		t.Fatalf("LookupCommand() = (%q, %v, %v), want Mondays.", response, ok, err)
	}

	// Unknown triggers miss.
	_, ok, err = s.LookupCommand(ctx, chatID, "agenda")
	if err != nil || ok {
		t.Fatalf("LookupCommand(agenda) = (%v, %v), want miss", ok, err)
	}

	if err := s.RemoveCommand(ctx, chatID, "schedule"); err != nil {
		t.Fatalf("RemoveCommand() error: %v", err)
	}
	_, ok, err = s.LookupCommand(ctx, chatID, "schedule")
	if err != nil || ok {
		t.Fatalf("LookupCommand() after removal = (%v, %v), want miss", ok, err)
	}

	if err := s.SetCommand(ctx, chatID, "", "empty"); err == nil {
		t.Error("SetCommand() accepted an empty trigger")
	}
}
