package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// removes test keys before and after.  Tests that call this helper require
// a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, "test_store_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return New(client)
}

func TestSetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "test_store_kv", "hello", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	val, ok, err := s.Get(ctx, "test_store_kv")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok || val != "hello" {
		t.Errorf("Get() = %q, %v; want %q, true", val, ok, "hello")
	}
}

func TestGetAbsent(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "test_store_missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("expected absent key")
	}
}

func TestSetNonPositiveTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Pre-existing value must not survive a zero-TTL write.
	if err := s.Set(ctx, "test_store_zero", "old", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Set(ctx, "test_store_zero", "new", 0); err != nil {
		t.Fatalf("Set() with ttl=0 error: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "test_store_zero"); ok {
		t.Error("value written with ttl=0 should be immediately unreadable")
	}

	if err := s.Set(ctx, "test_store_neg", "v", -time.Second); err != nil {
		t.Fatalf("Set() with negative ttl error: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "test_store_neg"); ok {
		t.Error("value written with negative ttl should be immediately unreadable")
	}
}

func TestExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "test_store_ttl", "v", 100*time.Millisecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "test_store_ttl"); ok {
		t.Error("value should be gone after TTL")
	}
}

func TestClaimAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "test_store_claim", "7", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	// Wrong value does not claim and leaves the key in place.
	ok, err := s.ClaimAndDelete(ctx, "test_store_claim", "8")
	if err != nil {
		t.Fatalf("ClaimAndDelete() error: %v", err)
	}
	if ok {
		t.Fatal("claim with wrong value should fail")
	}
	if _, present, _ := s.Get(ctx, "test_store_claim"); !present {
		t.Fatal("failed claim must not delete the key")
	}

	// Correct value claims exactly once.
	ok, err = s.ClaimAndDelete(ctx, "test_store_claim", "7")
	if err != nil {
		t.Fatalf("ClaimAndDelete() error: %v", err)
	}
	if !ok {
		t.Fatal("claim with correct value should succeed")
	}
	ok, _ = s.ClaimAndDelete(ctx, "test_store_claim", "7")
	if ok {
		t.Fatal("second claim should fail")
	}
}

func TestClaimAndDeleteConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const attempts = 16
	for round := 0; round < 10; round++ {
		if err := s.Set(ctx, "test_store_race", "answer", time.Minute); err != nil {
			t.Fatalf("Set() error: %v", err)
		}

		var wg sync.WaitGroup
		wins := make(chan struct{}, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.ClaimAndDelete(ctx, "test_store_race", "answer")
				if err != nil {
					t.Errorf("ClaimAndDelete() error: %v", err)
					return
				}
				if ok {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for range wins {
			won++
		}
		if won != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", round, won)
		}
	}
}

func TestIncrWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := s.IncrWindow(ctx, "test_store_win", 200*time.Millisecond)
		if err != nil {
			t.Fatalf("IncrWindow() error: %v", err)
		}
		if count != int64(i) {
			t.Errorf("count = %d, want %d", count, i)
		}
	}

	// Counter is gone after the window elapses and the cycle repeats.
	time.Sleep(300 * time.Millisecond)
	count, err := s.IncrWindow(ctx, "test_store_win", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("IncrWindow() after expiry error: %v", err)
	}
	if count != 1 {
		t.Errorf("count after window = %d, want 1", count)
	}
}

func TestHIncrBy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.HIncrBy(ctx, "test_store_hash", "warnings", 1); err != nil {
				t.Errorf("HIncrBy() error: %v", err)
			}
		}()
	}
	wg.Wait()

	val, ok, err := s.HGet(ctx, "test_store_hash", "warnings")
	if err != nil || !ok {
		t.Fatalf("HGet() = %v, %v", ok, err)
	}
	if val != "20" {
		t.Errorf("concurrent increments lost updates: got %s, want 20", val)
	}
}

func TestScanPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"test_store_scan:1", "test_store_scan:2", "test_store_scan:3"} {
		if err := s.SetForever(ctx, k, "x"); err != nil {
			t.Fatalf("SetForever() error: %v", err)
		}
	}
	keys, err := s.ScanPrefix(ctx, "test_store_scan:*")
	if err != nil {
		t.Fatalf("ScanPrefix() error: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("ScanPrefix() returned %d keys, want 3", len(keys))
	}
}

func TestSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SAdd(ctx, "test_store_set", "a", "b"); err != nil {
		t.Fatalf("SAdd() error: %v", err)
	}
	n, err := s.SCard(ctx, "test_store_set")
	if err != nil || n != 2 {
		t.Fatalf("SCard() = %d, %v; want 2", n, err)
	}
	ok, _ := s.SIsMember(ctx, "test_store_set", "a")
	if !ok {
		t.Error("expected a to be a member")
	}
	if err := s.SRem(ctx, "test_store_set", "a"); err != nil {
		t.Fatalf("SRem() error: %v", err)
	}
	if ok, _ := s.SIsMember(ctx, "test_store_set", "a"); ok {
		t.Error("a should be removed")
	}
}
