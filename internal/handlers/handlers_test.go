package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/flood"
	"github.com/guardian/groupbot/internal/games"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/gateway/gatewaytest"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/lock"
	"github.com/guardian/groupbot/internal/perm"
	"github.com/guardian/groupbot/internal/roles"
	"github.com/guardian/groupbot/internal/session"
	"github.com/guardian/groupbot/internal/store"
	"github.com/guardian/groupbot/internal/user"
	"github.com/guardian/groupbot/internal/warnings"
)

const botID = "bot_self"

type testEnv struct {
	pipeline *dispatch.Pipeline
	gw       *gatewaytest.Fake
	deps     Deps
	chatID   string
}

// newTestEnv builds the full pipeline against a local Redis instance with a
// fresh registered chat. Requires Redis on localhost:6379.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	chatID := fmt.Sprintf("pipetest_%s_%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, "*"+chatID+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		for _, id := range []string{"admin1", "owner1", "helper1", "mod1", "buddy", "troll", "pleb", "newbie", "inviter"} {
			client.Del(ctx, "user:"+id)
			client.SRem(ctx, "users", id)
		}
		client.SRem(ctx, "chats", chatID)
		client.Close()
	})

	kv := store.New(client)
	users := user.NewStore(kv)
	groups := group.NewStore(kv)
	warns := warnings.NewLedger(kv)
	floods := flood.NewDetector(kv)
	sessions := session.NewStore(kv)
	gate := perm.NewGate(users, "superop")
	gw := gatewaytest.NewFake()

	deps := Deps{
		BotID:    botID,
		Gateway:  gw,
		Users:    users,
		Groups:   groups,
		Warnings: warns,
		Flood:    floods,
		Gate:     gate,
		Engine:   lock.NewEngine(botID, gw, gate, groups, users, warns, floods, nil),
		Games:    games.NewManager(sessions, groups, gw, nil),
		Sessions: sessions,
	}
	if err := groups.Register(ctx, chatID, "pipeline chat"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return &testEnv{pipeline: Build(deps), gw: gw, deps: deps, chatID: chatID}
}

func (env *testEnv) msg(sender, text string) *gateway.Event {
	return &gateway.Event{
		ID:         "evt1",
		ChatID:     env.chatID,
		ChatKind:   gateway.KindGroup,
		SenderID:   sender,
		SenderName: sender,
		MessageID:  "m1",
		Text:       text,
	}
}

func (env *testEnv) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	if _, err := env.deps.Users.SetRole(context.Background(), userID, roles.Admin, env.chatID); err != nil {
		t.Fatalf("SetRole() error: %v", err)
	}
}

func replies(gw *gatewaytest.Fake) []string {
	var out []string
	for _, a := range gw.Named("reply") {
		out = append(out, a.Text)
	}
	return out
}

func TestBanCommandByAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	evt := env.msg("admin1", "ban")
	evt.ReplyTo = &gateway.Ref{MessageID: "m0", SenderID: "troll"}
	env.pipeline.Process(ctx, evt)

	bans := env.gw.Named("ban_member")
	if len(bans) != 1 || bans[0].Target != "troll" {
		t.Fatalf("bans = %v, want one against troll", bans)
	}
	banned, err := env.deps.Users.IsBanned(ctx, env.chatID, "troll")
	if err != nil || !banned {
		t.Fatalf("IsBanned() = (%v, %v), want true", banned, err)
	}
}

func TestBanCommandDeniedForMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pipeline.Process(ctx, env.msg("pleb", "ban troll"))

	if bans := env.gw.Named("ban_member"); len(bans) != 0 {
		t.Fatalf("bans = %v, want none for a plain member", bans)
	}
	got := replies(env.gw)
	if len(got) != 1 || !strings.Contains(got[0], "not allowed") {
		t.Fatalf("replies = %v, want a single denial", got)
	}
	banned, err := env.deps.Users.IsBanned(ctx, env.chatID, "troll")
	if err != nil || banned {
		t.Fatalf("IsBanned() = (%v, %v), want false", banned, err)
	}
}

func TestPeerProtection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")
	if _, err := env.deps.Users.SetRole(ctx, "owner1", roles.Owner, env.chatID); err != nil {
		t.Fatalf("SetRole() error: %v", err)
	}

	// An Admin cannot ban an Owner.
	env.pipeline.Process(ctx, env.msg("admin1", "ban owner1"))
	if bans := env.gw.Named("ban_member"); len(bans) != 0 {
		t.Fatalf("bans = %v, want none against a higher rank", bans)
	}
}

func TestWarnCommandEscalation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	for i := 0; i < 3; i++ {
		env.pipeline.Process(ctx, env.msg("admin1", "warn troll"))
	}

	kicks := env.gw.Named("kick_member")
	if len(kicks) != 1 || kicks[0].Target != "troll" {
		t.Fatalf("kicks = %v, want exactly one against troll", kicks)
	}
	count, err := env.deps.Warnings.Count(ctx, env.chatID, "troll")
	if err != nil || count != 0 {
		t.Fatalf("warnings = (%d, %v), want 0 after escalation", count, err)
	}
}

func TestPromoteSudoRedirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pipeline.Process(ctx, env.msg("superop", "promote developer helper1"))

	// Developer is a bot-wide rank: the chat-scoped request lands globally.
	global, err := env.deps.Users.GlobalRole(ctx, "helper1")
	if err != nil {
		t.Fatalf("GlobalRole() error: %v", err)
	}
	if global != roles.Developer {
		t.Fatalf("global role = %v, want Developer", global)
	}
	got := replies(env.gw)
	if len(got) == 0 || !strings.Contains(got[len(got)-1], "every chat") {
		t.Fatalf("replies = %v, want a redirect notice", got)
	}
}

func TestPromoteChatScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pipeline.Process(ctx, env.msg("superop", "promote admin mod1"))

	chatRole, err := env.deps.Users.ChatRole(ctx, env.chatID, "mod1")
	if err != nil || chatRole != roles.Admin {
		t.Fatalf("chat role = (%v, %v), want Admin", chatRole, err)
	}
	global, err := env.deps.Users.GlobalRole(ctx, "mod1")
	if err != nil || global != roles.Member {
		t.Fatalf("global role = (%v, %v), want Member", global, err)
	}
}

func TestPromoteDeniedWithoutRank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pipeline.Process(ctx, env.msg("pleb", "promote admin buddy"))

	role, err := env.deps.Users.ChatRole(ctx, env.chatID, "buddy")
	if err != nil || role != roles.Member {
		t.Fatalf("role = (%v, %v), want Member", role, err)
	}
}

func TestLockCommandThenEnforcement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	env.pipeline.Process(ctx, env.msg("admin1", "lock link warn"))
	punishment, ok, err := env.deps.Groups.Lock(ctx, env.chatID, "link")
	if err != nil || !ok || punishment != group.PunishWarn {
		t.Fatalf("lock = (%v, %v, %v), want warn", punishment, ok, err)
	}
	env.gw.Reset()

	// A member's link is now deleted and warned; the admin stays exempt.
	env.pipeline.Process(ctx, env.msg("pleb", "check https://spam.example"))
	if got := env.gw.Named("delete_message"); len(got) != 1 {
		t.Fatalf("deletes = %d, want 1", len(got))
	}

	env.gw.Reset()
	env.pipeline.Process(ctx, env.msg("admin1", "see https://fine.example"))
	if got := env.gw.Named("delete_message"); len(got) != 0 {
		t.Fatalf("deletes = %d, want 0 for exempt sender", len(got))
	}
}

func TestUnlockCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	env.pipeline.Process(ctx, env.msg("admin1", "lock photo"))
	env.pipeline.Process(ctx, env.msg("admin1", "unlock photo"))

	ok, err := env.deps.Groups.IsLocked(ctx, env.chatID, "photo")
	if err != nil || ok {
		t.Fatalf("IsLocked() = (%v, %v), want false", ok, err)
	}
}

func TestSettingsToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	env.pipeline.Process(ctx, env.msg("admin1", "disable games"))
	settings, err := env.deps.Groups.Settings(ctx, env.chatID)
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if settings.GamesEnabled {
		t.Fatal("games still enabled after disable command")
	}

	env.pipeline.Process(ctx, env.msg("admin1", "set maxwarnings 5"))
	settings, err = env.deps.Groups.Settings(ctx, env.chatID)
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if settings.MaxWarnings != 5 {
		t.Fatalf("max warnings = %d, want 5", settings.MaxWarnings)
	}
}

func TestCustomCommandRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	env.pipeline.Process(ctx, env.msg("admin1", "addcommand schedule Meetings are on Monday."))
	env.gw.Reset()

	env.pipeline.Process(ctx, env.msg("pleb", "SCHEDULE"))
	got := replies(env.gw)
	if len(got) != 1 || got[0] != "Meetings are on Monday." {
		t.Fatalf("replies = %v, want the stored response", got)
	}

	env.gw.Reset()
	env.pipeline.Process(ctx, env.msg("admin1", "delcommand schedule"))
	env.gw.Reset()
	env.pipeline.Process(ctx, env.msg("pleb", "schedule"))
	if got := replies(env.gw); len(got) != 0 {
		t.Fatalf("replies = %v, want none after removal", got)
	}
}

func TestAutoResponse(t *testing.T) {
	env := newTestEnv(t)

	env.pipeline.Process(context.Background(), env.msg("pleb", "ping"))
	got := replies(env.gw)
	if len(got) != 1 || got[0] != "pong" {
		t.Fatalf("replies = %v, want pong", got)
	}
}

func TestGameAnswerShadowsCustomTrigger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	if err := env.deps.Games.Start(ctx, env.chatID, games.KindRiddle); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	round, ok, err := env.deps.Sessions.ActiveRound(ctx, env.chatID, games.KindRiddle)
	if err != nil || !ok {
		t.Fatalf("ActiveRound() = (%v, %v)", ok, err)
	}

	// The same word is also a custom trigger; the open round wins.
	env.pipeline.Process(ctx, env.msg("admin1", "addcommand "+round.Answer+" shadowed"))
	env.gw.Reset()
	env.pipeline.Process(ctx, env.msg("pleb", round.Answer))

	got := replies(env.gw)
	if len(got) != 1 || got[0] == "shadowed" {
		t.Fatalf("replies = %v, want only the winner announcement", got)
	}
	if !strings.Contains(got[0], "pleb") {
		t.Fatalf("announcement %q does not name the winner", got[0])
	}
}

func TestJoinRegistersChatForBot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Use a second chat so registration is observable.
	newChat := env.chatID + "_second"
	t.Cleanup(func() {
		env.deps.Groups.Remove(ctx, newChat)
	})

	evt := env.msg("inviter", "")
	evt.ChatID = newChat
	evt.ChatTitle = "fresh chat"
	evt.NewMembers = []gateway.Member{{ID: botID, Name: "Guardian", IsBot: true}}
	env.pipeline.Process(ctx, evt)

	title, err := env.deps.Groups.Title(ctx, newChat)
	if err != nil || title != "fresh chat" {
		t.Fatalf("Title() = (%q, %v), want fresh chat", title, err)
	}
}

func TestWelcomeMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	evt := env.msg("inviter", "")
	evt.NewMembers = []gateway.Member{{ID: "newbie", Name: "Dana"}}
	env.pipeline.Process(ctx, evt)

	sends := env.gw.Named("send_message")
	if len(sends) != 1 || !strings.Contains(sends[0].Text, "Dana") {
		t.Fatalf("sends = %v, want one welcome naming Dana", sends)
	}

	// Custom text replaces the default.
	env.makeAdmin(t, "admin1")
	env.pipeline.Process(ctx, env.msg("admin1", "set welcome Read the rules first."))
	env.gw.Reset()
	env.pipeline.Process(ctx, evt)
	sends = env.gw.Named("send_message")
	if len(sends) != 1 || sends[0].Text != "Read the rules first." {
		t.Fatalf("sends = %v, want the custom welcome", sends)
	}
}

func TestDepartureCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makeAdmin(t, "admin1")

	env.pipeline.Process(ctx, env.msg("admin1", "warn troll"))
	count, err := env.deps.Warnings.Count(ctx, env.chatID, "troll")
	if err != nil || count != 1 {
		t.Fatalf("warnings = (%d, %v), want 1", count, err)
	}

	evt := env.msg("troll", "")
	evt.LeftMember = &gateway.Member{ID: "troll", Name: "Troll"}
	env.pipeline.Process(ctx, evt)

	count, err = env.deps.Warnings.Count(ctx, env.chatID, "troll")
	if err != nil || count != 0 {
		t.Fatalf("warnings = (%d, %v), want 0 after departure", count, err)
	}
}

func TestBotDepartureDropsChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	evt := env.msg("admin1", "")
	evt.LeftMember = &gateway.Member{ID: botID, Name: "Guardian", IsBot: true}
	env.pipeline.Process(ctx, evt)

	title, err := env.deps.Groups.Title(ctx, env.chatID)
	if err != nil || title != "" {
		t.Fatalf("Title() = (%q, %v), want empty after removal", title, err)
	}
}
