package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guardian/groupbot/internal/config"
	"github.com/guardian/groupbot/internal/dispatch"
	"github.com/guardian/groupbot/internal/flood"
	"github.com/guardian/groupbot/internal/games"
	"github.com/guardian/groupbot/internal/gateway"
	"github.com/guardian/groupbot/internal/group"
	"github.com/guardian/groupbot/internal/handlers"
	"github.com/guardian/groupbot/internal/lock"
	"github.com/guardian/groupbot/internal/messaging"
	"github.com/guardian/groupbot/internal/metrics"
	"github.com/guardian/groupbot/internal/perm"
	"github.com/guardian/groupbot/internal/session"
	"github.com/guardian/groupbot/internal/stats"
	"github.com/guardian/groupbot/internal/store"
	"github.com/guardian/groupbot/internal/user"
	"github.com/guardian/groupbot/internal/warnings"
)

func main() {
	log.Println("Starting Guardian group bot...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// --- Redis ---
	kv, err := store.Dial(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer kv.Close()
	log.Printf("connected to Redis at %s", cfg.RedisAddr)

	// --- NATS (optional) ---
	var events *messaging.Client
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "guardian-groupbot"
		events, err = messaging.New(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer events.Close()
	} else {
		log.Println("NATS_URL not set, audit events disabled")
	}

	// --- PostgreSQL (optional) ---
	var durable *stats.Store
	if cfg.PostgresDSN != "" {
		durable, err = stats.Open(cfg.PostgresDSN, cfg.Migrations)
		if err != nil {
			log.Fatalf("failed to set up PostgreSQL: %v", err)
		}
		defer durable.Close()
		log.Println("durable stats enabled")
	} else {
		log.Println("POSTGRES_DSN not set, durable stats disabled")
	}

	// --- Metrics ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	// --- Stores and services ---
	users := user.NewStore(kv)
	groups := group.NewStore(kv)
	warns := warnings.NewLedger(kv)
	floods := flood.NewDetector(kv)
	sessions := session.NewStore(kv)
	gate := perm.NewGate(users, cfg.SuperOperatorID)

	// The pipeline and the WS gateway reference each other: the gateway
	// feeds events in, the handlers call back out through it. The handler
	// closure resolves the cycle.
	var pipeline *dispatch.Pipeline
	gw := gateway.NewWSGateway(cfg.GatewayURL, func(ctx context.Context, evt *gateway.Event) {
		pipeline.Process(ctx, evt)
	})

	engine := lock.NewEngine(cfg.BotID, gw, gate, groups, users, warns, floods, events)
	manager := games.NewManager(sessions, groups, gw, events)

	pipeline = handlers.Build(handlers.Deps{
		BotID:    cfg.BotID,
		Gateway:  gw,
		Users:    users,
		Groups:   groups,
		Warnings: warns,
		Flood:    floods,
		Gate:     gate,
		Engine:   engine,
		Games:    manager,
		Sessions: sessions,
		Events:   events,
		Stats:    durable,
	})

	// --- Run ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- gw.Run(ctx)
	}()
	log.Printf("bot %s connecting to %s", cfg.BotID, cfg.GatewayURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %v, shutting down...", sig)
		cancel()
		select {
		case <-runErr:
		case <-time.After(5 * time.Second):
		}
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			log.Fatalf("gateway stopped: %v", err)
		}
	}

	log.Println("shutdown complete")
}
