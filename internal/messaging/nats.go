// Package messaging publishes the bot's audit events over NATS so external
// services (relay, broadcast, moderation dashboards) can consume them
// without coupling to the bot process. The bot only publishes; it never
// subscribes.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects published by the bot.
const (
	SubjectViolation      = "mod.violation"
	SubjectPunishment     = "mod.punishment"
	SubjectChatRegistered = "bot.chat.registered"
	SubjectRoundWon       = "bot.round.won"
)

// ViolationEvent reports one classified lock violation.
type ViolationEvent struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	Feature string `json:"feature"`
	Ts      int64  `json:"ts"`
}

// PunishmentEvent reports one applied punishment.
type PunishmentEvent struct {
	ChatID     string `json:"chat_id"`
	UserID     string `json:"user_id"`
	Feature    string `json:"feature"`
	Punishment string `json:"punishment"`
	Ts         int64  `json:"ts"`
}

// ChatRegisteredEvent reports a chat joining the bot's registry.
type ChatRegisteredEvent struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
	Ts     int64  `json:"ts"`
}

// RoundWonEvent reports a game round being claimed.
type RoundWonEvent struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Ts     int64  `json:"ts"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "groupbot",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Client wraps the NATS connection. A nil *Client is valid and no-ops every
// publish, so the core runs without NATS configured.
type Client struct {
	conn *nats.Conn
}

// New connects to NATS with the given config and returns a ready client.
func New(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())
	return &Client{conn: nc}, nil
}

// publish marshals and sends one event. Publish failures are logged, not
// returned: audit events are best-effort and must never affect moderation.
func (c *Client) publish(subject string, v interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[nats] marshal %s: %v", subject, err)
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		log.Printf("[nats] publish %s: %v", subject, err)
	}
}

// PublishViolation emits a mod.violation event.
func (c *Client) PublishViolation(evt ViolationEvent) {
	c.publish(SubjectViolation, evt)
}

// PublishPunishment emits a mod.punishment event.
func (c *Client) PublishPunishment(evt PunishmentEvent) {
	c.publish(SubjectPunishment, evt)
}

// PublishChatRegistered emits a bot.chat.registered event.
func (c *Client) PublishChatRegistered(evt ChatRegisteredEvent) {
	c.publish(SubjectChatRegistered, evt)
}

// PublishRoundWon emits a bot.round.won event.
func (c *Client) PublishRoundWon(evt RoundWonEvent) {
	c.publish(SubjectRoundWon, evt)
}

// Close drains and closes the NATS connection.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] client closed")
}
