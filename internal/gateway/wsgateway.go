package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

const (
	// FrameRequest / FrameResponse implement the query half of the gateway
	// (admin lists, member status) with correlation IDs.
	FrameRequest  = "request"
	FrameResponse = "response"

	writeTimeout   = 5 * time.Second
	requestTimeout = 10 * time.Second
	reconnectBase  = time.Second
	reconnectMax   = 30 * time.Second
)

// EventHandler processes one inbound event. The WS gateway invokes it on a
// fresh goroutine per event, so unrelated events never block each other.
type EventHandler func(ctx context.Context, evt *Event)

// WSGateway speaks the JSON frame protocol to the platform edge over a
// WebSocket connection. It is the concrete Gateway used in production.
type WSGateway struct {
	url     string
	handler EventHandler

	mu   sync.Mutex // serializes writes to conn
	conn net.Conn

	pendingMu sync.Mutex
	pending   map[string]chan json.RawMessage
}

// NewWSGateway creates a gateway that will dial url when Run is called.
func NewWSGateway(url string, handler EventHandler) *WSGateway {
	return &WSGateway{
		url:     url,
		handler: handler,
		pending: make(map[string]chan json.RawMessage),
	}
}

// Run dials the edge and processes frames until ctx is cancelled, redialing
// with exponential backoff after connection loss.
func (g *WSGateway) Run(ctx context.Context) error {
	backoff := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, _, err := ws.Dial(ctx, g.url)
		if err != nil {
			log.Printf("[gateway] dial %s failed: %v (retrying in %s)", g.url, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff *= 2; backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		log.Printf("[gateway] connected to %s", g.url)
		backoff = reconnectBase

		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()

		// Closing the socket on cancellation unblocks the read loop so
		// shutdown does not wait for the next inbound frame.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()

		g.readLoop(ctx, conn)
		close(readDone)

		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[gateway] connection lost, reconnecting")
	}
}

// readLoop reads frames until the connection drops or ctx is cancelled.
func (g *WSGateway) readLoop(ctx context.Context, conn net.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			log.Printf("[gateway] read: %v", err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[gateway] bad frame: %v", err)
			continue
		}

		switch env.Type {
		case FrameEvent:
			var frame EventFrame
			if err := json.Unmarshal(env.Raw, &frame); err != nil {
				log.Printf("[gateway] bad event frame: %v", err)
				continue
			}
			evt := frame.Event
			if evt.ID == "" {
				evt.ID = uuid.NewString()
			}
			// Events from different chats must not serialize behind each
			// other; each gets its own goroutine.
			go g.handler(ctx, &evt)

		case FrameResponse:
			g.deliverResponse(env.Raw)

		case FramePong:
			// keepalive, nothing to do

		default:
			log.Printf("[gateway] unsupported frame type=%q", env.Type)
		}
	}
}

func (g *WSGateway) deliverResponse(raw json.RawMessage) {
	var resp struct {
		ID     string          `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Printf("[gateway] bad response frame: %v", err)
		return
	}
	g.pendingMu.Lock()
	ch, ok := g.pending[resp.ID]
	delete(g.pending, resp.ID)
	g.pendingMu.Unlock()
	if ok {
		ch <- resp.Result
	}
}

// write sends one frame, serializing concurrent writers and bounding the
// time the socket write may take.
func (g *WSGateway) write(data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway: not connected")
	}
	g.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wsutil.WriteClientMessage(g.conn, ws.OpText, data)
}

// action marshals and sends a fire-and-forget action frame.
func (g *WSGateway) action(action, chatID string, args map[string]string) error {
	data, err := NewActionFrame(action, chatID, args)
	if err != nil {
		return err
	}
	return g.write(data)
}

// request performs a correlated request/response round trip with the edge.
func (g *WSGateway) request(ctx context.Context, kind, chatID string, args map[string]string) (json.RawMessage, error) {
	id := uuid.NewString()
	frame := struct {
		Type   string            `json:"type"`
		ID     string            `json:"id"`
		Kind   string            `json:"kind"`
		ChatID string            `json:"chat_id"`
		Args   map[string]string `json:"args,omitempty"`
	}{FrameRequest, id, kind, chatID, args}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request %s: %w", kind, err)
	}

	ch := make(chan json.RawMessage, 1)
	g.pendingMu.Lock()
	g.pending[id] = ch
	g.pendingMu.Unlock()

	cleanup := func() {
		g.pendingMu.Lock()
		delete(g.pending, id)
		g.pendingMu.Unlock()
	}

	if err := g.write(data); err != nil {
		cleanup()
		return nil, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case result := <-ch:
		return result, nil
	case <-timer.C:
		cleanup()
		return nil, fmt.Errorf("gateway: request %s timed out", kind)
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

// --- Gateway implementation ---

func (g *WSGateway) SendMessage(ctx context.Context, chatID, text string) error {
	return g.action("send_message", chatID, map[string]string{"text": text})
}

func (g *WSGateway) Reply(ctx context.Context, chatID, messageID, text string) error {
	return g.action("send_message", chatID, map[string]string{"text": text, "reply_to": messageID})
}

func (g *WSGateway) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	return g.action("delete_message", chatID, map[string]string{"message_id": messageID})
}

func (g *WSGateway) KickMember(ctx context.Context, chatID, userID string) error {
	return g.action("kick_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) BanMember(ctx context.Context, chatID, userID string) error {
	return g.action("ban_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) UnbanMember(ctx context.Context, chatID, userID string) error {
	return g.action("unban_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) RestrictMember(ctx context.Context, chatID, userID string) error {
	return g.action("restrict_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) UnrestrictMember(ctx context.Context, chatID, userID string) error {
	return g.action("unrestrict_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) PromoteMember(ctx context.Context, chatID, userID string) error {
	return g.action("promote_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) DemoteMember(ctx context.Context, chatID, userID string) error {
	return g.action("demote_member", chatID, map[string]string{"user_id": userID})
}

func (g *WSGateway) SetChatTitle(ctx context.Context, chatID, title string) error {
	return g.action("set_chat_title", chatID, map[string]string{"title": title})
}

func (g *WSGateway) SetChatDescription(ctx context.Context, chatID, description string) error {
	return g.action("set_chat_description", chatID, map[string]string{"description": description})
}

func (g *WSGateway) ChatAdministrators(ctx context.Context, chatID string) ([]Member, error) {
	raw, err := g.request(ctx, "chat_administrators", chatID, nil)
	if err != nil {
		return nil, err
	}
	var members []Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("gateway: unmarshal administrators: %w", err)
	}
	return members, nil
}

func (g *WSGateway) MemberStatus(ctx context.Context, chatID, userID string) (MemberStatus, error) {
	raw, err := g.request(ctx, "member_status", chatID, map[string]string{"user_id": userID})
	if err != nil {
		return "", err
	}
	var status MemberStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", fmt.Errorf("gateway: unmarshal member status: %w", err)
	}
	return status, nil
}
