package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

// MochatChannel speaks a small JSON-over-websocket protocol to a Mochat
// bridge process: {"type":"message",...} frames inbound, {"type":"send",...}
// frames outbound. It reconnects on drop with a fixed backoff.
type MochatChannel struct {
	Base
	url       string
	authToken string
	running   atomic.Bool

	connMu sync.RWMutex
	conn   *websocket.Conn
}

func (m *MochatChannel) IsRunning() bool {
	return m.running.Load()
}

// NewMochatChannel builds a Mochat adapter from cc.Extra["url"] (the
// bridge's websocket endpoint) and optionally cc.Extra["token"].
func NewMochatChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*MochatChannel, error) {
	url := cc.Extra["url"]
	if url == "" {
		return nil, fmt.Errorf("mochat: url not configured")
	}
	return &MochatChannel{
		Base:      NewBase(name, b, cc.AllowFrom),
		url:       url,
		authToken: cc.Extra["token"],
	}, nil
}

func (m *MochatChannel) Start(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	for {
		if err := m.connectOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WarnCF("channels", "mochat connection lost, retrying", map[string]interface{}{
				"channel": m.Name(), "error": err.Error(),
			})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (m *MochatChannel) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return err
	}
	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()
	defer func() {
		conn.Close()
		m.connMu.Lock()
		m.conn = nil
		m.connMu.Unlock()
	}()

	if m.authToken != "" {
		auth, _ := json.Marshal(map[string]string{"type": "auth", "token": m.authToken})
		if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
			return err
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleFrame(raw)
	}
}

type mochatFrame struct {
	Type       string `json:"type"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	ChatID     string `json:"chat_id"`
	Content    string `json:"content"`
}

func (m *MochatChannel) handleFrame(raw []byte) {
	var frame mochatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	if frame.Type != "message" || frame.SenderID == "" || frame.ChatID == "" || frame.Content == "" {
		return
	}
	m.HandleMessage(frame.SenderID, frame.SenderName, frame.ChatID, frame.Content, nil, nil)
}

func (m *MochatChannel) Stop(ctx context.Context) error {
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (m *MochatChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("mochat: not connected")
	}
	payload, err := json.Marshal(mochatFrame{Type: "send", ChatID: msg.ChatID, Content: msg.Content})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
