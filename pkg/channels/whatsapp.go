package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

// WhatsAppChannel adapts a whatsmeow-backed WhatsApp device to the message
// bus. Device pairing (QR code) is out of scope here and handled by a
// separate onboarding step that populates the session store at dbPath.
type WhatsAppChannel struct {
	Base
	dbPath  string
	client  *whatsmeow.Client
	running atomic.Bool
}

type waLogger struct{}

func (l waLogger) Errorf(msg string, args ...interface{}) {
	logger.ErrorCF("whatsapp", fmt.Sprintf(msg, args...), nil)
}
func (l waLogger) Warnf(msg string, args ...interface{}) {
	logger.WarnCF("whatsapp", fmt.Sprintf(msg, args...), nil)
}
func (l waLogger) Infof(msg string, args ...interface{}) {
	logger.InfoCF("whatsapp", fmt.Sprintf(msg, args...), nil)
}
func (l waLogger) Debugf(msg string, args ...interface{}) {}
func (l waLogger) Sub(module string) waLog.Logger         { return l }

// NewWhatsAppChannel builds a WhatsApp adapter from cc.Extra["session_db"],
// the sqlite file an earlier pairing step authenticated into.
func NewWhatsAppChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*WhatsAppChannel, error) {
	dbPath := cc.Extra["session_db"]
	if dbPath == "" {
		return nil, fmt.Errorf("whatsapp: session_db not configured")
	}
	return &WhatsAppChannel{
		Base:   NewBase(name, b, cc.AllowFrom),
		dbPath: dbPath,
	}, nil
}

func (w *WhatsAppChannel) IsRunning() bool {
	return w.running.Load()
}

func (w *WhatsAppChannel) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(w.dbPath), 0o700); err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	container, err := sqlstore.New(ctx, "sqlite", "file:"+w.dbPath+"?_pragma=foreign_keys(1)", waLogger{})
	if err != nil {
		return fmt.Errorf("whatsapp: open session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}

	w.client = whatsmeow.NewClient(device, waLogger{})
	if w.client.Store.ID == nil {
		return fmt.Errorf("whatsapp: device not paired, run onboarding first")
	}

	w.client.AddEventHandler(w.handleEvent)
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect: %w", err)
	}
	w.running.Store(true)
	defer w.running.Store(false)

	<-ctx.Done()
	w.client.Disconnect()
	return ctx.Err()
}

func (w *WhatsAppChannel) Stop(ctx context.Context) error {
	if w.client != nil {
		w.client.Disconnect()
	}
	return nil
}

func (w *WhatsAppChannel) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		w.handleMessage(e)
	}
}

func (w *WhatsAppChannel) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe || msg.Info.IsGroup {
		return
	}

	content := ""
	if msg.Message.GetConversation() != "" {
		content = msg.Message.GetConversation()
	} else if ext := msg.Message.GetExtendedTextMessage(); ext != nil {
		content = ext.GetText()
	}
	if content == "" {
		return
	}

	senderID := msg.Info.Sender.User
	chatID := msg.Info.Chat.String()
	w.HandleMessage(senderID, senderID, chatID, content, nil, map[string]string{
		"message_id": msg.Info.ID,
	})
}

func (w *WhatsAppChannel) Send(ctx context.Context, outMsg bus.OutboundMessage) error {
	recipient, err := types.ParseJID(outMsg.ChatID)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid chat id %s: %w", outMsg.ChatID, err)
	}

	for _, chunk := range splitMessage(outMsg.Content, 4096) {
		text := chunk
		if _, err := w.client.SendMessage(ctx, recipient, &waProto.Message{Conversation: &text}); err != nil {
			return err
		}
	}
	return nil
}
