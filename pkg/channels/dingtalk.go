package channels

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

// DingTalkChannel adapts DingTalk chatbot stream events to the message
// bus. Outbound replies go through the per-conversation session webhook
// DingTalk hands back with each inbound event, so Send only works for a
// conversation that has a live, unexpired webhook.
type DingTalkChannel struct {
	Base
	cli       *client.StreamClient
	replier   *chatbot.ChatBotReplier
	running   atomic.Bool
	webhookMu sync.Mutex
	webhooks  map[string]sessionWebhook
}

type sessionWebhook struct {
	url     string
	expires time.Time
}

// NewDingTalkChannel builds a DingTalk adapter from cc.Extra["client_id"]
// and cc.Extra["client_secret"].
func NewDingTalkChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*DingTalkChannel, error) {
	clientID, clientSecret := cc.Extra["client_id"], cc.Extra["client_secret"]
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("dingtalk: client_id/client_secret not configured")
	}

	d := &DingTalkChannel{
		Base:     NewBase(name, b, cc.AllowFrom),
		replier:  chatbot.NewChatBotReplier(),
		webhooks: make(map[string]sessionWebhook),
	}
	d.cli = client.NewStreamClient(client.WithAppCredential(client.NewAppCredentialConfig(clientID, clientSecret)))
	d.cli.RegisterChatBotCallbackRouter(d.onMessage)
	return d, nil
}

func (d *DingTalkChannel) IsRunning() bool {
	return d.running.Load()
}

func (d *DingTalkChannel) Start(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)
	if err := d.cli.Start(ctx); err != nil {
		return fmt.Errorf("dingtalk: %w", err)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *DingTalkChannel) Stop(ctx context.Context) error {
	d.cli.Close()
	return nil
}

func (d *DingTalkChannel) onMessage(ctx context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data.SenderId == "" || data.ConversationId == "" || data.Text.Content == "" {
		return []byte(""), nil
	}

	d.webhookMu.Lock()
	d.webhooks[data.ConversationId] = sessionWebhook{
		url:     data.SessionWebhook,
		expires: time.UnixMilli(data.SessionWebhookExpiredTime),
	}
	d.webhookMu.Unlock()

	d.HandleMessage(data.SenderId, data.SenderNick, data.ConversationId, data.Text.Content, nil, map[string]string{
		"msg_id": data.MsgId,
	})
	return []byte(""), nil
}

func (d *DingTalkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	d.webhookMu.Lock()
	wh, ok := d.webhooks[msg.ChatID]
	d.webhookMu.Unlock()
	if !ok || time.Now().After(wh.expires) {
		logger.WarnCF("channels", "dingtalk session webhook expired", map[string]interface{}{"chat_id": msg.ChatID})
		return fmt.Errorf("dingtalk: no live session webhook for conversation %s", msg.ChatID)
	}
	return d.replier.SimpleReplyText(ctx, wh.url, []byte(msg.Content))
}
