package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
)

// FeishuChannel adapts Feishu/Lark message events, received over the
// platform's long-connection websocket client, to the message bus.
type FeishuChannel struct {
	Base
	client  *lark.Client
	ws      *larkws.Client
	running atomic.Bool
}

// NewFeishuChannel builds a Feishu adapter from cc.Extra["app_id"] and
// cc.Extra["app_secret"].
func NewFeishuChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*FeishuChannel, error) {
	appID, appSecret := cc.Extra["app_id"], cc.Extra["app_secret"]
	if appID == "" || appSecret == "" {
		return nil, fmt.Errorf("feishu: app_id/app_secret not configured")
	}

	f := &FeishuChannel{
		Base:   NewBase(name, b, cc.AllowFrom),
		client: lark.NewClient(appID, appSecret),
	}

	handler := larkevent.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			f.handleEvent(event)
			return nil
		})
	f.ws = larkws.NewClient(appID, appSecret, larkws.WithEventHandler(handler))

	return f, nil
}

func (f *FeishuChannel) IsRunning() bool {
	return f.running.Load()
}

func (f *FeishuChannel) Start(ctx context.Context) error {
	f.running.Store(true)
	defer f.running.Store(false)
	return f.ws.Start(ctx)
}

func (f *FeishuChannel) Stop(ctx context.Context) error {
	return nil
}

func (f *FeishuChannel) handleEvent(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil || event.Event.Sender == nil {
		return
	}
	if event.Event.Sender.SenderType == nil || *event.Event.Sender.SenderType != "user" {
		return
	}

	msg := event.Event.Message
	var senderID string
	if event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
		senderID = *event.Event.Sender.SenderId.OpenId
	}
	var chatID, msgType, content string
	if msg.ChatId != nil {
		chatID = *msg.ChatId
	}
	if msg.MessageType != nil {
		msgType = *msg.MessageType
	}
	if msg.Content != nil {
		content = extractFeishuText(msgType, *msg.Content)
	}
	if senderID == "" || chatID == "" || content == "" {
		return
	}

	metadata := map[string]string{}
	if msg.MessageId != nil {
		metadata["message_id"] = *msg.MessageId
	}
	f.HandleMessage(senderID, senderID, chatID, content, nil, metadata)
}

func extractFeishuText(msgType, rawContent string) string {
	var content map[string]any
	if err := json.Unmarshal([]byte(rawContent), &content); err != nil {
		return rawContent
	}
	switch msgType {
	case "text":
		if t, ok := content["text"].(string); ok {
			return strings.TrimSpace(t)
		}
	case "post":
		var parts []string
		extractPostText(content, &parts)
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	return rawContent
}

func extractPostText(v any, parts *[]string) {
	switch val := v.(type) {
	case map[string]any:
		if tag, _ := val["tag"].(string); tag == "text" {
			if t, ok := val["text"].(string); ok {
				*parts = append(*parts, t)
			}
		}
		for _, child := range val {
			extractPostText(child, parts)
		}
	case []any:
		for _, item := range val {
			extractPostText(item, parts)
		}
	}
}

func (f *FeishuChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	idType := "chat_id"
	content, _ := json.Marshal(map[string]string{"text": msg.Content})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := f.client.Im.Message.Create(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu: send failed: %s", resp.Msg)
	}
	return nil
}
