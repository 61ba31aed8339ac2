package channels

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tencent-connect/botgo"
	"github.com/tencent-connect/botgo/dto"
	"github.com/tencent-connect/botgo/event"
	"github.com/tencent-connect/botgo/openapi"
	"github.com/tencent-connect/botgo/token"
	"github.com/tencent-connect/botgo/websocket"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
)

// QQChannel adapts QQ channel-bot "at message" events, delivered over the
// platform's websocket gateway, to the message bus.
type QQChannel struct {
	Base
	api     openapi.OpenAPI
	tk      *token.Token
	running atomic.Bool
}

// NewQQChannel builds a QQ adapter from cc.Extra["app_id"] and
// cc.Extra["token"].
func NewQQChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*QQChannel, error) {
	appID, accessToken := cc.Extra["app_id"], cc.Extra["token"]
	if appID == "" || accessToken == "" {
		return nil, fmt.Errorf("qq: app_id/token not configured")
	}
	tk := token.New(token.TypeBot, appID, accessToken)
	api := botgo.NewOpenAPI(tk).WithTimeout(5 * time.Second)

	return &QQChannel{
		Base: NewBase(name, b, cc.AllowFrom),
		api:  api,
		tk:   tk,
	}, nil
}

func (q *QQChannel) IsRunning() bool {
	return q.running.Load()
}

func (q *QQChannel) Start(ctx context.Context) error {
	wsInfo, err := q.api.WS(ctx, nil, "")
	if err != nil {
		return fmt.Errorf("qq: %w", err)
	}

	intent := websocket.RegisterHandlers(event.ATMessageEventHandler(q.handleAtMessage))

	q.running.Store(true)
	defer q.running.Store(false)

	if err := botgo.NewSessionManager().Start(wsInfo, q.tk, &intent); err != nil {
		return fmt.Errorf("qq: %w", err)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (q *QQChannel) Stop(ctx context.Context) error {
	return nil
}

func (q *QQChannel) handleAtMessage(payload *dto.WSPayload, data *dto.WSATMessageData) error {
	if data.Author == nil || data.Content == "" {
		return nil
	}
	q.HandleMessage(data.Author.ID, data.Author.Username, data.ChannelID, data.Content, nil, map[string]string{
		"message_id": data.ID,
		"guild_id":   data.GuildID,
	})
	return nil
}

func (q *QQChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := q.api.PostMessage(ctx, msg.ChatID, &dto.MessageToCreate{
		Content: msg.Content,
		MsgID:   msg.ReplyToID,
	})
	return err
}
