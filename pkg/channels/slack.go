package channels

import (
	"context"
	"fmt"
	"sync/atomic"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
)

// SlackChannel adapts Slack events, received over Socket Mode, to the
// message bus.
type SlackChannel struct {
	Base
	web       *slackgo.Client
	sm        *socketmode.Client
	botUserID string
	running   atomic.Bool
	done      chan struct{}
}

// NewSlackChannel builds a Slack adapter from cc.Extra["bot_token"] and
// cc.Extra["app_token"].
func NewSlackChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*SlackChannel, error) {
	botToken := cc.Extra["bot_token"]
	appToken := cc.Extra["app_token"]
	if botToken == "" || appToken == "" {
		return nil, fmt.Errorf("slack: bot_token/app_token not configured")
	}
	web := slackgo.New(botToken, slackgo.OptionAppLevelToken(appToken))
	return &SlackChannel{
		Base: NewBase(name, b, cc.AllowFrom),
		web:  web,
		sm:   socketmode.New(web),
		done: make(chan struct{}),
	}, nil
}

func (s *SlackChannel) IsRunning() bool {
	return s.running.Load()
}

func (s *SlackChannel) Start(ctx context.Context) error {
	defer close(s.done)
	if resp, err := s.web.AuthTestContext(ctx); err == nil {
		s.botUserID = resp.UserID
	}

	go s.sm.RunContext(ctx) //nolint:errcheck

	s.running.Store(true)
	defer s.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.sm.Events:
			if !ok {
				return nil
			}
			s.handleEvent(evt)
		}
	}
}

func (s *SlackChannel) Stop(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

func (s *SlackChannel) handleEvent(evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	if evt.Request != nil {
		s.sm.Ack(*evt.Request)
	}
	cb, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	data, ok := cb.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if data.SubType != "" || data.User == "" || data.User == s.botUserID {
		return
	}

	s.HandleMessage(data.User, data.User, data.Channel, data.Text, nil, map[string]string{
		"thread_ts": data.ThreadTimeStamp,
	})
}

func (s *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	var options []slackgo.MsgOption
	options = append(options, slackgo.MsgOptionText(msg.Content, false))
	if ts := msg.Metadata["thread_ts"]; ts != "" {
		options = append(options, slackgo.MsgOptionTS(ts))
	}
	_, _, err := s.web.PostMessageContext(ctx, msg.ChatID, options...)
	return err
}
