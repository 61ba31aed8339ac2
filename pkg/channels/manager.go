package channels

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

// Manager constructs one adapter per enabled channel config entry, runs
// each concurrently, and dispatches outbound bus traffic to the matching
// adapter.
type Manager struct {
	bus      *bus.MessageBus
	channels map[string]Channel
	cancel   context.CancelFunc
}

// NewManager builds an adapter for every enabled entry in cfg, skipping and
// warning on any platform whose adapter could not be constructed (missing
// credentials, unknown type) rather than failing the whole manager.
func NewManager(cfg config.ChannelsConfig, b *bus.MessageBus) *Manager {
	m := &Manager{bus: b, channels: make(map[string]Channel)}
	for _, cc := range cfg.GetAllChannels() {
		if !cc.Enabled {
			continue
		}
		ch, err := newChannel(cc, b)
		if err != nil {
			logger.WarnCF("channels", "skipping channel", map[string]interface{}{
				"type": string(cc.Type), "id": cc.UniqueID, "error": err.Error(),
			})
			continue
		}
		m.channels[ch.Name()] = ch
	}
	return m
}

func newChannel(cc config.ChannelConfig, b *bus.MessageBus) (Channel, error) {
	name := fmt.Sprintf("%s:%s", cc.Type, cc.UniqueID)
	switch cc.Type {
	case config.ChannelTelegram:
		return NewTelegramChannel(name, cc, b)
	case config.ChannelDiscord:
		return NewDiscordChannel(name, cc, b)
	case config.ChannelSlack:
		return NewSlackChannel(name, cc, b)
	case config.ChannelFeishu:
		return NewFeishuChannel(name, cc, b)
	case config.ChannelDingTalk:
		return NewDingTalkChannel(name, cc, b)
	case config.ChannelQQ:
		return NewQQChannel(name, cc, b)
	case config.ChannelWhatsApp:
		return NewWhatsAppChannel(name, cc, b)
	case config.ChannelEmail:
		return NewEmailChannel(name, cc, b)
	case config.ChannelMochat:
		return NewMochatChannel(name, cc, b)
	default:
		return nil, fmt.Errorf("unknown channel type %q", cc.Type)
	}
}

// EnabledChannels returns the names of every constructed adapter.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// Get returns the named adapter, if constructed.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// Status reports each constructed channel's running state.
func (m *Manager) Status() map[string]bool {
	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}

// StartAll starts every constructed adapter plus the outbound dispatcher,
// each under its own errgroup goroutine. A single adapter failing logs and
// returns from its own goroutine without taking the others down; StartAll
// itself returns only once ctx is cancelled or the dispatcher's own loop
// exits.
func (m *Manager) StartAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)

	for name, ch := range m.channels {
		name, ch := name, ch
		g.Go(func() error {
			logger.InfoCF("channels", "starting channel", map[string]interface{}{"channel": name})
			if err := ch.Start(gctx); err != nil && gctx.Err() == nil {
				logger.ErrorCF("channels", "channel stopped", map[string]interface{}{
					"channel": name, "error": err.Error(),
				})
			}
			return nil
		})
	}

	g.Go(func() error {
		m.dispatchOutbound(gctx)
		return nil
	})

	return g.Wait()
}

// StopAll cancels every adapter's context and calls Stop on each, collecting
// but not short-circuiting on per-adapter errors.
func (m *Manager) StopAll(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	var firstErr error
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "stop failed", map[string]interface{}{
				"channel": name, "error": err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// dispatchOutbound drains the bus's outbound queue for as long as ctx is
// live, routing each message by its Channel field. An outbound message
// addressed to a channel nothing registered is dropped with a warning, not
// silently swallowed.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, err := m.bus.ConsumeOutbound(ctx)
		if err != nil {
			return
		}
		ch, ok := m.channels[msg.Channel]
		if !ok {
			logger.WarnCF("channels", "dropping outbound message, no such channel", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.WarnCF("channels", "send failed", map[string]interface{}{
				"channel": msg.Channel, "error": err.Error(),
			})
		}
	}
}
