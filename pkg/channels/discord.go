package channels

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
)

const discordMaxMessageLen = 2000

// DiscordChannel adapts Discord gateway events to the message bus.
type DiscordChannel struct {
	Base
	session *discordgo.Session
	botID   string
	running atomic.Bool
}

// NewDiscordChannel builds a Discord adapter from cc.Extra["token"].
func NewDiscordChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*DiscordChannel, error) {
	token := cc.Extra["token"]
	if token == "" {
		return nil, fmt.Errorf("discord: token not configured")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	d := &DiscordChannel{
		Base:    NewBase(name, b, cc.AllowFrom),
		session: session,
	}
	session.AddHandler(d.handleMessage)
	return d, nil
}

func (d *DiscordChannel) IsRunning() bool {
	return d.running.Load()
}

func (d *DiscordChannel) Start(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord: open: %w", err)
	}
	if me, err := d.session.User("@me"); err == nil {
		d.botID = me.ID
	}
	d.running.Store(true)
	defer d.running.Store(false)

	<-ctx.Done()
	return ctx.Err()
}

func (d *DiscordChannel) Stop(ctx context.Context) error {
	return d.session.Close()
}

func (d *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.botID || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	var attachments []bus.Attachment
	for _, a := range m.Attachments {
		attachments = append(attachments, bus.Attachment{Kind: "file", Path: a.URL, Name: a.Filename})
	}
	if content == "" && len(attachments) == 0 {
		return
	}

	displayName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		displayName = m.Member.Nick
	}

	d.HandleMessage(m.Author.ID, displayName, m.ChannelID, content, attachments, map[string]string{
		"message_id": m.ID,
		"guild_id":   m.GuildID,
	})
}

func (d *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_ = d.session.ChannelTyping(msg.ChatID)
	for _, chunk := range splitMessage(msg.Content, discordMaxMessageLen) {
		if _, err := d.session.ChannelMessageSend(msg.ChatID, chunk, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}
