// Package channels adapts chat platforms to the message bus. Each adapter
// implements Channel and embeds Base for the allowlist check and inbound
// publish every adapter needs; platform-specific wire protocols live in
// their own file.
package channels

import (
	"context"
	"strings"
	"time"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/logger"
	"github.com/vikingbot/vikingbot/pkg/media"
)

// Channel is the contract the manager drives every adapter through.
type Channel interface {
	// Name returns the adapter's unique identity, "{type}:{id}".
	Name() string
	// Start runs the adapter's receive loop until ctx is cancelled or the
	// adapter fails unrecoverably.
	Start(ctx context.Context) error
	// Stop shuts the adapter down, releasing any held connection.
	Stop(ctx context.Context) error
	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error
	// IsRunning reports whether Start's receive loop is currently active.
	IsRunning() bool
}

// Base holds what every adapter needs to check access and publish inbound
// messages: its advertised name, the shared bus, and its allowlist.
type Base struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
}

// NewBase builds a Base advertising name, publishing through b, and
// restricted to allowFrom (empty means allow all senders).
func NewBase(name string, b *bus.MessageBus, allowFrom []string) Base {
	return Base{name: name, bus: b, allowFrom: allowFrom}
}

// Name returns the adapter's advertised "{type}:{id}" identity.
func (b *Base) Name() string {
	return b.name
}

// IsAllowed reports whether senderID may reach the agent. An empty
// allowlist allows everyone. Telegram sends composite "id|username"
// sender IDs; either half matching an allowlist entry is a match.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	parts := strings.Split(senderID, "|")
	for _, allowed := range b.allowFrom {
		for _, part := range parts {
			if part == allowed {
				return true
			}
		}
	}
	return false
}

// HandleMessage checks the allowlist and, if the sender passes, publishes
// an InboundMessage onto the bus. Denied senders are logged and dropped.
func (b *Base) HandleMessage(senderID, senderName, chatID, content string, attachments []bus.Attachment, metadata map[string]string) {
	if !b.IsAllowed(senderID) {
		logger.WarnCF("channels", "access denied", map[string]interface{}{
			"channel": b.name,
			"sender":  senderID,
		})
		return
	}
	var parts []media.ContentPart
	for _, att := range attachments {
		part, err := media.ProcessFile(att.Path)
		if err != nil {
			logger.WarnCF("channels", "attachment processing failed", map[string]interface{}{
				"channel": b.name, "path": att.Path, "error": err.Error(),
			})
			continue
		}
		parts = append(parts, *part)
	}

	msg := bus.InboundMessage{
		Channel:     b.name,
		SenderID:    senderID,
		SenderName:  senderName,
		ChatID:      chatID,
		Content:     content,
		Attachments: attachments,
		Media:       parts,
		ReceivedAt:  time.Now(),
		Metadata:    metadata,
		SessionKey:  bus.DeriveSessionKey(b.name, chatID),
	}
	if err := b.bus.PublishInbound(msg); err != nil {
		logger.ErrorCF("channels", "publish inbound failed", map[string]interface{}{
			"channel": b.name,
			"error":   err.Error(),
		})
	}
}

// splitMessage breaks content into chunks no longer than maxLen runes,
// preferring to cut at the last newline, then the last space, within the
// window, and falling back to a hard cut when neither is available.
func splitMessage(content string, maxLen int) []string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return []string{content}
	}

	var chunks []string
	for len(runes) > maxLen {
		window := runes[:maxLen]
		cut := lastIndexRune(window, '\n')
		if cut <= 0 {
			cut = lastIndexRune(window, ' ')
		}
		if cut <= 0 {
			cut = maxLen
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func lastIndexRune(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
