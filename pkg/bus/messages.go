package bus

import (
	"time"

	"github.com/vikingbot/vikingbot/pkg/media"
)

// InboundMessage is a single chat message arriving from any channel,
// normalized to a channel-agnostic shape before it reaches the agent loop.
//
// SessionKey is normally DeriveSessionKey(Channel, ChatID), but a cron-
// injected message sets it to the job's target session directly: Channel
// is "cron:{job_id}" (for provenance/logging) while SessionKey names the
// real session the prompt should be replayed into, so a reply still goes
// out over the original channel rather than back into "cron:{job_id}".
type InboundMessage struct {
	Channel     string            `json:"channel"`
	SenderID    string            `json:"sender_id"`
	SenderName  string            `json:"sender_name"`
	ChatID      string            `json:"chat_id"`
	Content     string            `json:"content"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Media       []media.ContentPart `json:"-"`
	ReceivedAt  time.Time         `json:"received_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SessionKey  string            `json:"session_key"`
}

// DeriveSessionKey builds the default "{channel}:{chat_id}" session key a
// channel adapter's inbound message maps to.
func DeriveSessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}

// OutboundMessage is a reply destined for a channel adapter to deliver.
type OutboundMessage struct {
	Channel   string            `json:"channel"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	ReplyToID string            `json:"reply_to_id,omitempty"`
	Streaming bool              `json:"streaming,omitempty"`
	Final     bool              `json:"final"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Attachment describes a file attached to an inbound message; only a
// filesystem path is carried, matching the workspace-materialized-media
// convention described for image and file tools.
type Attachment struct {
	Kind string `json:"kind"` // "image", "file", "audio"
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}
