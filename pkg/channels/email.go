package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

const defaultEmailPollSeconds = 60

// EmailChannel polls one mailbox for unread messages via the same
// IMAP/SMTP helper script pkg/email's monitor shells out to, treating each
// sender address as a chat ID. Each unread message becomes one inbound
// message; Send relays a reply through the script's "send" subcommand.
type EmailChannel struct {
	Base
	address      string
	scriptPath   string
	pollInterval time.Duration
	running      atomic.Bool
}

type emailUnreadEntry struct {
	UID     string `json:"uid"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// NewEmailChannel builds an email adapter from cc.Extra["address"].
// cc.Extra["poll_seconds"] overrides the default 60s poll interval.
func NewEmailChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*EmailChannel, error) {
	address := cc.Extra["address"]
	if address == "" {
		return nil, fmt.Errorf("email: address not configured")
	}
	interval := defaultEmailPollSeconds
	if raw := cc.Extra["poll_seconds"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = n
		}
	}

	scriptPath := "/usr/local/lib/vikingbot/scripts/email_dashboard.py"
	candidates := []string{scriptPath, "scripts/email_dashboard.py"}
	for _, p := range candidates {
		if _, err := exec.LookPath(p); err == nil {
			scriptPath = p
			break
		}
	}

	return &EmailChannel{
		Base:         NewBase(name, b, cc.AllowFrom),
		address:      address,
		scriptPath:   scriptPath,
		pollInterval: time.Duration(interval) * time.Second,
	}, nil
}

func (e *EmailChannel) IsRunning() bool {
	return e.running.Load()
}

func (e *EmailChannel) Start(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	e.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *EmailChannel) Stop(ctx context.Context) error {
	return nil
}

func (e *EmailChannel) poll(ctx context.Context) {
	out, err := e.runScript(ctx, "unread")
	if err != nil {
		logger.WarnCF("channels", "email poll failed", map[string]interface{}{"channel": e.Name(), "error": err.Error()})
		return
	}
	var unread []emailUnreadEntry
	if err := json.Unmarshal([]byte(out), &unread); err != nil {
		return
	}
	for _, entry := range unread {
		body, _ := e.runScript(ctx, "read", entry.UID)
		content := strings.TrimSpace(fmt.Sprintf("%s\n\n%s", entry.Subject, extractEmailBody(body)))
		e.HandleMessage(entry.From, entry.From, entry.From, content, nil, map[string]string{"uid": entry.UID})
		_, _ = e.runScript(ctx, "mark-read", entry.UID)
	}
}

func extractEmailBody(raw string) string {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return raw
	}
	if text, ok := body["text"].(string); ok && text != "" {
		return text
	}
	if html, ok := body["html"].(string); ok && html != "" {
		return html
	}
	return ""
}

func (e *EmailChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := e.runScript(ctx, "send", msg.ChatID, msg.Content)
	return err
}

func (e *EmailChannel) runScript(ctx context.Context, cmdArgs ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{e.scriptPath, "--email", e.address, "--format", "json"}
	args = append(args, cmdArgs...)

	cmd := exec.CommandContext(ctx, "python3", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
