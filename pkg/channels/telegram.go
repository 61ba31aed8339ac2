package channels

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/logger"
)

const telegramMaxMessageLen = 4000

// TelegramChannel adapts Telegram bot updates to the message bus via
// long polling.
type TelegramChannel struct {
	Base
	bot     *telego.Bot
	cfg     config.ChannelConfig
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTelegramChannel builds a Telegram adapter from cc.Extra["token"].
func NewTelegramChannel(name string, cc config.ChannelConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	token := cc.Extra["token"]
	if token == "" {
		return nil, fmt.Errorf("telegram: token not configured")
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramChannel{
		Base: NewBase(name, b, cc.AllowFrom),
		bot:  bot,
		cfg:  cc,
		done: make(chan struct{}),
	}, nil
}

// Bot exposes the underlying client so manage_telegram can be wired up
// once the channel manager has constructed this adapter.
func (t *TelegramChannel) Bot() *telego.Bot {
	return t.bot
}

func (t *TelegramChannel) IsRunning() bool {
	return t.running.Load()
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	defer close(t.done)

	updates, err := t.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	t.running.Store(true)
	defer t.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (t *TelegramChannel) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	select {
	case <-t.done:
	case <-ctx.Done():
	}
	return nil
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil {
		return
	}
	senderID := fmt.Sprintf("%d", msg.From.ID)
	if msg.From.Username != "" {
		senderID = senderID + "|" + msg.From.Username
	}
	chatID := fmt.Sprintf("%d", msg.Chat.ID)

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}

	var attachments []bus.Attachment
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		if path, err := t.downloadFile(ctx, largest.FileID); err == nil {
			attachments = append(attachments, bus.Attachment{Kind: "image", Path: path})
		}
	}
	if msg.Document != nil {
		if path, err := t.downloadFile(ctx, msg.Document.FileID); err == nil {
			attachments = append(attachments, bus.Attachment{Kind: "file", Path: path, Name: msg.Document.FileName})
		}
	}

	if content == "" && len(attachments) == 0 {
		return
	}

	metadata := map[string]string{"message_id": fmt.Sprintf("%d", msg.MessageID)}
	if msg.MessageThreadID != 0 {
		metadata["thread_id"] = fmt.Sprintf("%d", msg.MessageThreadID)
	}

	t.HandleMessage(senderID, msg.From.FirstName, chatID, content, attachments, metadata)
}

func (t *TelegramChannel) downloadFile(ctx context.Context, fileID string) (string, error) {
	file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", err
	}
	return t.bot.FileDownloadURL(file.FilePath), nil
}

func (t *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID := tu.ID(mustParseChatID(msg.ChatID))
	threadID := 0
	if tid, ok := msg.Metadata["thread_id"]; ok {
		fmt.Sscanf(tid, "%d", &threadID)
	}

	for _, chunk := range splitMessage(msg.Content, telegramMaxMessageLen) {
		params := &telego.SendMessageParams{
			ChatID:          chatID,
			Text:            markdownToTelegramHTML(chunk),
			ParseMode:       telego.ModeHTML,
			MessageThreadID: threadID,
		}
		if _, err := t.bot.SendMessage(ctx, params); err != nil {
			// Fall back to plain text if HTML conversion produced something
			// Telegram rejects.
			plain := &telego.SendMessageParams{ChatID: chatID, Text: chunk, MessageThreadID: threadID}
			if _, err2 := t.bot.SendMessage(ctx, plain); err2 != nil {
				return err2
			}
		}
	}
	return nil
}

func mustParseChatID(s string) int64 {
	var id int64
	fmt.Sscanf(s, "%d", &id)
	return id
}

var (
	codeBlockRE  = regexp.MustCompile("(?s)```(?:\\w+\\n)?(.*?)```")
	inlineCodeRE = regexp.MustCompile("`([^`]+)`")
	headerRE     = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldRE       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	strikeRE     = regexp.MustCompile(`~~([^~]+)~~`)
	linkRE       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bulletRE     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// markdownToTelegramHTML converts the agent's markdown into Telegram's
// restricted HTML subset. Code spans are pulled out and HTML-escaped
// separately so earlier passes never reinterpret their contents.
func markdownToTelegramHTML(s string) string {
	var codeBlocks []string
	s = codeBlockRE.ReplaceAllStringFunc(s, func(m string) string {
		groups := codeBlockRE.FindStringSubmatch(m)
		codeBlocks = append(codeBlocks, html.EscapeString(groups[1]))
		return fmt.Sprintf("\x00CODEBLOCK%d\x00", len(codeBlocks)-1)
	})

	var inlineCode []string
	s = inlineCodeRE.ReplaceAllStringFunc(s, func(m string) string {
		groups := inlineCodeRE.FindStringSubmatch(m)
		inlineCode = append(inlineCode, html.EscapeString(groups[1]))
		return fmt.Sprintf("\x00INLINECODE%d\x00", len(inlineCode)-1)
	})

	s = headerRE.ReplaceAllString(s, "<b>$1</b>")
	s = html.EscapeString(s)
	s = linkRE.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = boldRE.ReplaceAllString(s, "<b>$1</b>")
	s = strikeRE.ReplaceAllString(s, "<s>$1</s>")
	s = bulletRE.ReplaceAllString(s, "• ")

	for i, code := range codeBlocks {
		s = strings.Replace(s, fmt.Sprintf("\x00CODEBLOCK%d\x00", i), fmt.Sprintf("<pre>%s</pre>", code), 1)
	}
	for i, code := range inlineCode {
		s = strings.Replace(s, fmt.Sprintf("\x00INLINECODE%d\x00", i), fmt.Sprintf("<code>%s</code>", code), 1)
	}
	return s
}
