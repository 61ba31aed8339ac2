package channels

import (
	"context"
	"testing"

	"github.com/vikingbot/vikingbot/pkg/bus"
)

func TestIsAllowedEmptyAllowlistAllowsEveryone(t *testing.T) {
	b := NewBase("telegram:main", bus.NewMessageBus(1), nil)
	if !b.IsAllowed("anyone") {
		t.Fatal("empty allowlist should allow every sender")
	}
}

func TestIsAllowedMatchesEitherHalfOfCompositeSenderID(t *testing.T) {
	b := NewBase("telegram:main", bus.NewMessageBus(1), []string{"alice"})
	if !b.IsAllowed("12345|alice") {
		t.Fatal("expected composite sender ID to match on username half")
	}
	if b.IsAllowed("99999|bob") {
		t.Fatal("expected sender with neither half allowlisted to be denied")
	}
}

func TestHandleMessagePublishesWithDerivedSessionKey(t *testing.T) {
	mb := bus.NewMessageBus(1)
	b := NewBase("slack:team", mb, nil)
	b.HandleMessage("u1", "Alice", "chat1", "hello", nil, nil)

	msg, err := mb.ConsumeInbound(context.Background())
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.Channel != "slack:team" || msg.ChatID != "chat1" || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.SessionKey != "slack:team:chat1" {
		t.Fatalf("expected derived session key, got %q", msg.SessionKey)
	}
}

func TestHandleMessageDropsDeniedSender(t *testing.T) {
	mb := bus.NewMessageBus(1)
	b := NewBase("slack:team", mb, []string{"alice"})
	b.HandleMessage("bob", "Bob", "chat1", "hi", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mb.ConsumeInbound(ctx); err == nil {
		t.Fatal("should not have published anything for denied sender")
	}
}

func TestHandleMessageSkipsUnprocessableAttachment(t *testing.T) {
	mb := bus.NewMessageBus(1)
	b := NewBase("telegram:main", mb, nil)
	b.HandleMessage("u1", "Alice", "chat1", "see attached", []bus.Attachment{
		{Kind: "file", Path: "/nonexistent/path/does-not-exist.txt"},
	}, nil)

	msg, err := mb.ConsumeInbound(context.Background())
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if len(msg.Media) != 0 {
		t.Fatalf("expected no processed media for a missing file, got %+v", msg.Media)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("expected the raw attachment to still be carried, got %+v", msg.Attachments)
	}
}

func TestSplitMessagePrefersNewlineThenSpaceThenHardCut(t *testing.T) {
	short := splitMessage("hello", 10)
	if len(short) != 1 || short[0] != "hello" {
		t.Fatalf("expected content under the limit to pass through unchanged, got %+v", short)
	}

	withNewline := splitMessage("first line\nsecond line", 11)
	if len(withNewline) < 2 || withNewline[0] != "first line" {
		t.Fatalf("expected a cut at the newline, got %+v", withNewline)
	}

	noBreaks := splitMessage("abcdefghijklmnop", 5)
	for _, chunk := range noBreaks {
		if len([]rune(chunk)) > 5 {
			t.Fatalf("chunk exceeds max length: %q", chunk)
		}
	}
}
