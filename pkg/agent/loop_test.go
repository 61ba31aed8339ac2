package agent

import (
	"context"
	"testing"

	"github.com/vikingbot/vikingbot/pkg/bus"
	"github.com/vikingbot/vikingbot/pkg/config"
	"github.com/vikingbot/vikingbot/pkg/providers"
)

type stubProvider struct{ model string }

func (s *stubProvider) Chat(ctx context.Context, messages []providers.Message, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	return &providers.LLMResponse{Content: "stub response"}, nil
}

func (s *stubProvider) GetDefaultModel() string {
	return s.model
}

func newTestAgentLoop(t *testing.T) *AgentLoop {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return NewAgentLoop(cfg, bus.NewMessageBus(4), &stubProvider{model: "test-model"})
}

func TestStripThinkingTagsRemovesClosedBlock(t *testing.T) {
	got := stripThinkingTags("<think>reasoning here</think>the answer")
	if got != "the answer" {
		t.Fatalf("expected thinking block stripped, got %q", got)
	}
}

func TestStripThinkingTagsForStreamDropsUnclosedTrailingBlock(t *testing.T) {
	got := stripThinkingTagsForStream("visible text<think>still reasoning")
	if got != "visible text" {
		t.Fatalf("expected unclosed trailing think block dropped, got %q", got)
	}
}

func TestStripThinkingTagsForStreamKeepsClosedBlockContentAfter(t *testing.T) {
	got := stripThinkingTagsForStream("<think>reasoning</think>answer so far")
	if got != "answer so far" {
		t.Fatalf("expected closed block stripped and trailing text kept, got %q", got)
	}
}

func TestWebSearchDefaultCountPrefersBraveWhenSet(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Web.Brave.MaxResults = 7
	cfg.Tools.Web.DuckDuckGo.MaxResults = 3
	if got := webSearchDefaultCount(cfg); got != 7 {
		t.Fatalf("expected brave's count to win, got %d", got)
	}
}

func TestWebSearchDefaultCountFallsBackToDuckDuckGo(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Web.Brave.MaxResults = 0
	cfg.Tools.Web.DuckDuckGo.MaxResults = 4
	if got := webSearchDefaultCount(cfg); got != 4 {
		t.Fatalf("expected duckduckgo fallback, got %d", got)
	}
}

func TestHandleModelCommandShowsCurrentModel(t *testing.T) {
	al := newTestAgentLoop(t)
	resp, handled := al.handleModelCommand("/model")
	if !handled {
		t.Fatal("expected /model to be handled")
	}
	if resp == "" {
		t.Fatal("expected a non-empty response showing the current model")
	}
}

func TestHandleModelCommandSwitchesModel(t *testing.T) {
	al := newTestAgentLoop(t)
	_, handled := al.handleModelCommand("/model gpt-5")
	if !handled {
		t.Fatal("expected /model <name> to be handled")
	}
	if al.GetModel() != "gpt-5" {
		t.Fatalf("expected model switched to gpt-5, got %q", al.GetModel())
	}
}

func TestHandleModelCommandIgnoresOtherContent(t *testing.T) {
	al := newTestAgentLoop(t)
	_, handled := al.handleModelCommand("hello there")
	if handled {
		t.Fatal("expected ordinary content to be left unhandled")
	}
}

func TestHandleLinkCommandRequiresThread(t *testing.T) {
	al := newTestAgentLoop(t)
	msg := bus.InboundMessage{Content: "/link researcher", ChatID: "chat1"}
	resp, handled := al.handleLinkCommand(msg)
	if !handled {
		t.Fatal("expected /link to be handled even without a thread")
	}
	if resp == "" {
		t.Fatal("expected an explanatory response when used outside a forum topic")
	}
}

func TestHandleLinkCommandShowsUnlinkedByDefault(t *testing.T) {
	al := newTestAgentLoop(t)
	msg := bus.InboundMessage{
		Content:  "/link",
		ChatID:   "chat1",
		Metadata: map[string]string{"thread_id": "42"},
	}
	resp, handled := al.handleLinkCommand(msg)
	if !handled {
		t.Fatal("expected /link to be handled")
	}
	if resp != "This topic is not linked to any specialist." {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestCleanupSandboxesNoopWhenSandboxingDisabled(t *testing.T) {
	al := newTestAgentLoop(t)
	if err := al.CleanupSandboxes(context.Background()); err != nil {
		t.Fatalf("expected no error when sandboxing is disabled, got %v", err)
	}
}

func TestProcessDirectReturnsProviderResponse(t *testing.T) {
	al := newTestAgentLoop(t)
	resp, err := al.ProcessDirect(context.Background(), "hello", "cli:test")
	if err != nil {
		t.Fatalf("ProcessDirect: %v", err)
	}
	if resp != "stub response" {
		t.Fatalf("expected the stub provider's response, got %q", resp)
	}
}
