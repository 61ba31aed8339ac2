package providers

import (
	"context"
	"errors"
	"testing"
)

type recordingProvider struct {
	model string
	err   error
	calls []string
}

func (r *recordingProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	r.calls = append(r.calls, model)
	if r.err != nil {
		return nil, r.err
	}
	return &LLMResponse{Content: "response from " + model}, nil
}

func (r *recordingProvider) GetDefaultModel() string {
	return r.model
}

type streamingRecordingProvider struct {
	recordingProvider
	streamCalls []string
}

func (r *streamingRecordingProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, onContent StreamCallback) (*LLMResponse, error) {
	r.streamCalls = append(r.streamCalls, model)
	if onContent != nil {
		onContent("delta")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &LLMResponse{Content: "stream from " + model}, nil
}

func TestFallbackProviderUsesPrimaryOnSuccess(t *testing.T) {
	primary := &recordingProvider{model: "primary-model"}
	fallback := &recordingProvider{model: "fallback-model"}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	resp, err := fp.Chat(context.Background(), nil, nil, "primary-model", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "response from primary-model" {
		t.Fatalf("expected primary's response, got %q", resp.Content)
	}
	if len(fallback.calls) != 0 {
		t.Fatalf("expected fallback untouched, got %d calls", len(fallback.calls))
	}
}

func TestFallbackProviderRetriesFallbackOnPrimaryError(t *testing.T) {
	primary := &recordingProvider{model: "primary-model", err: errors.New("primary down")}
	fallback := &recordingProvider{model: "fallback-model"}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	resp, err := fp.Chat(context.Background(), nil, nil, "primary-model", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "response from fallback-model" {
		t.Fatalf("expected fallback's response, got %q", resp.Content)
	}
	if len(fallback.calls) != 1 || fallback.calls[0] != "fallback-model" {
		t.Fatalf("expected fallback called with fallback-model, got %v", fallback.calls)
	}
}

func TestFallbackProviderReturnsCombinedErrorWhenBothFail(t *testing.T) {
	primary := &recordingProvider{model: "primary-model", err: errors.New("primary down")}
	fallback := &recordingProvider{model: "fallback-model", err: errors.New("fallback down too")}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	_, err := fp.Chat(context.Background(), nil, nil, "primary-model", nil)
	if err == nil {
		t.Fatal("expected an error when both primary and fallback fail")
	}
}

func TestFallbackProviderGetDefaultModelReturnsPrimaryModel(t *testing.T) {
	fp := NewFallbackProvider(&recordingProvider{}, &recordingProvider{}, "primary-model", "fallback-model")
	if fp.GetDefaultModel() != "primary-model" {
		t.Fatalf("expected primary model, got %q", fp.GetDefaultModel())
	}
}

func TestFallbackProviderAccessors(t *testing.T) {
	primary := &recordingProvider{model: "primary-model"}
	fallback := &recordingProvider{model: "fallback-model"}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	if fp.Primary() != primary {
		t.Fatal("expected Primary() to return the wrapped primary provider")
	}
	if fp.Fallback() != fallback {
		t.Fatal("expected Fallback() to return the wrapped fallback provider")
	}
	if fp.FallbackModel() != "fallback-model" {
		t.Fatalf("expected FallbackModel() = fallback-model, got %q", fp.FallbackModel())
	}
}

func TestFallbackProviderChatStreamUsesStreamingPrimaryWhenAvailable(t *testing.T) {
	primary := &streamingRecordingProvider{recordingProvider: recordingProvider{model: "primary-model"}}
	fallback := &recordingProvider{model: "fallback-model"}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	var deltas []string
	resp, err := fp.ChatStream(context.Background(), nil, nil, "primary-model", nil, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if resp.Content != "stream from primary-model" {
		t.Fatalf("expected streamed primary response, got %q", resp.Content)
	}
	if len(primary.streamCalls) != 1 {
		t.Fatalf("expected primary's ChatStream invoked once, got %d", len(primary.streamCalls))
	}
	if len(deltas) != 1 || deltas[0] != "delta" {
		t.Fatalf("expected stream callback invoked with delta, got %v", deltas)
	}
}

func TestFallbackProviderChatStreamFallsBackToPlainChatWhenPrimaryNotStreaming(t *testing.T) {
	primary := &recordingProvider{model: "primary-model", err: errors.New("primary down")}
	fallback := &recordingProvider{model: "fallback-model"}
	fp := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	resp, err := fp.ChatStream(context.Background(), nil, nil, "primary-model", nil, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if resp.Content != "response from fallback-model" {
		t.Fatalf("expected fallback's plain Chat response, got %q", resp.Content)
	}
}
