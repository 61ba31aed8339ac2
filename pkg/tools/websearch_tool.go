package tools

import (
	"context"
	"fmt"

	"github.com/vikingbot/vikingbot/pkg/tools/websearch"
)

// WebSearchTool exposes the websearch registry's auto-selected (or
// explicitly named) backend as the web_search tool.
type WebSearchTool struct {
	registry     *websearch.Registry
	forcedName   string
	defaultCount int
}

// NewWebSearchTool builds a web_search tool. forcedName pins a single
// backend (brave/exa/ddgs); empty defers to Registry.SelectAuto.
func NewWebSearchTool(registry *websearch.Registry, forcedName string, defaultCount int) *WebSearchTool {
	if defaultCount <= 0 {
		defaultCount = 5
	}
	return &WebSearchTool{registry: registry, forcedName: forcedName, defaultCount: defaultCount}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for current information and return a list of relevant results with titles, URLs, and snippets."
}
func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "The search query"},
			"count": map[string]interface{}{"type": "integer", "description": "Number of results to return"},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	count := t.defaultCount
	if v, ok := args["count"].(float64); ok && v > 0 {
		count = int(v)
	}

	var backend websearch.Backend
	if t.forcedName != "" {
		backend = t.registry.Create(t.forcedName)
		if backend == nil {
			return ErrorResult(fmt.Sprintf("unknown web search backend: %s", t.forcedName))
		}
	} else {
		b, err := t.registry.SelectAuto()
		if err != nil {
			return ErrorResult(err.Error()).WithError(err)
		}
		backend = b
	}

	result, err := backend.Search(ctx, query, count)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err)).WithError(err)
	}
	return &ToolResult{ForLLM: result}
}
