package websearch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
)

// BraveBackend queries the Brave Search API.
type BraveBackend struct {
	apiKey string
	client *resty.Client
}

// NewBraveBackend builds a Brave backend; an empty apiKey falls back to the
// BRAVE_API_KEY environment variable.
func NewBraveBackend(apiKey string) *BraveBackend {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	return &BraveBackend{apiKey: apiKey, client: resty.New().SetTimeout(10e9)}
}

func (b *BraveBackend) Name() string       { return "brave" }
func (b *BraveBackend) IsAvailable() bool { return b.apiKey != "" }

type braveWebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveSearchResponse struct {
	Web struct {
		Results []braveWebResult `json:"results"`
	} `json:"web"`
}

func (b *BraveBackend) Search(ctx context.Context, query string, count int) (string, error) {
	if b.apiKey == "" {
		return "Error: BRAVE_API_KEY not configured", nil
	}

	n := clamp(count, 1, 10)
	var result braveSearchResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-Subscription-Token", b.apiKey).
		SetQueryParams(map[string]string{"q": query, "count": fmt.Sprint(n)}).
		SetResult(&result).
		Get("https://api.search.brave.com/res/v1/web/search")
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if resp.IsError() {
		return fmt.Sprintf("Error: brave returned status %d", resp.StatusCode()), nil
	}

	if len(result.Web.Results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Results for: %s\n", query))
	for i, item := range result.Web.Results {
		if i >= n {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s", i+1, item.Title, item.URL))
		if item.Description != "" {
			lines = append(lines, "   "+item.Description)
		}
	}
	return strings.Join(lines, "\n"), nil
}
