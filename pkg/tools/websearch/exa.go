package websearch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ExaBackend queries the Exa AI search API.
type ExaBackend struct {
	apiKey string
	client *resty.Client
}

// NewExaBackend builds an Exa backend; an empty apiKey falls back to the
// EXA_API_KEY environment variable.
func NewExaBackend(apiKey string) *ExaBackend {
	if apiKey == "" {
		apiKey = os.Getenv("EXA_API_KEY")
	}
	return &ExaBackend{apiKey: apiKey, client: resty.New().SetTimeout(25e9)}
}

func (b *ExaBackend) Name() string       { return "exa" }
func (b *ExaBackend) IsAvailable() bool { return b.apiKey != "" }

type exaSearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

type exaSearchResponse struct {
	Results []exaSearchResult `json:"results"`
}

func (b *ExaBackend) Search(ctx context.Context, query string, count int) (string, error) {
	if b.apiKey == "" {
		return "Error: EXA_API_KEY not configured", nil
	}

	n := clamp(count, 1, 20)
	var result exaSearchResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetHeader("content-type", "application/json").
		SetHeader("x-api-key", b.apiKey).
		SetBody(map[string]interface{}{
			"query":      query,
			"type":       "auto",
			"numResults": n,
			"contents": map[string]interface{}{
				"text":      true,
				"livecrawl": "fallback",
			},
		}).
		SetResult(&result).
		Post("https://api.exa.ai/search")
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if resp.IsError() {
		return fmt.Sprintf("Error: exa returned status %d", resp.StatusCode()), nil
	}

	if len(result.Results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Results for: %s\n", query))
	for i, item := range result.Results {
		if i >= n {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s", i+1, item.Title, item.URL))
		if item.Text != "" {
			text := item.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			lines = append(lines, "   "+text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
