// Package websearch implements the pluggable web_search tool backends:
// Exa, Brave, and a key-free DuckDuckGo HTML scrape, auto-selected by
// priority when no explicit backend is configured.
package websearch

import "context"

// Backend is one web search provider.
type Backend interface {
	Name() string
	IsAvailable() bool
	Search(ctx context.Context, query string, count int) (string, error)
}
