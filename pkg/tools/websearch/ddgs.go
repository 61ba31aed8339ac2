package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

// DDGSBackend scrapes DuckDuckGo's HTML-only search endpoint. It needs no
// API key, so SelectAuto always has it as a last resort.
type DDGSBackend struct {
	client *resty.Client
}

func NewDDGSBackend() *DDGSBackend {
	return &DDGSBackend{client: resty.New().SetTimeout(15e9)}
}

func (b *DDGSBackend) Name() string       { return "ddgs" }
func (b *DDGSBackend) IsAvailable() bool { return true }

type ddgsResult struct {
	Title string
	URL   string
	Body  string
}

func (b *DDGSBackend) Search(ctx context.Context, query string, count int) (string, error) {
	n := clamp(count, 1, 20)

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetFormData(map[string]string{"q": query}).
		Post("https://html.duckduckgo.com/html/")
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if resp.IsError() {
		return fmt.Sprintf("Error: ddgs returned status %d", resp.StatusCode()), nil
	}

	results, err := parseDDGSResults(resp.String())
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Results for: %s\n", query))
	for i, item := range results {
		if i >= n {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s", i+1, item.Title, item.URL))
		if item.Body != "" {
			lines = append(lines, "   "+item.Body)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// parseDDGSResults extracts result anchors and snippets from DuckDuckGo's
// HTML search result page: each result is a div.result__body containing an
// a.result__a (title + href) and a.result__snippet (body text).
func parseDDGSResults(body string) ([]ddgsResult, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var results []ddgsResult
	var currentTitle, currentURL, currentBody string
	flush := func() {
		if currentTitle != "" || currentURL != "" {
			results = append(results, ddgsResult{Title: currentTitle, URL: currentURL, Body: currentBody})
		}
		currentTitle, currentURL, currentBody = "", "", ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "div" && hasClass(n, "result__body"):
				flush()
			case n.Data == "a" && hasClass(n, "result__a"):
				currentTitle = textContent(n)
				currentURL = decodeDDGSRedirect(attrVal(n, "href"))
			case n.Data == "a" && hasClass(n, "result__snippet"):
				currentBody = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return results, nil
}

// decodeDDGSRedirect unwraps DuckDuckGo's "/l/?uddg=<encoded>" redirect
// links into the real target URL.
func decodeDDGSRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
