package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/pkg/logger"
)

const snippetClass = "result__snippet"

// ReviewProvider searches DuckDuckGo restricted to a trusted review site
type ReviewProvider struct {
	baseURL string
	site    string
	timeout int
	client  *http.Client
}

// NewReviewProvider creates a new DuckDuckGo review provider
func NewReviewProvider(cfg *config.ReviewsConfig) *ReviewProvider {
	p := &ReviewProvider{
		baseURL: cfg.BaseURL,
		site:    cfg.Site,
		timeout: cfg.Timeout,
	}
	if p.baseURL == "" {
		p.baseURL = "https://html.duckduckgo.com/html/"
	}
	if p.site == "" {
		p.site = "webmd.com"
	}
	if p.timeout == 0 {
		p.timeout = 30
	}
	p.client = &http.Client{
		Timeout: time.Duration(p.timeout) * time.Second,
	}
	return p
}

// Query builds the site-scoped search text for a supplement
func (p *ReviewProvider) Query(supplement string) string {
	return fmt.Sprintf("%s reviews site:%s", supplement, p.site)
}

// SearchReviews returns the result snippets joined by spaces
func (p *ReviewProvider) SearchReviews(ctx context.Context, supplement string) (string, bool, error) {
	query := p.Query(supplement)
	log := logger.FromContext(ctx).With(zap.String("query", query))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+url.Values{"q": {query}}.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	// The HTML endpoint rejects requests without a browser-like agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; supplementbot/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", false, fmt.Errorf("review search failed: status %d", resp.StatusCode)
	}

	snippets, err := extractSnippets(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}

	log.Info("review search completed", zap.Int("snippet_count", len(snippets)))

	if len(snippets) == 0 {
		return "", false, nil
	}
	return strings.Join(snippets, " "), true, nil
}

// extractSnippets collects the text of every result snippet element
func extractSnippets(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var snippets []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, snippetClass) {
			if text := strings.Join(strings.Fields(textContent(n)), " "); text != "" {
				snippets = append(snippets, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return snippets, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
