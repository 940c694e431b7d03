package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// maxShoppingResults caps the records handed back to the assistant
const maxShoppingResults = 5

// ShoppingProvider queries SerpApi's shopping engine
type ShoppingProvider struct {
	apiKey  string
	baseURL string
	engine  string
	num     int
	timeout int
	client  *http.Client
}

// NewShoppingProvider creates a new SerpApi shopping provider
func NewShoppingProvider(cfg *config.ShoppingConfig) *ShoppingProvider {
	p := &ShoppingProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		engine:  cfg.Engine,
		num:     cfg.Num,
		timeout: cfg.Timeout,
	}
	if p.baseURL == "" {
		p.baseURL = "https://serpapi.com"
	}
	if p.engine == "" {
		p.engine = "google_shopping"
	}
	if p.num <= 0 || p.num > maxShoppingResults {
		p.num = maxShoppingResults
	}
	if p.timeout == 0 {
		p.timeout = 30
	}
	p.client = &http.Client{
		Timeout: time.Duration(p.timeout) * time.Second,
	}
	return p
}

// FetchSupplementInfo searches for products matching query
func (p *ShoppingProvider) FetchSupplementInfo(ctx context.Context, query string) SupplementLookup {
	log := logger.FromContext(ctx).With(zap.String("query", query))

	body, err := p.search(ctx, query)
	if err != nil {
		log.Warn("shopping search failed", zap.Error(err))
		return LookupMessage(fmt.Sprintf("An error occurred: %v", err))
	}

	records := parseShoppingResults(body, maxShoppingResults)
	log.Info("shopping search completed", zap.Int("result_count", len(records)))

	if len(records) == 0 {
		return LookupMessage(NoResultsMessage)
	}
	return SupplementLookup{Records: records}
}

func (p *ShoppingProvider) search(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("engine", p.engine)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(p.num))
	params.Set("api_key", p.apiKey)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logger.Debug("serpapi response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%d %s for url: %s/search", resp.StatusCode, msg, p.baseURL)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON in provider response")
	}

	return body, nil
}

// parseShoppingResults projects shopping_results onto SupplementRecord
func parseShoppingResults(body []byte, limit int) []models.SupplementRecord {
	results := gjson.GetBytes(body, "shopping_results").Array()
	if len(results) > limit {
		results = results[:limit]
	}

	records := make([]models.SupplementRecord, 0, len(results))
	for _, r := range results {
		rec := models.SupplementRecord{
			Name:  r.Get("title").String(),
			Link:  r.Get("link").String(),
			Image: r.Get("thumbnail").String(),
		}
		if rec.Link == "" {
			rec.Link = r.Get("product_link").String()
		}
		if price := r.Get("extracted_price"); price.Type == gjson.Number {
			v := price.Float()
			rec.Price = &v
		}
		records = append(records, rec)
	}
	return records
}
