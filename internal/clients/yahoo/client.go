// Package yahoo implements the price source against the Yahoo Finance v8 API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

// Client fetches quotes and historical closes from Yahoo Finance.
// The spark endpoint serves batch requests (one call for all symbols);
// the chart endpoint serves per-symbol retries and carries open prices,
// which spark does not.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return NewClientWithBaseURL("https://query1.finance.yahoo.com", log)
}

// NewClientWithBaseURL creates a client against a custom base URL (for testing).
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

var _ domain.PriceSource = (*Client)(nil)

// BatchLatest fetches quotes for all symbols in one spark request.
// A symbol with no usable closes is omitted from the result; with exactly
// one close the previous close equals the last price, yielding zero day P&L.
func (c *Client) BatchLatest(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	results, err := c.fetchSpark(ctx, symbols, "5d")
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.Quote, len(results))
	for symbol, result := range results {
		closes := validCloses(result.closes())
		switch {
		case len(closes) >= 2:
			quotes[symbol] = domain.Quote{Last: closes[len(closes)-1], PrevClose: closes[len(closes)-2]}
		case len(closes) == 1:
			quotes[symbol] = domain.Quote{Last: closes[0], PrevClose: closes[0]}
		default:
			c.log.Debug().Str("symbol", symbol).Msg("No usable closes in batch response")
		}
	}
	return quotes, nil
}

// Latest fetches a single symbol through the chart endpoint. When only one
// close is available, the previous close falls back to that day's open and,
// failing that, to the last price.
func (c *Client) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", c.baseURL, url.PathEscape(symbol))

	var payload chartResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return domain.Quote{}, err
	}
	if payload.Chart.Error != nil {
		return domain.Quote{}, fmt.Errorf("chart API error for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("chart API returned no result for %s", symbol)
	}

	result := payload.Chart.Result[0]
	closes := validCloses(result.closes())
	switch {
	case len(closes) >= 2:
		return domain.Quote{Last: closes[len(closes)-1], PrevClose: closes[len(closes)-2]}, nil
	case len(closes) == 1:
		prev := closes[0]
		if open := firstValidOpen(result); open > 0 {
			prev = open
		}
		return domain.Quote{Last: closes[0], PrevClose: prev}, nil
	}

	// Some instruments return meta prices without a close series.
	if result.Meta.RegularMarketPrice > 0 {
		prev := result.Meta.ChartPreviousClose
		if prev <= 0 {
			prev = result.Meta.RegularMarketPrice
		}
		return domain.Quote{Last: result.Meta.RegularMarketPrice, PrevClose: prev}, nil
	}

	return domain.Quote{}, fmt.Errorf("no usable price data for %s", symbol)
}

// Historical fetches daily close series for all symbols in one spark request.
// Null closes (non-trading or missing data) are skipped, so absence from a
// series marks a missing day rather than a zero price. The API only offers
// coarse ranges, so points older than the requested window are dropped here.
func (c *Client) Historical(ctx context.Context, symbols []string, days int) (map[string][]domain.PricePoint, error) {
	if len(symbols) == 0 {
		return map[string][]domain.PricePoint{}, nil
	}

	results, err := c.fetchSpark(ctx, symbols, rangeForDays(days))
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	series := make(map[string][]domain.PricePoint, len(results))
	for symbol, result := range results {
		closes := result.closes()
		points := make([]domain.PricePoint, 0, len(result.Timestamp))
		for i, ts := range result.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			date := time.Unix(ts, 0).UTC()
			if date.Before(cutoff) {
				continue
			}
			points = append(points, domain.PricePoint{
				Date:  date,
				Close: *closes[i],
			})
		}
		if len(points) > 0 {
			series[symbol] = points
		}
	}
	return series, nil
}

// fetchSpark performs one spark request and indexes the results by symbol.
func (c *Client) fetchSpark(ctx context.Context, symbols []string, dataRange string) (map[string]chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/spark?symbols=%s&range=%s&interval=1d",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")), dataRange)

	var payload sparkResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	results := make(map[string]chartResult, len(payload.Spark.Result))
	for _, entry := range payload.Spark.Result {
		if len(entry.Response) == 0 {
			continue
		}
		results[entry.Symbol] = entry.Response[0]
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	// Yahoo rejects requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; portfolio-dashboard/1.0)")

	c.log.Debug().Str("url", endpoint).Msg("Fetching")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// rangeForDays maps a lookback in days onto the coarse ranges the API accepts.
func rangeForDays(days int) string {
	if days <= 30 {
		return "1mo"
	}
	return "3mo"
}

func validCloses(closes []*float64) []float64 {
	out := make([]float64, 0, len(closes))
	for _, c := range closes {
		if c != nil && *c > 0 {
			out = append(out, *c)
		}
	}
	return out
}

func firstValidOpen(result chartResult) float64 {
	if len(result.Indicators.Quote) == 0 {
		return 0
	}
	for _, open := range result.Indicators.Quote[0].Open {
		if open != nil && *open > 0 {
			return *open
		}
	}
	return 0
}
