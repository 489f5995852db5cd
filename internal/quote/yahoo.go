package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

// quoteFields is the field list requested on every quote lookup.
const quoteFields = "regularMarketPrice,regularMarketChangePercent,longName," +
	"regularMarketPreviousClose,quoteType,averageDailyVolume10Day"

// YahooClient implements Provider against a Yahoo-style finance API
// (v7 quote, v8 chart, v1 search).
type YahooClient struct {
	baseURL string
	client  *http.Client
}

// NewYahooClient creates a client for the given base URL
// (e.g. https://query1.finance.yahoo.com).
func NewYahooClient(baseURL string) *YahooClient {
	return &YahooClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Lookup fetches a live quote. The v7 endpoint answers with a result list:
// one element is the common case, but fuzzy symbol handling upstream can
// return several candidates, surfaced here as LookupPartial for the Oracle
// to scan.
func (c *YahooClient) Lookup(ctx context.Context, symbol string) Lookup {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s&fields=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(quoteFields))

	var payload struct {
		QuoteResponse struct {
			Result []model.Quote `json:"result"`
			Error  *apiError     `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return Lookup{Kind: LookupFailed, Err: err}
	}
	if payload.QuoteResponse.Error != nil {
		return Lookup{Kind: LookupFailed, Err: payload.QuoteResponse.Error}
	}

	results := payload.QuoteResponse.Result
	if len(results) == 1 {
		return Lookup{Kind: LookupSingle, Quote: results[0]}
	}
	return Lookup{Kind: LookupPartial, Candidates: results}
}

// Search returns candidate quotes for a free-text query.
func (c *YahooClient) Search(ctx context.Context, query string) ([]model.Quote, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&newsCount=0&enableFuzzyQuery=true",
		c.baseURL, url.QueryEscape(query))

	var payload struct {
		Quotes []model.Quote `json:"quotes"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", ErrProvider, query, err)
	}
	return payload.Quotes, nil
}

// chartParams maps a user-facing period to the provider's range/interval
// pair. Short periods use intraday samples, long periods daily closes.
func chartParams(period string) (rng, interval string, short bool) {
	switch period {
	case "1d":
		return "1d", "15m", true
	case "5d":
		return "5d", "15m", true
	case "1m":
		return "1mo", "15m", true
	case "6m":
		return "6mo", "1d", false
	case "YTD":
		return "ytd", "1d", false
	case "1y":
		return "1y", "1d", false
	case "all":
		return "max", "1d", false
	default:
		return "1d", "15m", true
	}
}

// Historical returns the close-price series for a period. An empty intraday
// series (thinly covered instruments) falls back to the six-month daily one,
// mirroring the behavior users of the original service relied on.
func (c *YahooClient) Historical(ctx context.Context, symbol, period string) ([]PricePoint, error) {
	rng, interval, short := chartParams(period)

	points, err := c.chart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 && short {
		return c.chart(ctx, symbol, "6mo", "1d")
	}
	return points, nil
}

func (c *YahooClient) chart(ctx context.Context, symbol, rng, interval string) ([]PricePoint, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), rng, interval)

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *apiError `json:"error"`
		} `json:"chart"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("%w: historical %s: %v", ErrProvider, symbol, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%w: historical %s: %v", ErrProvider, symbol, payload.Chart.Error)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // market gaps report null closes
		}
		points = append(points, PricePoint{
			Timestamp: ts * 1000,
			Close:     decimal.NewFromFloat(*closes[i]),
		})
	}
	return points, nil
}

func (c *YahooClient) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
