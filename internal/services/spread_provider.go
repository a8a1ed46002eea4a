package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"creditpulse/internal/merton"
)

// MarketSpreadProvider resolves the observed market credit spread, in
// basis points, for a rating bucket.
type MarketSpreadProvider interface {
	SpreadBps(ctx context.Context, rating merton.Rating) (float64, error)
}

// fredResponse is the subset of the FRED observations payload we read.
type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// FREDClient resolves rating-bucket benchmark spreads from the ICE
// BofA option-adjusted spread indices published on FRED. Series values
// are quoted in percent and converted to basis points.
type FREDClient struct {
	baseURL string
	apiKey  string
	series  map[string]string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFREDClient creates a new FRED benchmark client
func NewFREDClient(baseURL, apiKey string, series map[string]string, timeout time.Duration, rps float64, burst int, logger *slog.Logger) *FREDClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FREDClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		series:  series,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// SpreadBps fetches the latest published observation for the rating's
// series. FRED publishes missing observations as "."; the most recent
// numeric value wins.
func (c *FREDClient) SpreadBps(ctx context.Context, rating merton.Rating) (float64, error) {
	series, ok := c.series[string(rating)]
	if !ok {
		return 0, &BenchmarkUnavailableError{
			Rating: rating,
			Cause:  fmt.Errorf("no series mapped for rating"),
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &BenchmarkUnavailableError{Rating: rating, Series: series, Cause: err}
	}

	q := url.Values{}
	q.Set("series_id", series)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", "10")
	endpoint := fmt.Sprintf("%s/series/observations?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, &BenchmarkUnavailableError{Rating: rating, Series: series, Cause: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &BenchmarkUnavailableError{Rating: rating, Series: series, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &BenchmarkUnavailableError{
			Rating: rating,
			Series: series,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload fredResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, &BenchmarkUnavailableError{Rating: rating, Series: series, Cause: fmt.Errorf("decode response: %w", err)}
	}

	for _, obs := range payload.Observations {
		if obs.Value == "." {
			continue
		}
		pct, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		spreadBps := pct * 100
		c.logger.DebugContext(ctx, "resolved benchmark spread",
			slog.String("rating", string(rating)),
			slog.String("series", series),
			slog.String("as_of", obs.Date),
			slog.Float64("spread_bps", spreadBps),
		)
		return spreadBps, nil
	}

	return 0, &BenchmarkUnavailableError{
		Rating: rating,
		Series: series,
		Cause:  fmt.Errorf("no numeric observations returned"),
	}
}
