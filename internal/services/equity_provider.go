package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"creditpulse/internal/merton"
)

// EquityDataProvider assembles solver inputs for a ticker symbol from
// an external market data source.
type EquityDataProvider interface {
	Financials(ctx context.Context, ticker string) (merton.FirmFinancials, error)
}

// firmSnapshot is the wire format of the fundamentals endpoint.
type firmSnapshot struct {
	Ticker        string  `json:"ticker"`
	MarketCap     float64 `json:"market_cap"`
	TotalDebt     float64 `json:"total_debt"`
	EquityVol     float64 `json:"equity_vol"`
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DebtHorizonYr float64 `json:"debt_horizon_years"`
}

// EquityClient fetches firm fundamentals over HTTP. Requests are
// throttled client-side to stay inside the provider's published rate
// limits.
type EquityClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEquityClient creates a new equity data client
func NewEquityClient(baseURL string, timeout time.Duration, rps float64, burst int, logger *slog.Logger) *EquityClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &EquityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Financials fetches the fundamentals snapshot for one ticker and maps
// it onto solver inputs. Failures are wrapped in DataUnavailableError
// so the transport layer can map them to an upstream error response.
func (c *EquityClient) Financials(ctx context.Context, ticker string) (merton.FirmFinancials, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: err}
	}

	endpoint := fmt.Sprintf("%s/v1/financials/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: ErrTickerNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return merton.FirmFinancials{}, &DataUnavailableError{
			Ticker: ticker,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var snap firmSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.DebugContext(ctx, "fetched firm fundamentals",
		slog.String("ticker", ticker),
		slog.Duration("duration", time.Since(start)),
	)

	horizon := snap.DebtHorizonYr
	if horizon <= 0 {
		horizon = 1.0
	}
	return merton.FirmFinancials{
		Ticker:    ticker,
		Equity:    snap.MarketCap,
		Debt:      snap.TotalDebt,
		EquityVol: snap.EquityVol,
		RiskFree:  snap.RiskFreeRate,
		Horizon:   horizon,
	}, nil
}
