package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/domain"
)

// FeedSource pulls prices from an external HTTP price feed.
type FeedSource struct {
	client *resty.Client
	url    string
	log    zerolog.Logger
}

type feedResponse struct {
	Asset         string          `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	VolatilityBps int64           `json:"volatility_bps"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewFeedSource creates a feed source against the given endpoint URL.
func NewFeedSource(url string, log zerolog.Logger) *FeedSource {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &FeedSource{
		client: client,
		url:    url,
		log:    log.With().Str("service", "oracle_feed").Logger(),
	}
}

// Fetch pulls the latest sample for one asset. A missing timestamp in the
// feed payload is taken as "now".
func (f *FeedSource) Fetch(ctx context.Context, asset string) (Sample, error) {
	var payload feedResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", asset).
		SetResult(&payload).
		Get(f.url)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: feed request for %s: %v", domain.ErrNoPriceData, asset, err)
	}
	if resp.IsError() {
		return Sample{}, fmt.Errorf("%w: feed returned %d for %s", domain.ErrNoPriceData, resp.StatusCode(), asset)
	}
	if payload.Price.Sign() <= 0 {
		return Sample{}, fmt.Errorf("%w: feed returned non-positive price for %s", domain.ErrNoPriceData, asset)
	}

	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Sample{
		Asset:         asset,
		Price:         payload.Price,
		VolatilityBps: payload.VolatilityBps,
		Timestamp:     ts,
	}, nil
}

// ManualSource serves samples set by hand. Used when no feed URL is
// configured and throughout the test suite.
type ManualSource struct {
	mu      sync.RWMutex
	samples map[string]Sample
}

// NewManualSource creates an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{samples: make(map[string]Sample)}
}

// Set stores a sample for the asset.
func (m *ManualSource) Set(asset string, price decimal.Decimal, volatilityBps int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[asset] = Sample{
		Asset:         asset,
		Price:         price,
		VolatilityBps: volatilityBps,
		Timestamp:     at,
	}
}

// Fetch returns the stored sample for the asset.
func (m *ManualSource) Fetch(ctx context.Context, asset string) (Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sample, ok := m.samples[asset]
	if !ok {
		return Sample{}, fmt.Errorf("%w: no manual sample for %s", domain.ErrNoPriceData, asset)
	}
	return sample, nil
}
