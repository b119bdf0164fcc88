// Package oracle implements the price safety gate that guards rebalancing.
// The gate tracks a configured set of reference assets and answers one
// question: are market conditions safe to move the pool right now.
package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/poolvault/internal/domain"
)

// realizedVolWindow bounds how much price history the gate retains per asset.
const realizedVolWindow = 24 * time.Hour

// Source delivers price samples for a reference asset.
type Source interface {
	Fetch(ctx context.Context, asset string) (Sample, error)
}

type pricePoint struct {
	price float64
	at    time.Time
}

// Gate evaluates price freshness and volatility for the tracked assets.
// Safety is evaluated against the current clock on every call; a sample that
// passed five minutes ago can fail now without any new data arriving.
type Gate struct {
	mu          sync.RWMutex
	source      Source
	assets      []string
	maxAge      time.Duration
	volLimitBps int64
	samples     map[string]Sample
	history     map[string][]pricePoint
	now         func() time.Time
	log         zerolog.Logger
}

// NewGate creates a safety gate over the given source and tracked assets.
func NewGate(source Source, assets []string, maxAge time.Duration, volLimitBps int64, log zerolog.Logger) *Gate {
	return &Gate{
		source:      source,
		assets:      assets,
		maxAge:      maxAge,
		volLimitBps: volLimitBps,
		samples:     make(map[string]Sample),
		history:     make(map[string][]pricePoint),
		now:         time.Now,
		log:         log.With().Str("service", "oracle").Logger(),
	}
}

// SetClock overrides the gate's clock. Used in tests to age samples.
func (g *Gate) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Refresh pulls a fresh sample for every tracked asset. A sample whose source
// reports no volatility gets the realized volatility computed from the gate's
// own price history. Partial failures keep the last good sample for the
// affected asset.
func (g *Gate) Refresh(ctx context.Context) error {
	var firstErr error
	for _, asset := range g.assets {
		sample, err := g.source.Fetch(ctx, asset)
		if err != nil {
			g.log.Warn().Err(err).Str("asset", asset).Msg("Price fetch failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("fetching %s: %w", asset, err)
			}
			continue
		}
		g.record(sample)
	}
	return firstErr
}

func (g *Gate) record(sample Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()

	price, _ := sample.Price.Float64()
	points := append(g.history[sample.Asset], pricePoint{price: price, at: sample.Timestamp})

	// Trim points older than the volatility window
	cutoff := g.now().Add(-realizedVolWindow)
	for len(points) > 0 && points[0].at.Before(cutoff) {
		points = points[1:]
	}
	g.history[sample.Asset] = points

	if sample.VolatilityBps == 0 {
		sample.VolatilityBps = realizedVolBps(points)
	}
	g.samples[sample.Asset] = sample
}

// realizedVolBps is the standard deviation of the per-sample relative returns
// within the retained window, scaled to basis points.
func realizedVolBps(points []pricePoint) int64 {
	if len(points) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].price
		if prev > 0 {
			returns = append(returns, points[i].price/prev-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	sd := stat.StdDev(returns, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return int64(math.Round(sd * domain.AllocationUnits))
}

// CheckSafety verifies that every tracked asset has a fresh sample within the
// volatility limit. The first violation is returned; the gate never caches a
// verdict.
func (g *Gate) CheckSafety(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := g.now()
	for _, asset := range g.assets {
		sample, ok := g.samples[asset]
		if !ok {
			return fmt.Errorf("%w: %s has no sample", domain.ErrNoPriceData, asset)
		}
		if age := now.Sub(sample.Timestamp); age > g.maxAge {
			return fmt.Errorf("%w: %s sample is %s old, limit %s",
				domain.ErrStalePrice, asset, age.Truncate(time.Second), g.maxAge)
		}
		if sample.VolatilityBps >= g.volLimitBps {
			return fmt.Errorf("%w: %s at %d bps, limit %d bps",
				domain.ErrVolatilityExceeded, asset, sample.VolatilityBps, g.volLimitBps)
		}
	}
	return nil
}

// Status reports the per-asset gate view.
func (g *Gate) Status(ctx context.Context) GateStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := g.now()
	status := GateStatus{
		Safe:        true,
		MaxAge:      g.maxAge.String(),
		VolLimitBps: g.volLimitBps,
		Assets:      make([]AssetStatus, 0, len(g.assets)),
	}

	for _, asset := range g.assets {
		sample, ok := g.samples[asset]
		if !ok {
			status.Safe = false
			status.Assets = append(status.Assets, AssetStatus{Asset: asset})
			continue
		}
		age := now.Sub(sample.Timestamp)
		fresh := age <= g.maxAge
		safe := fresh && sample.VolatilityBps < g.volLimitBps
		if !safe {
			status.Safe = false
		}
		status.Assets = append(status.Assets, AssetStatus{
			Asset:         asset,
			Price:         sample.Price,
			VolatilityBps: sample.VolatilityBps,
			AgeSeconds:    int64(age.Seconds()),
			Fresh:         fresh,
			Safe:          safe,
		})
	}
	return status
}
