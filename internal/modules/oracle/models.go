package oracle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one observed price for a reference asset.
type Sample struct {
	Asset         string          `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	VolatilityBps int64           `json:"volatility_bps"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AssetStatus is the per-asset view reported by the status endpoint.
type AssetStatus struct {
	Asset         string          `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	VolatilityBps int64           `json:"volatility_bps"`
	AgeSeconds    int64           `json:"age_seconds"`
	Fresh         bool            `json:"fresh"`
	Safe          bool            `json:"safe"`
}

// GateStatus is the full safety-gate view.
type GateStatus struct {
	Safe        bool          `json:"safe"`
	MaxAge      string        `json:"max_age"`
	VolLimitBps int64         `json:"vol_limit_bps"`
	Assets      []AssetStatus `json:"assets"`
}
