// Package snapshot computes point-in-time portfolio valuations.
package snapshot

import "github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"

// PricedPosition is a position enriched with resolved market data and
// derived P&L figures. Positions whose price could not be resolved keep
// zero values but are never dropped from the snapshot.
type PricedPosition struct {
	domain.Position

	CurrentPrice      float64 `json:"current_price"`
	PreviousClose     float64 `json:"previous_close"`
	MarketValue       float64 `json:"market_value"`
	PnLPercent        float64 `json:"pnl_percent"`
	DayPnL            float64 `json:"day_pnl"`
	DayPnLPercent     float64 `json:"day_pnl_percent"`
	AllocationPercent float64 `json:"allocation_percent"`
}

// Totals aggregates portfolio-level figures. TotalValue includes cash;
// allocation percentages on positions are computed against market value
// only, with cash excluded from the denominator.
type Totals struct {
	TotalValue  float64 `json:"total_value"`
	Cash        float64 `json:"cash"`
	DayPnL      float64 `json:"day_pnl"`
	DayPnLPct   float64 `json:"day_pnl_pct"`
	TotalPnLVal float64 `json:"total_pnl_val"`
	TotalPnLPct float64 `json:"total_pnl_pct"`
}

// Snapshot is the full valuation result served to the dashboard.
// Positions are ordered by market value descending; ties keep input order.
type Snapshot struct {
	UpdatedAt string           `json:"updated_at"`
	Portfolio Totals           `json:"portfolio"`
	Positions []PricedPosition `json:"positions"`
}

// updatedAtLayout matches the timestamp format the dashboard frontend expects.
const updatedAtLayout = "2006-01-02 15:04:05"
