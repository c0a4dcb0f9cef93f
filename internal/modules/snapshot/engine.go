package snapshot

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

// ErrNoPositions is returned when the engine is invoked with an empty
// position list. An unconfigured portfolio is a caller error, not a
// data-availability gap, so it does not degrade like a missing price.
var ErrNoPositions = errors.New("no positions configured")

// Engine turns a position list and a cash balance into a Snapshot.
// It is stateless; every call prices the full portfolio from scratch.
type Engine struct {
	source domain.PriceSource
	log    zerolog.Logger
}

// NewEngine creates a snapshot engine.
func NewEngine(source domain.PriceSource, log zerolog.Logger) *Engine {
	return &Engine{
		source: source,
		log:    log.With().Str("service", "snapshot").Logger(),
	}
}

// Compute prices every position and aggregates portfolio totals.
//
// One batch quote request covers all queryable symbols; symbols the batch
// misses get a single per-symbol retry. A position whose price cannot be
// resolved at all contributes zero market value and zero day P&L but stays
// in the output, so one bad symbol never aborts the rest of the report.
// The caller's position slice is never mutated.
func (e *Engine) Compute(ctx context.Context, positions []domain.Position, cash float64, now time.Time) (*Snapshot, error) {
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	batch := e.fetchBatch(ctx, positions)
	resolver := newQuoteResolver(e.source, batch, e.log)

	priced := make([]PricedPosition, 0, len(positions))
	var totalMarketValue, totalDayPnL, totalCost float64

	for _, pos := range positions {
		pp := PricedPosition{Position: pos}

		if quote, ok := resolver.Resolve(ctx, pos); ok {
			pp.CurrentPrice = quote.Last
			pp.PreviousClose = quote.PrevClose
			pp.MarketValue = quote.Last * pos.Quantity
			pp.PnLPercent = gainPercent(pp.MarketValue, pos.CostValue())
			if quote.PrevClose > 0 {
				pp.DayPnL = (quote.Last - quote.PrevClose) * pos.Quantity
				pp.DayPnLPercent = (quote.Last - quote.PrevClose) / quote.PrevClose * 100
			}
		} else {
			e.log.Warn().Str("symbol", pos.Symbol).Msg("Price resolution failed, position degraded to zero value")
		}

		totalMarketValue += pp.MarketValue
		totalDayPnL += pp.DayPnL
		totalCost += pos.CostValue()
		priced = append(priced, pp)
	}

	// Allocation is a function of the final total, so it needs a second pass
	// after every position has been priced.
	for i := range priced {
		if totalMarketValue > 0 {
			priced[i].AllocationPercent = priced[i].MarketValue / totalMarketValue * 100
		}
	}

	grandTotal := totalMarketValue + cash
	totals := Totals{
		TotalValue:  grandTotal,
		Cash:        cash,
		DayPnL:      totalDayPnL,
		DayPnLPct:   dayPercent(totalDayPnL, grandTotal),
		TotalPnLVal: totalMarketValue - totalCost,
		TotalPnLPct: gainPercent(totalMarketValue, totalCost),
	}

	// Presentation ordering only; applied after all aggregation. Stable sort
	// keeps the input order for equal market values.
	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].MarketValue > priced[j].MarketValue
	})

	e.log.Info().
		Int("positions", len(priced)).
		Float64("total_value", grandTotal).
		Float64("day_pnl", totalDayPnL).
		Msg("Snapshot computed")

	return &Snapshot{
		UpdatedAt: now.Format(updatedAtLayout),
		Portfolio: totals,
		Positions: priced,
	}, nil
}

// fetchBatch collects the queryable symbols and performs the one upfront
// batch request. A batch failure is not fatal: it returns an empty map and
// the per-symbol retry rule takes over for each position.
func (e *Engine) fetchBatch(ctx context.Context, positions []domain.Position) map[string]domain.Quote {
	seen := make(map[string]bool, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos.Queryable() && !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			symbols = append(symbols, pos.Symbol)
		}
	}
	if len(symbols) == 0 {
		return nil
	}

	quotes, err := e.source.BatchLatest(ctx, symbols)
	if err != nil {
		e.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Batch quote request failed, falling back to per-symbol retries")
		return nil
	}
	return quotes
}

// gainPercent returns the percentage gain of value over cost, 0 when the
// cost basis is zero or unknown.
func gainPercent(value, cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return (value - cost) / cost * 100
}

// dayPercent computes day P&L percent against yesterday's implied total.
func dayPercent(dayPnL, total float64) float64 {
	yesterday := total - dayPnL
	if yesterday <= 0 {
		return 0
	}
	return dayPnL / yesterday * 100
}
