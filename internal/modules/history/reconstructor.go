// Package history rebuilds a daily portfolio value series from past closes.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

// Point is one day of the reconstructed value series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Lookback window bounds. Requests outside this range are clamped.
const (
	MinLookbackDays     = 30
	MaxLookbackDays     = 90
	DefaultLookbackDays = 30
)

const dateLayout = "2006-01-02"

// referenceSymbol is fetched alongside the holdings so the series always
// spans a full trading calendar, even when every position is manually priced
// or a sparse symbol has gaps. It anchors dates only and never contributes
// to the portfolio value.
const referenceSymbol = "SPY"

// Reconstructor replays historical closes over the current position list to
// approximate what the portfolio was worth on past trading days. It assumes
// today's holdings were held throughout the window; the result is a trend
// line for the dashboard, not an audited account history.
type Reconstructor struct {
	source       domain.PriceSource
	lookbackDays int
	log          zerolog.Logger
}

// NewReconstructor creates a reconstructor with the given lookback window,
// clamped to [MinLookbackDays, MaxLookbackDays].
func NewReconstructor(source domain.PriceSource, lookbackDays int, log zerolog.Logger) *Reconstructor {
	if lookbackDays < MinLookbackDays {
		lookbackDays = MinLookbackDays
	}
	if lookbackDays > MaxLookbackDays {
		lookbackDays = MaxLookbackDays
	}
	return &Reconstructor{
		source:       source,
		lookbackDays: lookbackDays,
		log:          log.With().Str("service", "history").Logger(),
	}
}

// Build produces the ordered daily value series, ending with today's point
// forced to currentTotal (the snapshot's authoritative figure).
//
// Per-date price fallback, in order: historical close for that date, the
// position's manual price, the snapshot's resolved current price (a
// carry-forward for symbols without coverage that day), then 0. A day with
// partially missing data is still emitted with the degraded sum; days are
// never skipped. Dates after today are discarded. A failed or empty
// historical fetch collapses the series to a single today-only point.
func (r *Reconstructor) Build(ctx context.Context, positions []snapshot.PricedPosition, cash, currentTotal float64, today time.Time) []Point {
	closesByDate := r.fetchCloses(ctx, positions)
	todayStr := today.Format(dateLayout)

	dates := make([]string, 0, len(closesByDate))
	for date := range closesByDate {
		if date > todayStr {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	points := make([]Point, 0, len(dates)+1)
	for _, date := range dates {
		value := cash
		for _, pos := range positions {
			value += priceOn(pos, closesByDate[date]) * pos.Quantity
		}
		points = append(points, Point{Date: date, Value: value})
	}

	return finalizeToday(points, todayStr, currentTotal)
}

// fetchCloses queries the historical series for all queryable symbols plus
// the reference symbol, and pivots it into per-date close maps. Date keys
// use ISO form, so sorting them lexicographically is chronological.
func (r *Reconstructor) fetchCloses(ctx context.Context, positions []snapshot.PricedPosition) map[string]map[string]float64 {
	seen := make(map[string]bool, len(positions))
	symbols := make([]string, 0, len(positions)+1)
	for _, pos := range positions {
		if pos.Queryable() && !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			symbols = append(symbols, pos.Symbol)
		}
	}
	if !seen[referenceSymbol] {
		symbols = append(symbols, referenceSymbol)
	}

	series, err := r.source.Historical(ctx, symbols, r.lookbackDays)
	if err != nil {
		r.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Historical fetch failed, emitting today-only series")
		return nil
	}

	closesByDate := make(map[string]map[string]float64)
	for symbol, points := range series {
		for _, p := range points {
			date := p.Date.Format(dateLayout)
			if closesByDate[date] == nil {
				closesByDate[date] = make(map[string]float64)
			}
			closesByDate[date][symbol] = p.Close
		}
	}
	return closesByDate
}

// priceOn resolves the price used for one position on one date.
func priceOn(pos snapshot.PricedPosition, closes map[string]float64) float64 {
	if close, ok := closes[pos.Symbol]; ok {
		return close
	}
	if pos.ManualPrice != nil {
		return *pos.ManualPrice
	}
	if pos.CurrentPrice > 0 {
		return pos.CurrentPrice
	}
	return 0
}

// finalizeToday enforces the invariant that the series ends with today's
// date carrying the freshly computed snapshot total, overwriting whatever
// the historical data produced for that day.
func finalizeToday(points []Point, today string, currentTotal float64) []Point {
	if len(points) == 0 {
		return []Point{{Date: today, Value: currentTotal}}
	}
	last := &points[len(points)-1]
	if last.Date == today {
		last.Value = currentTotal
		return points
	}
	return append(points, Point{Date: today, Value: currentTotal})
}
