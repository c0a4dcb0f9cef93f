package domain

import (
	"context"
	"time"
)

// Quote is a resolved market quote for one symbol. PrevClose may equal Last
// when the provider could not determine a previous close; day P&L is then 0.
type Quote struct {
	Last      float64
	PrevClose float64
}

// PricePoint is one historical daily close. Missing days are represented by
// absence from the series, never by a zero Close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSource supplies current and historical market closes for a set of
// symbols. Implementations must treat "no data" as absence from the returned
// maps rather than returning zero values.
type PriceSource interface {
	// BatchLatest fetches quotes for all symbols in one request. Symbols with
	// no usable data are omitted from the result; a partial map is not an error.
	BatchLatest(ctx context.Context, symbols []string) (map[string]Quote, error)

	// Latest fetches a quote for a single symbol. Used as the one retry after
	// a batch miss.
	Latest(ctx context.Context, symbol string) (Quote, error)

	// Historical fetches daily close series covering roughly the last `days`
	// calendar days. Symbols with no data are omitted from the result.
	Historical(ctx context.Context, symbols []string, days int) (map[string][]PricePoint, error)
}
