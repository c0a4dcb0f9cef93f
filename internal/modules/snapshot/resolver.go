package snapshot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

// resolveFunc attempts to produce a quote for a position. The second return
// value reports whether the rule applied; false means the next rule runs.
type resolveFunc func(ctx context.Context, pos domain.Position) (domain.Quote, bool)

// resolveRule is one step of the price resolution chain. Rules are evaluated
// in order; the first one that yields a quote wins.
type resolveRule struct {
	name    string
	resolve resolveFunc
}

// quoteResolver runs the ordered resolution chain:
//  1. manual price (pinned quote, zero day P&L)
//  2. batch quote from the upfront BatchLatest call
//  3. one single-symbol retry against the price source
//
// A position that falls through every rule degrades to zero value; that
// decision belongs to the engine, not the resolver.
type quoteResolver struct {
	rules []resolveRule
	log   zerolog.Logger
}

func newQuoteResolver(source domain.PriceSource, batch map[string]domain.Quote, log zerolog.Logger) *quoteResolver {
	return &quoteResolver{
		log: log.With().Str("component", "quote_resolver").Logger(),
		rules: []resolveRule{
			{name: "manual_price", resolve: manualPriceRule},
			{name: "batch_quote", resolve: batchQuoteRule(batch)},
			{name: "single_retry", resolve: singleRetryRule(source, log)},
		},
	}
}

// Resolve runs the rule chain for one position.
func (r *quoteResolver) Resolve(ctx context.Context, pos domain.Position) (domain.Quote, bool) {
	for _, rule := range r.rules {
		quote, ok := rule.resolve(ctx, pos)
		if !ok {
			continue
		}
		if quote.Last <= 0 {
			// A non-positive price is as unusable as no price at all.
			continue
		}
		r.log.Debug().
			Str("symbol", pos.Symbol).
			Str("rule", rule.name).
			Float64("price", quote.Last).
			Msg("Resolved quote")
		return quote, true
	}
	return domain.Quote{}, false
}

// manualPriceRule pins manually priced positions. Previous close is defined
// equal to the manual price, so day P&L is always zero for these. A
// non-positive manual price fails the resolver's usability check like any
// other quote, so the position degrades to zero value rather than carrying
// a negative or zero price into the totals.
func manualPriceRule(_ context.Context, pos domain.Position) (domain.Quote, bool) {
	if pos.ManualPrice == nil {
		return domain.Quote{}, false
	}
	return domain.Quote{Last: *pos.ManualPrice, PrevClose: *pos.ManualPrice}, true
}

// batchQuoteRule looks the symbol up in the upfront batch result.
func batchQuoteRule(batch map[string]domain.Quote) resolveFunc {
	return func(_ context.Context, pos domain.Position) (domain.Quote, bool) {
		if !pos.Queryable() {
			return domain.Quote{}, false
		}
		quote, ok := batch[pos.Symbol]
		return quote, ok
	}
}

// singleRetryRule performs exactly one per-symbol lookup after a batch miss.
func singleRetryRule(source domain.PriceSource, log zerolog.Logger) resolveFunc {
	return func(ctx context.Context, pos domain.Position) (domain.Quote, bool) {
		if !pos.Queryable() || source == nil {
			return domain.Quote{}, false
		}
		quote, err := source.Latest(ctx, pos.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Single-symbol retry failed")
			return domain.Quote{}, false
		}
		return quote, true
	}
}
