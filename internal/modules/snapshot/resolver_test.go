package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

func newTestResolver(source domain.PriceSource, batch map[string]domain.Quote) *quoteResolver {
	return newQuoteResolver(source, batch, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestResolveManualPriceWinsOverBatch(t *testing.T) {
	manual := 42.0
	batch := map[string]domain.Quote{"AAPL": {Last: 150, PrevClose: 145}}
	resolver := newTestResolver(new(MockPriceSource), batch)

	quote, ok := resolver.Resolve(context.Background(), domain.Position{
		Symbol:      "AAPL",
		ManualPrice: &manual,
	})
	require.True(t, ok)
	assert.Equal(t, 42.0, quote.Last)
	assert.Equal(t, 42.0, quote.PrevClose, "manual price pins previous close too")
}

func TestResolveBatchQuoteWinsOverRetry(t *testing.T) {
	source := new(MockPriceSource)
	batch := map[string]domain.Quote{"AAPL": {Last: 150, PrevClose: 145}}
	resolver := newTestResolver(source, batch)

	quote, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "AAPL"})
	require.True(t, ok)
	assert.Equal(t, 150.0, quote.Last)
	source.AssertNotCalled(t, "Latest", mock.Anything, mock.Anything)
}

func TestResolveBatchMissFallsThroughToRetry(t *testing.T) {
	source := new(MockPriceSource)
	source.On("Latest", mock.Anything, "TSM").
		Return(domain.Quote{Last: 200, PrevClose: 198}, nil)
	resolver := newTestResolver(source, nil)

	quote, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "TSM"})
	require.True(t, ok)
	assert.Equal(t, 200.0, quote.Last)
	source.AssertNumberOfCalls(t, "Latest", 1)
}

func TestResolveRetryFailureExhaustsChain(t *testing.T) {
	source := new(MockPriceSource)
	source.On("Latest", mock.Anything, "GONE").
		Return(domain.Quote{}, errors.New("symbol not found"))
	resolver := newTestResolver(source, nil)

	_, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "GONE"})
	assert.False(t, ok)
}

func TestResolveSkipsNonPositiveBatchPrice(t *testing.T) {
	source := new(MockPriceSource)
	source.On("Latest", mock.Anything, "HALT").
		Return(domain.Quote{Last: 12, PrevClose: 12}, nil)
	// A zero price in the batch is indistinguishable from bad upstream data
	// and must not be treated as resolved.
	batch := map[string]domain.Quote{"HALT": {Last: 0, PrevClose: 10}}
	resolver := newTestResolver(source, batch)

	quote, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "HALT"})
	require.True(t, ok)
	assert.Equal(t, 12.0, quote.Last, "retry supplies the usable quote")
}

func TestResolveNonPositiveManualPriceDegrades(t *testing.T) {
	manual := 0.0
	source := new(MockPriceSource)
	resolver := newTestResolver(source, map[string]domain.Quote{})

	// A zero manual price is unusable, and a manually priced position never
	// falls through to market lookups.
	_, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "WORTHLESS", ManualPrice: &manual})
	assert.False(t, ok)
	source.AssertNotCalled(t, "Latest", mock.Anything, mock.Anything)
}

func TestResolveNonQueryableWithoutManualPriceFails(t *testing.T) {
	source := new(MockPriceSource)
	resolver := newTestResolver(source, map[string]domain.Quote{})

	_, ok := resolver.Resolve(context.Background(), domain.Position{Symbol: "TSLA 250117C00300000"})
	assert.False(t, ok)
	source.AssertNotCalled(t, "Latest", mock.Anything, mock.Anything)
}
