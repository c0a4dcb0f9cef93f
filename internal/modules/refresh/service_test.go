package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

type MockPositionStore struct {
	mock.Mock
}

func (m *MockPositionStore) GetAll() ([]domain.Position, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Position), args.Error(1)
}

func (m *MockPositionStore) GetCash() (float64, error) {
	args := m.Called()
	return args.Get(0).(float64), args.Error(1)
}

type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) StoreSnapshot(snap *snapshot.Snapshot) error {
	return m.Called(snap).Error(0)
}

func (m *MockResultStore) StoreHistory(points []history.Point) error {
	return m.Called(points).Error(0)
}

type MockSnapshotter struct {
	mock.Mock
}

func (m *MockSnapshotter) Compute(ctx context.Context, positions []domain.Position, cash float64, now time.Time) (*snapshot.Snapshot, error) {
	args := m.Called(ctx, positions, cash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

type MockHistoryBuilder struct {
	mock.Mock
}

func (m *MockHistoryBuilder) Build(ctx context.Context, positions []snapshot.PricedPosition, cash, currentTotal float64, today time.Time) []history.Point {
	args := m.Called(ctx, positions, cash, currentTotal, today)
	return args.Get(0).([]history.Point)
}

var (
	testPositions = []domain.Position{{Symbol: "AAPL", Quantity: 10, CostBasis: 100}}
	testSnapshot  = &snapshot.Snapshot{
		UpdatedAt: "2025-06-02 15:30:00",
		Portfolio: snapshot.Totals{TotalValue: 1550, Cash: 50},
		Positions: []snapshot.PricedPosition{{
			Position:     domain.Position{Symbol: "AAPL", Quantity: 10, CostBasis: 100},
			CurrentPrice: 150, MarketValue: 1500, AllocationPercent: 100,
		}},
	}
	testHistory = []history.Point{
		{Date: "2025-05-30", Value: 1530},
		{Date: "2025-06-02", Value: 1550},
	}
)

func newTestService(t *testing.T, store *MockPositionStore, engine *MockSnapshotter, builder *MockHistoryBuilder, cache *MockResultStore, dir string) *Service {
	t.Helper()
	var resultStore ResultStore
	if cache != nil {
		resultStore = cache
	}
	return NewService(store, engine, builder, resultStore, dir, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestRunProducesResultAndArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dashboard")

	store := new(MockPositionStore)
	store.On("GetAll").Return(testPositions, nil)
	store.On("GetCash").Return(50.0, nil)

	engine := new(MockSnapshotter)
	engine.On("Compute", mock.Anything, testPositions, 50.0, mock.Anything).Return(testSnapshot, nil)

	builder := new(MockHistoryBuilder)
	builder.On("Build", mock.Anything, testSnapshot.Positions, 50.0, 1550.0, mock.Anything).Return(testHistory)

	cache := new(MockResultStore)
	cache.On("StoreSnapshot", testSnapshot).Return(nil)
	cache.On("StoreHistory", testHistory).Return(nil)

	service := newTestService(t, store, engine, builder, cache, dir)
	result, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testSnapshot, result.Snapshot)
	assert.Equal(t, testHistory, result.History)
	cache.AssertExpectations(t)

	// The static dashboard artifacts must exist and parse.
	var snap snapshot.Snapshot
	data, err := os.ReadFile(filepath.Join(dir, "data.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1550.0, snap.Portfolio.TotalValue)

	var points []history.Point
	data, err = os.ReadFile(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &points))
	assert.Equal(t, testHistory, points)
}

func TestRunPropagatesNoPositions(t *testing.T) {
	store := new(MockPositionStore)
	store.On("GetAll").Return([]domain.Position{}, nil)
	store.On("GetCash").Return(0.0, nil)

	engine := new(MockSnapshotter)
	engine.On("Compute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, snapshot.ErrNoPositions)

	service := newTestService(t, store, engine, new(MockHistoryBuilder), nil, "")
	result, err := service.Run(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, snapshot.ErrNoPositions)
}

func TestRunFailsWhenPositionLoadFails(t *testing.T) {
	store := new(MockPositionStore)
	store.On("GetAll").Return(nil, errors.New("database is locked"))

	service := newTestService(t, store, new(MockSnapshotter), new(MockHistoryBuilder), nil, "")
	_, err := service.Run(context.Background())
	assert.ErrorContains(t, err, "failed to load positions")
}

func TestRunSurvivesCacheFailure(t *testing.T) {
	store := new(MockPositionStore)
	store.On("GetAll").Return(testPositions, nil)
	store.On("GetCash").Return(50.0, nil)

	engine := new(MockSnapshotter)
	engine.On("Compute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testSnapshot, nil)

	builder := new(MockHistoryBuilder)
	builder.On("Build", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testHistory)

	cache := new(MockResultStore)
	cache.On("StoreSnapshot", mock.Anything).Return(errors.New("disk full"))
	cache.On("StoreHistory", mock.Anything).Return(errors.New("disk full"))

	service := newTestService(t, store, engine, builder, cache, "")
	result, err := service.Run(context.Background())
	require.NoError(t, err, "cache failures must not fail the run")
	assert.NotNil(t, result)
}

func TestRunWithoutDashboardDirWritesNoFiles(t *testing.T) {
	store := new(MockPositionStore)
	store.On("GetAll").Return(testPositions, nil)
	store.On("GetCash").Return(0.0, nil)

	engine := new(MockSnapshotter)
	engine.On("Compute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testSnapshot, nil)

	builder := new(MockHistoryBuilder)
	builder.On("Build", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testHistory)

	service := newTestService(t, store, engine, builder, nil, "")
	_, err := service.Run(context.Background())
	require.NoError(t, err)
}
