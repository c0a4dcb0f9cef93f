package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/refresh"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Run(ctx context.Context) (*refresh.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refresh.Result), args.Error(1)
}

type MockResultReader struct {
	mock.Mock
}

func (m *MockResultReader) GetSnapshot() (*snapshot.Snapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockResultReader) GetHistory() ([]history.Point, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Point), args.Error(1)
}

var (
	testSnapshot = &snapshot.Snapshot{
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

func newTestRouter(refresher Refresher, cache ResultReader) chi.Router {
	handler := NewHandler(refresher, cache, zerolog.New(nil).Level(zerolog.Disabled))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetPortfolioServedFromCache(t *testing.T) {
	refresher := new(MockRefresher)
	cache := new(MockResultReader)
	cache.On("GetSnapshot").Return(testSnapshot, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap snapshot.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1550.0, snap.Portfolio.TotalValue)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "AAPL", snap.Positions[0].Symbol)

	refresher.AssertNotCalled(t, "Run", mock.Anything)
}

func TestGetPortfolioComputesOnColdCache(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(&refresh.Result{Snapshot: testSnapshot, History: testHistory}, nil)
	cache := new(MockResultReader)
	cache.On("GetSnapshot").Return(nil, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio")

	require.Equal(t, http.StatusOK, rec.Code)
	refresher.AssertNumberOfCalls(t, "Run", 1)
}

func TestGetPortfolioNoPositionsIsBadRequest(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(nil, snapshot.ErrNoPositions)
	cache := new(MockResultReader)
	cache.On("GetSnapshot").Return(nil, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no positions configured", body["error"])
}

func TestGetPortfolioRefreshFailureIsServerError(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(nil, errors.New("database is locked"))
	cache := new(MockResultReader)
	cache.On("GetSnapshot").Return(nil, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPortfolioCacheReadErrorFallsBackToRefresh(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(&refresh.Result{Snapshot: testSnapshot, History: testHistory}, nil)
	cache := new(MockResultReader)
	cache.On("GetSnapshot").Return(nil, errors.New("corrupt payload"))

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio")

	require.Equal(t, http.StatusOK, rec.Code)
	refresher.AssertNumberOfCalls(t, "Run", 1)
}

func TestGetHistoryServedFromCache(t *testing.T) {
	refresher := new(MockRefresher)
	cache := new(MockResultReader)
	cache.On("GetHistory").Return(testHistory, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio/history")

	require.Equal(t, http.StatusOK, rec.Code)
	var points []history.Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, testHistory, points)
	refresher.AssertNotCalled(t, "Run", mock.Anything)
}

func TestGetHistoryComputesOnColdCache(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(&refresh.Result{Snapshot: testSnapshot, History: testHistory}, nil)
	cache := new(MockResultReader)
	cache.On("GetHistory").Return(nil, nil)

	rec := doRequest(t, newTestRouter(refresher, cache), http.MethodGet, "/portfolio/history")

	require.Equal(t, http.StatusOK, rec.Code)
	var points []history.Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, testHistory, points)
}

func TestPostRefreshReturnsSummary(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(&refresh.Result{Snapshot: testSnapshot, History: testHistory}, nil)

	rec := doRequest(t, newTestRouter(refresher, new(MockResultReader)), http.MethodPost, "/refresh")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "2025-06-02 15:30:00", body["updated_at"])
	assert.Equal(t, 1550.0, body["total_value"])
	assert.Equal(t, 1.0, body["positions"])
}

func TestPostRefreshNoPositionsIsBadRequest(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Run", mock.Anything).Return(nil, snapshot.ErrNoPositions)

	rec := doRequest(t, newTestRouter(refresher, new(MockResultReader)), http.MethodPost, "/refresh")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
