// Package refresh orchestrates a full dashboard data refresh: load the
// configured portfolio, compute the snapshot and history, persist the
// dashboard artifacts and update the cache.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

// PositionStore supplies the configured portfolio.
type PositionStore interface {
	GetAll() ([]domain.Position, error)
	GetCash() (float64, error)
}

// ResultStore caches the latest refresh output.
type ResultStore interface {
	StoreSnapshot(snap *snapshot.Snapshot) error
	StoreHistory(points []history.Point) error
}

// Snapshotter computes portfolio snapshots.
type Snapshotter interface {
	Compute(ctx context.Context, positions []domain.Position, cash float64, now time.Time) (*snapshot.Snapshot, error)
}

// HistoryBuilder reconstructs the historical value series.
type HistoryBuilder interface {
	Build(ctx context.Context, positions []snapshot.PricedPosition, cash, currentTotal float64, today time.Time) []history.Point
}

// Result bundles the output of one refresh run.
type Result struct {
	Snapshot *snapshot.Snapshot
	History  []history.Point
}

// Service runs refreshes. It is safe to call Run from both the scheduler
// and HTTP handlers; each run is independent and holds no shared state.
type Service struct {
	positionStore PositionStore
	engine        Snapshotter
	reconstructor HistoryBuilder
	cache         ResultStore
	dashboardDir  string
	log           zerolog.Logger
	now           func() time.Time
}

// NewService creates a refresh service. cache may be nil to disable caching;
// dashboardDir may be empty to skip artifact files.
func NewService(
	positionStore PositionStore,
	engine Snapshotter,
	reconstructor HistoryBuilder,
	cache ResultStore,
	dashboardDir string,
	log zerolog.Logger,
) *Service {
	return &Service{
		positionStore: positionStore,
		engine:        engine,
		reconstructor: reconstructor,
		cache:         cache,
		dashboardDir:  dashboardDir,
		log:           log.With().Str("service", "refresh").Logger(),
		now:           time.Now,
	}
}

// Run executes one full refresh. The only fatal error is an unconfigured
// portfolio (snapshot.ErrNoPositions) or a storage failure loading it;
// market data problems degrade inside the engine and reconstructor.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	started := s.now()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("Starting refresh")

	positionList, err := s.positionStore.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	cash, err := s.positionStore.GetCash()
	if err != nil {
		return nil, fmt.Errorf("failed to load cash balance: %w", err)
	}

	snap, err := s.engine.Compute(ctx, positionList, cash, started)
	if err != nil {
		return nil, err
	}

	points := s.reconstructor.Build(ctx, snap.Positions, cash, snap.Portfolio.TotalValue, started)

	// Artifact and cache failures are logged but do not fail the run; the
	// computed result is still returned to the caller.
	s.writeArtifacts(snap, points, log)
	s.storeCache(snap, points, log)

	log.Info().
		Dur("elapsed", s.now().Sub(started)).
		Float64("total_value", snap.Portfolio.TotalValue).
		Int("history_points", len(points)).
		Msg("Refresh complete")

	return &Result{Snapshot: snap, History: points}, nil
}

// writeArtifacts saves data.json and history.json for the static dashboard.
func (s *Service) writeArtifacts(snap *snapshot.Snapshot, points []history.Point, log zerolog.Logger) {
	if s.dashboardDir == "" {
		return
	}
	if err := os.MkdirAll(s.dashboardDir, 0755); err != nil {
		log.Error().Err(err).Str("dir", s.dashboardDir).Msg("Failed to create dashboard directory")
		return
	}

	if err := writeJSONFile(filepath.Join(s.dashboardDir, "data.json"), snap); err != nil {
		log.Error().Err(err).Msg("Failed to write data.json")
	}
	if err := writeJSONFile(filepath.Join(s.dashboardDir, "history.json"), points); err != nil {
		log.Error().Err(err).Msg("Failed to write history.json")
	}
}

func (s *Service) storeCache(snap *snapshot.Snapshot, points []history.Point, log zerolog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.StoreSnapshot(snap); err != nil {
		log.Error().Err(err).Msg("Failed to cache snapshot")
	}
	if err := s.cache.StoreHistory(points); err != nil {
		log.Error().Err(err).Msg("Failed to cache history")
	}
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	// Write-then-rename keeps a half-written file from being served.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
