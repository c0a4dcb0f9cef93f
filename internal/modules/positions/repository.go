// Package positions provides storage for the configured portfolio holdings.
package positions

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

const cashKey = "total_cash"

// Repository handles position and cash balance persistence in portfolio.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a position repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// Init creates the backing tables if they do not exist.
func (r *Repository) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		symbol       TEXT PRIMARY KEY,
		quantity     REAL NOT NULL,
		cost_basis   REAL NOT NULL DEFAULT 0,
		manual_price REAL,
		last_updated INTEGER
	);
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create positions schema: %w", err)
	}
	return nil
}

// GetAll returns all configured positions in insertion order.
func (r *Repository) GetAll() ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT symbol, quantity, cost_basis, manual_price FROM positions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		var manual sql.NullFloat64
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.CostBasis, &manual); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if manual.Valid {
			price := manual.Float64
			pos.ManualPrice = &price
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// Upsert inserts or replaces a position keyed by symbol.
func (r *Repository) Upsert(pos domain.Position) error {
	symbol := strings.TrimSpace(pos.Symbol)
	if symbol == "" {
		return fmt.Errorf("position symbol is required")
	}
	if pos.Quantity <= 0 {
		return fmt.Errorf("position %s quantity must be positive", symbol)
	}

	var manual sql.NullFloat64
	if pos.ManualPrice != nil {
		manual = sql.NullFloat64{Float64: *pos.ManualPrice, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO positions (symbol, quantity, cost_basis, manual_price, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			manual_price = excluded.manual_price,
			last_updated = excluded.last_updated`,
		symbol, pos.Quantity, pos.CostBasis, manual, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", symbol, err)
	}
	return nil
}

// Delete removes a position by symbol.
func (r *Repository) Delete(symbol string) error {
	if _, err := r.db.Exec(`DELETE FROM positions WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to delete position %s: %w", symbol, err)
	}
	return nil
}

// GetCash returns the configured cash balance, 0 when unset.
func (r *Repository) GetCash() (float64, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, cashKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query cash balance: %w", err)
	}

	cash, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cash balance %q: %w", value, err)
	}
	return cash, nil
}

// SetCash stores the cash balance.
func (r *Repository) SetCash(cash float64) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		cashKey, strconv.FormatFloat(cash, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("failed to store cash balance: %w", err)
	}
	return nil
}

// Seed inserts bootstrap positions and cash, but only into an empty table.
// Existing configuration always wins over the bootstrap list.
func (r *Repository) Seed(positions []domain.Position, cash float64) error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count positions: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, pos := range positions {
		if err := r.Upsert(pos); err != nil {
			return err
		}
	}
	if err := r.SetCash(cash); err != nil {
		return err
	}

	r.log.Info().Int("positions", len(positions)).Float64("cash", cash).Msg("Seeded portfolio configuration")
	return nil
}
