package positions

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/domain"
)

// SeedFile is the JSON layout for bootstrap portfolio configuration:
//
//	{
//	  "cash": 1250.0,
//	  "positions": [
//	    {"symbol": "AAPL", "quantity": 10, "cost_basis": 100.0},
//	    {"symbol": "TSLA 250117C00300000", "quantity": 2, "cost_basis": 5.0, "manual_price": 7.2}
//	  ]
//	}
type SeedFile struct {
	Cash      float64           `json:"cash"`
	Positions []domain.Position `json:"positions"`
}

// LoadSeedFile parses a bootstrap configuration file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for _, pos := range seed.Positions {
		if pos.Symbol == "" {
			return nil, fmt.Errorf("seed file %s contains a position without a symbol", path)
		}
		if pos.Quantity <= 0 {
			return nil, fmt.Errorf("seed position %s has non-positive quantity", pos.Symbol)
		}
	}
	return &seed, nil
}
