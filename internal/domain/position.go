// Package domain contains the core types shared across the application.
// It has no infrastructure dependencies.
package domain

import "strings"

// Position is a single portfolio holding as configured by the user.
// CostBasis is per-share; 0 means the cost is unknown and total P&L
// for the position is reported as 0%. ManualPrice, when set, pins the
// position to a fixed price and bypasses all market lookups.
type Position struct {
	Symbol      string   `json:"symbol"`
	Quantity    float64  `json:"quantity"`
	CostBasis   float64  `json:"cost_basis"`
	ManualPrice *float64 `json:"manual_price,omitempty"`
}

// Queryable reports whether the position's symbol can be sent to a market
// data provider. Positions with a manual price never need a lookup, and
// symbols containing whitespace (option contracts like "TSLA 250117C00300000")
// are not resolvable through quote APIs.
func (p Position) Queryable() bool {
	if p.ManualPrice != nil {
		return false
	}
	return !strings.ContainsAny(p.Symbol, " \t")
}

// CostValue returns the total cost of the position (per-share basis x quantity).
func (p Position) CostValue() float64 {
	return p.CostBasis * p.Quantity
}
