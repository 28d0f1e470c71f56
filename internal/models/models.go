package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is one cached member of the screened universe.
type Company struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	Exchange  string          `json:"exchange"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UniverseStatus summarizes the cached universe.
type UniverseStatus struct {
	Companies   int        `json:"companies"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Top         []Company  `json:"top,omitempty"`
}
