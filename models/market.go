package models

import (
	"time"

	"gorm.io/gorm"
)

// MarketQuote is the latest market snapshot for a symbol. The durable store
// keeps one row per symbol, overwritten on every successful fetch.
type MarketQuote struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Symbol        string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	PreviousClose float64   `json:"previousClose"`
	MarketCap     float64   `json:"marketCap,omitempty"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// Index codes served by the market/indices endpoint
const (
	IndexNifty     = "NIFTY"
	IndexSensex    = "SENSEX"
	IndexBankNifty = "BANKNIFTY"
)

// MarketIndices returns the benchmark indices tracked by the service
func MarketIndices() []string {
	return []string{IndexNifty, IndexSensex, IndexBankNifty}
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(&MarketQuote{})
}
