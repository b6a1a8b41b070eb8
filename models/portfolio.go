package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Portfolio groups a user's holdings
type Portfolio struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"-"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Holdings    []Holding `gorm:"foreignKey:PortfolioID" json:"holdings,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Holding is a position in a single symbol within a portfolio
type Holding struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PortfolioID uint            `gorm:"index:idx_portfolio_symbol" json:"portfolio_id"`
	Symbol      string          `gorm:"index:idx_portfolio_symbol" json:"symbol"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity"`
	AvgCost     decimal.Decimal `gorm:"type:decimal(15,4)" json:"avg_cost"`
	RealizedPnL decimal.Decimal `gorm:"type:decimal(20,4)" json:"realized_pnl"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Transaction side constants
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

// ApplyBuy adds shares to the holding, recomputing the average cost.
func (h *Holding) ApplyBuy(quantity, price decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) || price.LessThan(decimal.Zero) {
		return fmt.Errorf("invalid buy: quantity=%s price=%s", quantity, price)
	}
	totalCost := h.AvgCost.Mul(h.Quantity).Add(price.Mul(quantity))
	h.Quantity = h.Quantity.Add(quantity)
	h.AvgCost = totalCost.Div(h.Quantity)
	return nil
}

// ApplySell removes shares from the holding and books realized P&L against
// the average cost. The average cost itself is unchanged by a sell.
func (h *Holding) ApplySell(quantity, price decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) || price.LessThan(decimal.Zero) {
		return fmt.Errorf("invalid sell: quantity=%s price=%s", quantity, price)
	}
	if quantity.GreaterThan(h.Quantity) {
		return fmt.Errorf("insufficient quantity: have %s, selling %s", h.Quantity, quantity)
	}
	h.RealizedPnL = h.RealizedPnL.Add(price.Sub(h.AvgCost).Mul(quantity))
	h.Quantity = h.Quantity.Sub(quantity)
	return nil
}

// MarketValue returns the holding's value at the given price
func (h *Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return h.Quantity.Mul(price)
}

// UnrealizedPnL returns the open P&L of the holding at the given price
func (h *Holding) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(h.AvgCost).Mul(h.Quantity)
}

// MigratePortfolioModels runs database migrations for portfolio models
func MigratePortfolioModels(db *gorm.DB) error {
	return db.AutoMigrate(&Portfolio{}, &Holding{})
}
