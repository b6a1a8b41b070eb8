package controllers

import (
	"net/http"
	"strconv"

	"marketpulse/middleware"
	"marketpulse/models"
	"marketpulse/services/marketdata"
	"marketpulse/services/realtime"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PortfolioController handles portfolio and transaction requests
type PortfolioController struct {
	db     *gorm.DB
	quotes *marketdata.Service
	hub    *realtime.Hub
}

// NewPortfolioController creates a new portfolio controller
func NewPortfolioController(db *gorm.DB, quotes *marketdata.Service, hub *realtime.Hub) *PortfolioController {
	return &PortfolioController{db: db, quotes: quotes, hub: hub}
}

// CreatePortfolioRequest is the body for the create portfolio endpoint
type CreatePortfolioRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// TransactionRequest is the body for the buy/sell endpoint
type TransactionRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	Price    decimal.Decimal `json:"price" binding:"required"`
}

// CreatePortfolio creates a portfolio for the authenticated user
// POST /api/portfolios
func (pc *PortfolioController) CreatePortfolio(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	portfolio := models.Portfolio{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := pc.db.Create(&portfolio).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create portfolio"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": portfolio})
}

// ListPortfolios returns the authenticated user's portfolios with holdings
// GET /api/portfolios
func (pc *PortfolioController) ListPortfolios(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var portfolios []models.Portfolio
	if err := pc.db.Preload("Holdings").Where("user_id = ?", userID).Find(&portfolios).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch portfolios"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": portfolios})
}

// GetPortfolio returns a portfolio with live valuation of its holdings
// GET /api/portfolios/:id
func (pc *PortfolioController) GetPortfolio(c *gin.Context) {
	portfolio, ok := pc.ownedPortfolio(c)
	if !ok {
		return
	}

	symbols := make([]string, 0, len(portfolio.Holdings))
	for _, holding := range portfolio.Holdings {
		if holding.Quantity.IsPositive() {
			symbols = append(symbols, holding.Symbol)
		}
	}

	valuations := make([]gin.H, 0, len(portfolio.Holdings))
	totalValue := decimal.Zero
	totalUnrealized := decimal.Zero

	if len(symbols) > 0 {
		results := pc.quotes.GetBatch(c.Request.Context(), symbols)
		for _, holding := range portfolio.Holdings {
			entry := gin.H{"holding": holding}
			if result, found := results[holding.Symbol]; found && result.Err == nil && result.Quote != nil {
				price := decimal.NewFromFloat(result.Quote.Price)
				marketValue := holding.MarketValue(price)
				unrealized := holding.UnrealizedPnL(price)
				entry["price"] = result.Quote.Price
				entry["market_value"] = marketValue
				entry["unrealized_pnl"] = unrealized
				totalValue = totalValue.Add(marketValue)
				totalUnrealized = totalUnrealized.Add(unrealized)
			}
			valuations = append(valuations, entry)
		}
	} else {
		for _, holding := range portfolio.Holdings {
			valuations = append(valuations, gin.H{"holding": holding})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"portfolio":            portfolio,
			"holdings":             valuations,
			"total_market_value":   totalValue,
			"total_unrealized_pnl": totalUnrealized,
		},
	})
}

// DeletePortfolio removes a portfolio and its holdings
// DELETE /api/portfolios/:id
func (pc *PortfolioController) DeletePortfolio(c *gin.Context) {
	portfolio, ok := pc.ownedPortfolio(c)
	if !ok {
		return
	}

	if err := pc.db.Where("portfolio_id = ?", portfolio.ID).Delete(&models.Holding{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete portfolio"})
		return
	}
	if err := pc.db.Delete(&portfolio).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete portfolio"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Portfolio deleted"})
}

// ApplyTransaction records a buy or sell against a portfolio holding
// POST /api/portfolios/:id/transactions
func (pc *PortfolioController) ApplyTransaction(c *gin.Context) {
	portfolio, ok := pc.ownedPortfolio(c)
	if !ok {
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Side != models.TransactionBuy && req.Side != models.TransactionSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Side must be buy or sell"})
		return
	}

	symbol := marketdata.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	var holding models.Holding
	err := pc.db.Where("portfolio_id = ? AND symbol = ?", portfolio.ID, symbol).First(&holding).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load holding"})
			return
		}
		if req.Side == models.TransactionSell {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No holding to sell"})
			return
		}
		holding = models.Holding{PortfolioID: portfolio.ID, Symbol: symbol}
	}

	if req.Side == models.TransactionBuy {
		err = holding.ApplyBuy(req.Quantity, req.Price)
	} else {
		err = holding.ApplySell(req.Quantity, req.Price)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := pc.db.Save(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save holding"})
		return
	}

	if pc.hub != nil {
		pc.hub.PushPortfolioEvent(portfolio.UserID, gin.H{
			"portfolio_id": portfolio.ID,
			"symbol":       symbol,
			"side":         req.Side,
			"quantity":     req.Quantity,
			"price":        req.Price,
			"holding":      holding,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": holding})
}

// ownedPortfolio loads the portfolio from the path and verifies ownership.
// On failure it writes the response and returns ok=false.
func (pc *PortfolioController) ownedPortfolio(c *gin.Context) (models.Portfolio, bool) {
	var portfolio models.Portfolio

	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return portfolio, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid portfolio ID"})
		return portfolio, false
	}

	if err := pc.db.Preload("Holdings").Where("id = ? AND user_id = ?", id, userID).First(&portfolio).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Portfolio not found"})
		return portfolio, false
	}
	return portfolio, true
}
