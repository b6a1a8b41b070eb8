package controllers

import (
	"errors"
	"net/http"

	"marketpulse/models"
	"marketpulse/services/marketdata"

	"github.com/gin-gonic/gin"
)

// MarketController handles market data requests
type MarketController struct {
	quotes *marketdata.Service
}

// NewMarketController creates a new market controller
func NewMarketController(quotes *marketdata.Service) *MarketController {
	return &MarketController{quotes: quotes}
}

// GetQuote returns the latest quote for a symbol
// GET /api/market/quote/:symbol?fresh=true
func (mc *MarketController) GetQuote(c *gin.Context) {
	symbol := marketdata.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	useCache := c.Query("fresh") != "true"
	quote, err := mc.quotes.Get(c.Request.Context(), symbol, useCache)
	if err != nil {
		if errors.Is(err, marketdata.ErrNotAvailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market data not available for " + symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

// BatchQuotesRequest is the body for the batch quote endpoint
type BatchQuotesRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

// GetBatchQuotes resolves multiple symbols in one request. Each symbol
// resolves independently; failures are reported per symbol.
// POST /api/market/quotes
func (mc *MarketController) GetBatchQuotes(c *gin.Context) {
	var req BatchQuotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols array is required"})
		return
	}
	if len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols array is empty"})
		return
	}
	if len(req.Symbols) > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many symbols (max 50)"})
		return
	}

	results := mc.quotes.GetBatch(c.Request.Context(), req.Symbols)

	data := make(map[string]interface{}, len(results))
	for symbol, result := range results {
		if result.Err != nil {
			data[symbol] = gin.H{"status": "unavailable"}
			continue
		}
		data[symbol] = gin.H{"status": "ok", "quote": result.Quote}
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

// GetIndices returns quotes for the tracked market indices
// GET /api/market/indices
func (mc *MarketController) GetIndices(c *gin.Context) {
	results := mc.quotes.GetBatch(c.Request.Context(), models.MarketIndices())

	indices := make([]*models.MarketQuote, 0, len(results))
	for _, symbol := range models.MarketIndices() {
		if result, ok := results[symbol]; ok && result.Err == nil && result.Quote != nil {
			indices = append(indices, result.Quote)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": indices})
}
