package controllers

import (
	"net/http"
	"strconv"
	"time"

	"marketpulse/middleware"
	"marketpulse/models"
	"marketpulse/services/alerts"
	"marketpulse/services/marketdata"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AlertController handles alert CRUD requests
type AlertController struct {
	db     *gorm.DB
	engine *alerts.Engine
}

// NewAlertController creates a new alert controller
func NewAlertController(db *gorm.DB, engine *alerts.Engine) *AlertController {
	return &AlertController{db: db, engine: engine}
}

// CreateAlertRequest is the body for the create alert endpoint
type CreateAlertRequest struct {
	Symbol      string     `json:"symbol" binding:"required"`
	AlertType   string     `json:"alertType" binding:"required"`
	Condition   string     `json:"condition" binding:"required"`
	TargetValue float64    `json:"targetValue"`
	Message     string     `json:"message"`
	Priority    string     `json:"priority"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// CreateAlert creates a threshold alert for the authenticated user
// POST /api/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if !models.IsValidAlertType(req.AlertType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert type", "valid": models.ValidAlertTypes()})
		return
	}
	if !models.IsValidAlertCondition(req.Condition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid condition", "valid": models.ValidAlertConditions()})
		return
	}
	if req.TargetValue <= 0 && req.AlertType != models.AlertTypeChangePercent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target value must be positive"})
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.IsValidAlertPriority(req.Priority) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority", "valid": models.ValidAlertPriorities()})
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expiry must be in the future"})
		return
	}

	alert := models.Alert{
		UserID:      userID,
		Symbol:      marketdata.NormalizeSymbol(req.Symbol),
		AlertType:   req.AlertType,
		Condition:   req.Condition,
		TargetValue: req.TargetValue,
		Message:     req.Message,
		IsActive:    true,
		Priority:    req.Priority,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// ListAlerts returns the authenticated user's alerts
// GET /api/alerts?triggered=true&active=true
func (ac *AlertController) ListAlerts(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	query := ac.db.Where("user_id = ?", userID)
	if triggered := c.Query("triggered"); triggered != "" {
		query = query.Where("is_triggered = ?", triggered == "true")
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var alerts []models.Alert
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// GetAlert returns a single alert owned by the authenticated user
// GET /api/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	var alert models.Alert
	if err := ac.db.Where("id = ? AND user_id = ?", id, userID).First(&alert).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeleteAlert deactivates an alert. Rows are kept for trigger history.
// DELETE /api/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	result := ac.db.Model(&models.Alert{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deactivated"})
}

// RunCycle triggers one evaluation cycle out of schedule. If a scheduled
// cycle is already in flight the result is zero.
// POST /api/admin/alerts/run-cycle
func (ac *AlertController) RunCycle(c *gin.Context) {
	result, err := ac.engine.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cycle failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
