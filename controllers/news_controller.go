package controllers

import (
	"log"
	"net/http"
	"strconv"

	"marketpulse/middleware"
	"marketpulse/models"
	"marketpulse/services/news"
	"marketpulse/services/realtime"

	"github.com/gin-gonic/gin"
)

// NewsController handles news feed requests
type NewsController struct {
	news *news.Service
	hub  *realtime.Hub
}

// NewNewsController creates a new news controller
func NewNewsController(newsService *news.Service, hub *realtime.Hub) *NewsController {
	return &NewsController{news: newsService, hub: hub}
}

// ListNews returns recent articles, optionally filtered by category
// GET /api/news?category=markets&limit=20
func (nc *NewsController) ListNews(c *gin.Context) {
	category := c.Query("category")
	if category != "" && !models.IsValidNewsCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category", "valid": models.ValidNewsCategories()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	articles, err := nc.news.List(c.Request.Context(), category, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "News storage not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": articles})
}

// GetCategories returns the categories present in storage
// GET /api/news/categories
func (nc *NewsController) GetCategories(c *gin.Context) {
	categories, err := nc.news.Categories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "News storage not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// IngestRequest is the body for the admin ingest endpoint
type IngestRequest struct {
	Title       string   `json:"title" binding:"required"`
	Summary     string   `json:"summary"`
	URL         string   `json:"url" binding:"required"`
	Source      string   `json:"source" binding:"required"`
	Category    string   `json:"category"`
	Symbols     []string `json:"symbols"`
	Sentiment   string   `json:"sentiment"`
	PublishedAt string   `json:"published_at"`
}

// IngestArticle stores a new article and pushes it to category subscribers
// POST /api/admin/news
func (nc *NewsController) IngestArticle(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.Category == "" {
		req.Category = models.NewsCategoryMarkets
	}
	if !models.IsValidNewsCategory(req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category", "valid": models.ValidNewsCategories()})
		return
	}

	article := models.NewsArticle{
		Title:     req.Title,
		Summary:   req.Summary,
		URL:       req.URL,
		Source:    req.Source,
		Category:  req.Category,
		Symbols:   req.Symbols,
		Sentiment: req.Sentiment,
	}
	if err := nc.news.Save(c.Request.Context(), &article); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to store article"})
		return
	}

	if email, err := middleware.EmailFromContext(c); err == nil {
		log.Printf("news: article %q ingested by %s", article.Title, email)
	}

	if nc.hub != nil {
		nc.hub.PushNews(article)
	}

	c.JSON(http.StatusCreated, gin.H{"data": article})
}
