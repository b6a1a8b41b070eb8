package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewsArticle is a market news item stored in MongoDB
type NewsArticle struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Summary     string             `bson:"summary" json:"summary"`
	URL         string             `bson:"url" json:"url"`
	Source      string             `bson:"source" json:"source"`
	Category    string             `bson:"category" json:"category"`
	Symbols     []string           `bson:"symbols,omitempty" json:"symbols,omitempty"`
	Sentiment   string             `bson:"sentiment,omitempty" json:"sentiment,omitempty"` // positive, negative, neutral
	PublishedAt time.Time          `bson:"published_at" json:"published_at"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// News category constants
const (
	NewsCategoryMarkets   = "markets"
	NewsCategoryEconomy   = "economy"
	NewsCategoryCompanies = "companies"
	NewsCategoryGlobal    = "global"
)

// ValidNewsCategories returns valid news categories
func ValidNewsCategories() []string {
	return []string{NewsCategoryMarkets, NewsCategoryEconomy, NewsCategoryCompanies, NewsCategoryGlobal}
}

// IsValidNewsCategory checks if the category is valid
func IsValidNewsCategory(category string) bool {
	for _, valid := range ValidNewsCategories() {
		if category == valid {
			return true
		}
	}
	return false
}
