package news

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"marketpulse/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ArticlesCollection = "news_articles"

	DefaultListLimit = 20
	MaxListLimit     = 100

	opTimeout = 10 * time.Second
)

// Service stores and serves news articles from MongoDB. When no Mongo URI
// is configured the service stays disconnected and every operation reports
// it, so the rest of the app keeps running without news.
type Service struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	lastError   string
}

// NewService creates an unconnected news service
func NewService() *Service {
	return &Service{}
}

// Connect establishes the MongoDB connection and creates indexes
func (s *Service) Connect(mongoURI, dbName string) error {
	if mongoURI == "" {
		s.mu.Lock()
		s.lastError = "mongo URI not configured"
		s.mu.Unlock()
		log.Println("news: mongo URI not set, news storage disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		s.setError(fmt.Sprintf("failed to connect: %v", err))
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		s.setError(fmt.Sprintf("failed to ping: %v", err))
		client.Disconnect(ctx)
		return err
	}

	s.mu.Lock()
	s.client = client
	s.database = client.Database(dbName)
	s.isConnected = true
	s.lastError = ""
	s.mu.Unlock()

	s.createIndexes()
	log.Println("news: MongoDB connected")
	return nil
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	log.Printf("news: %s", msg)
}

// IsConnected reports whether article storage is available
func (s *Service) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// ConnectionStatus returns connection details for the ops endpoint
func (s *Service) ConnectionStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := map[string]interface{}{
		"connected": s.isConnected,
	}
	if s.lastError != "" {
		status["error"] = s.lastError
	}
	return status
}

// Close disconnects from MongoDB
func (s *Service) Close() error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}
	return nil
}

func (s *Service) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := s.database.Collection(ArticlesCollection)
	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "published_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "published_at", Value: -1}}},
	})
}

func (s *Service) collection() (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isConnected {
		return nil, fmt.Errorf("news storage not available")
	}
	return s.database.Collection(ArticlesCollection), nil
}

// Save inserts a new article and fills in its generated ID
func (s *Service) Save(ctx context.Context, article *models.NewsArticle) error {
	collection, err := s.collection()
	if err != nil {
		return err
	}

	if article.Category == "" {
		article.Category = models.NewsCategoryMarkets
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = time.Now()
	}
	article.CreatedAt = time.Now()

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := collection.InsertOne(opCtx, article)
	if err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		article.ID = oid
	}
	return nil
}

// List returns the most recent articles, newest first. An empty category
// means all categories.
func (s *Service) List(ctx context.Context, category string, limit int) ([]models.NewsArticle, error) {
	collection, err := s.collection()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(opCtx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer cursor.Close(opCtx)

	articles := make([]models.NewsArticle, 0, limit)
	for cursor.Next(opCtx) {
		var article models.NewsArticle
		if err := cursor.Decode(&article); err != nil {
			continue
		}
		articles = append(articles, article)
	}
	return articles, cursor.Err()
}

// Categories returns the distinct categories present in storage
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	collection, err := s.collection()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	values, err := collection.Distinct(opCtx, "category", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]string, 0, len(values))
	for _, v := range values {
		if category, ok := v.(string); ok {
			categories = append(categories, category)
		}
	}
	return categories, nil
}

// Count returns the number of stored articles
func (s *Service) Count(ctx context.Context) (int64, error) {
	collection, err := s.collection()
	if err != nil {
		return 0, err
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return collection.CountDocuments(opCtx, bson.M{})
}
