package marketdata

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"marketpulse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cache defaults
const (
	DefaultCacheTTL     = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

type cacheEntry struct {
	quote     models.MarketQuote
	fetchedAt time.Time
}

// Service is the market data cache. Lookup order: in-memory cache, durable
// store, provider chain. Every successful upstream fetch is written through to
// both the store and the memory cache. If everything fails but a stale memory
// entry exists, the stale entry is returned instead of an error.
type Service struct {
	db        *gorm.DB
	providers []QuoteProvider

	ttl          time.Duration
	fetchTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	now func() time.Time
}

// BatchResult is one symbol's outcome in a batch fetch. Exactly one of Quote
// and Err is set.
type BatchResult struct {
	Quote *models.MarketQuote
	Err   error
}

// NewService creates a market data cache backed by the given durable store
// and upstream providers, tried in order.
func NewService(db *gorm.DB, providers []QuoteProvider) *Service {
	return &Service{
		db:           db,
		providers:    providers,
		ttl:          DefaultCacheTTL,
		fetchTimeout: DefaultFetchTimeout,
		entries:      make(map[string]cacheEntry),
		now:          time.Now,
	}
}

// SetTTL overrides the cache TTL
func (s *Service) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// SetFetchTimeout overrides the per-upstream-call timeout
func (s *Service) SetFetchTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.fetchTimeout = timeout
	}
}

// Get resolves a single symbol. With useCache=false the memory cache and the
// store are bypassed and the provider chain is consulted directly.
func (s *Service) Get(ctx context.Context, symbol string, useCache bool) (*models.MarketQuote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNotAvailable)
	}

	if useCache {
		if q, ok := s.cached(symbol); ok {
			return q, nil
		}
		if q, ok := s.fromStore(symbol); ok {
			s.remember(q)
			return q, nil
		}
	}

	quote, err := s.fetchUpstream(ctx, symbol)
	if err == nil {
		s.persist(quote)
		s.remember(quote)
		return quote, nil
	}

	// Graceful degradation: a stale entry beats no data at all
	if q, ok := s.cachedStale(symbol); ok {
		log.Printf("marketdata: all sources failed for %s, serving stale quote: %v", symbol, err)
		return q, nil
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrNotAvailable, symbol, err)
}

// GetBatch resolves many symbols concurrently. Each entry succeeds or fails
// independently; one slow or failing symbol never blocks the others.
func (s *Service) GetBatch(ctx context.Context, symbols []string) map[string]BatchResult {
	results := make(map[string]BatchResult, len(symbols))
	seen := make(map[string]bool, len(symbols))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, raw := range symbols {
		symbol := NormalizeSymbol(raw)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			quote, err := s.Get(ctx, symbol, true)
			mu.Lock()
			results[symbol] = BatchResult{Quote: quote, Err: err}
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

// cached returns a fresh memory entry, if any
func (s *Service) cached(symbol string) (*models.MarketQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[symbol]
	if !ok || s.now().Sub(entry.fetchedAt) >= s.ttl {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

// cachedStale returns a memory entry regardless of age
func (s *Service) cachedStale(symbol string) (*models.MarketQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[symbol]
	if !ok {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

// fromStore reads the durable store, honoring the same TTL window
func (s *Service) fromStore(symbol string) (*models.MarketQuote, bool) {
	if s.db == nil {
		return nil, false
	}
	var quote models.MarketQuote
	err := s.db.Where("symbol = ?", symbol).First(&quote).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("marketdata: store read failed for %s: %v", symbol, err)
		}
		return nil, false
	}
	if s.now().Sub(quote.Timestamp) >= s.ttl {
		return nil, false
	}
	return &quote, true
}

// fetchUpstream walks the provider chain, stopping at the first success.
// Each call carries its own timeout so a hung provider cannot stall the
// fallback.
func (s *Service) fetchUpstream(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	var lastErr error
	for _, provider := range s.providers {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		quote, err := provider.FetchQuote(fetchCtx, ProviderSymbol(provider.Name(), symbol))
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		quote.Symbol = symbol
		quote.Source = provider.Name()
		return quote, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, lastErr
}

// remember stores a quote in the memory cache
func (s *Service) remember(quote *models.MarketQuote) {
	s.mu.Lock()
	s.entries[quote.Symbol] = cacheEntry{quote: *quote, fetchedAt: s.now()}
	s.mu.Unlock()
}

// persist upserts a quote into the durable store. Store failures are logged
// and never bubble up to the caller.
func (s *Service) persist(quote *models.MarketQuote) {
	if s.db == nil {
		return
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "change", "change_percent", "volume",
			"day_high", "day_low", "previous_close", "market_cap",
			"source", "timestamp", "updated_at",
		}),
	}).Create(quote).Error
	if err != nil {
		log.Printf("marketdata: persist failed for %s: %v", quote.Symbol, err)
	}
}

// CachedSymbols returns the symbols currently held in the memory cache
func (s *Service) CachedSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make([]string, 0, len(s.entries))
	for symbol := range s.entries {
		symbols = append(symbols, symbol)
	}
	return symbols
}
