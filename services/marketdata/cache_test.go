package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketpulse/models"
)

// fakeProvider is a scripted upstream source
type fakeProvider struct {
	name  string
	mu    sync.Mutex
	calls int
	quote *models.MarketQuote
	err   error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchQuote(ctx context.Context, providerSymbol string) (*models.MarketQuote, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	q := *p.quote
	return &q, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestQuote(symbol string, price float64) *models.MarketQuote {
	return &models.MarketQuote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: price - 5,
		Timestamp:     time.Now(),
	}
}

func TestGetCachesWithinTTL(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, quote: newTestQuote("RELIANCE", 2500)}
	svc := NewService(nil, []QuoteProvider{provider})

	for i := 0; i < 3; i++ {
		quote, err := svc.Get(context.Background(), "RELIANCE", true)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if quote.Price != 2500 {
			t.Fatalf("expected price 2500, got %v", quote.Price)
		}
	}

	if provider.callCount() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", provider.callCount())
	}
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, quote: newTestQuote("RELIANCE", 2500)}
	svc := NewService(nil, []QuoteProvider{provider})

	current := time.Now()
	svc.now = func() time.Time { return current }

	if _, err := svc.Get(context.Background(), "RELIANCE", true); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	current = current.Add(61 * time.Second)
	if _, err := svc.Get(context.Background(), "RELIANCE", true); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if provider.callCount() != 2 {
		t.Fatalf("expected 2 upstream calls after TTL expiry, got %d", provider.callCount())
	}
}

func TestGetFreshBypassesCache(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, quote: newTestQuote("TCS", 3900)}
	svc := NewService(nil, []QuoteProvider{provider})

	if _, err := svc.Get(context.Background(), "TCS", true); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), "TCS", false); err != nil {
		t.Fatalf("fresh Get failed: %v", err)
	}

	if provider.callCount() != 2 {
		t.Fatalf("expected fresh lookup to hit upstream, got %d calls", provider.callCount())
	}
}

func TestGetFallsBackToSecondaryProvider(t *testing.T) {
	primary := &fakeProvider{name: ProviderYahoo, err: errors.New("rate limited")}
	secondary := &fakeProvider{name: ProviderNSE, quote: newTestQuote("INFY", 1450)}
	svc := NewService(nil, []QuoteProvider{primary, secondary})

	quote, err := svc.Get(context.Background(), "INFY", true)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if quote.Source != ProviderNSE {
		t.Fatalf("expected source %q, got %q", ProviderNSE, quote.Source)
	}
	if primary.callCount() != 1 {
		t.Fatalf("primary should be tried first, got %d calls", primary.callCount())
	}
}

func TestGetServesStaleOnTotalFailure(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, quote: newTestQuote("SBIN", 600)}
	svc := NewService(nil, []QuoteProvider{provider})

	current := time.Now()
	svc.now = func() time.Time { return current }

	if _, err := svc.Get(context.Background(), "SBIN", true); err != nil {
		t.Fatalf("seed Get failed: %v", err)
	}

	// Entry goes stale and the provider starts failing
	current = current.Add(10 * time.Minute)
	provider.err = errors.New("upstream down")

	quote, err := svc.Get(context.Background(), "SBIN", true)
	if err != nil {
		t.Fatalf("expected stale quote, got error: %v", err)
	}
	if quote.Price != 600 {
		t.Fatalf("expected stale price 600, got %v", quote.Price)
	}
}

func TestGetReturnsNotAvailable(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, err: errors.New("upstream down")}
	svc := NewService(nil, []QuoteProvider{provider})

	_, err := svc.Get(context.Background(), "UNKNOWN", true)
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}

func TestGetBatchPartialFailure(t *testing.T) {
	good := newTestQuote("HDFCBANK", 1650)
	provider := &scriptedProvider{quotes: map[string]*models.MarketQuote{
		"HDFCBANK.NS": good,
	}}
	svc := NewService(nil, []QuoteProvider{provider})

	results := svc.GetBatch(context.Background(), []string{"HDFCBANK", "BADSYM"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["HDFCBANK"].Err != nil {
		t.Fatalf("HDFCBANK should succeed: %v", results["HDFCBANK"].Err)
	}
	if results["HDFCBANK"].Quote.Price != 1650 {
		t.Fatalf("expected price 1650, got %v", results["HDFCBANK"].Quote.Price)
	}
	if results["BADSYM"].Err == nil {
		t.Fatal("BADSYM should fail")
	}
	if !errors.Is(results["BADSYM"].Err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable for BADSYM, got %v", results["BADSYM"].Err)
	}
}

func TestGetBatchDeduplicatesSymbols(t *testing.T) {
	provider := &fakeProvider{name: ProviderYahoo, quote: newTestQuote("ITC", 440)}
	svc := NewService(nil, []QuoteProvider{provider})

	results := svc.GetBatch(context.Background(), []string{"ITC", "itc", " ITC "})

	if len(results) != 1 {
		t.Fatalf("expected deduplicated single result, got %d", len(results))
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", provider.callCount())
	}
}

// scriptedProvider resolves only the symbols it was given
type scriptedProvider struct {
	quotes map[string]*models.MarketQuote
}

func (p *scriptedProvider) Name() string { return ProviderYahoo }

func (p *scriptedProvider) FetchQuote(ctx context.Context, providerSymbol string) (*models.MarketQuote, error) {
	if q, ok := p.quotes[providerSymbol]; ok {
		copied := *q
		return &copied, nil
	}
	return nil, errors.New("symbol not found")
}
