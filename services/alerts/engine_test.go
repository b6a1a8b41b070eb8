package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketpulse/models"
	"marketpulse/services/marketdata"
)

// memStore is an in-memory alert store
type memStore struct {
	mu     sync.Mutex
	alerts map[uint]*models.Alert
}

func newMemStore(alerts ...models.Alert) *memStore {
	s := &memStore{alerts: make(map[uint]*models.Alert)}
	for i := range alerts {
		a := alerts[i]
		s.alerts[a.ID] = &a
	}
	return s
}

func (s *memStore) ListEligible(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.IsEligible(time.Now()) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) MarkTriggered(ctx context.Context, id uint, observed float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.IsTriggered {
		return false, nil
	}
	a.IsTriggered = true
	a.TriggeredAt = &at
	a.CurrentValue = observed
	return true, nil
}

func (s *memStore) UpdateCurrentValue(ctx context.Context, id uint, observed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok && !a.IsTriggered {
		a.CurrentValue = observed
	}
	return nil
}

func (s *memStore) MarkNotified(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		a.NotificationSent = true
	}
	return nil
}

func (s *memStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.alerts {
		if a.IsActive && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			a.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) get(id uint) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

// fakeBatcher serves quotes from a fixed map and counts calls
type fakeBatcher struct {
	mu     sync.Mutex
	calls  int
	quotes map[string]*models.MarketQuote
	block  chan struct{} // if set, GetBatch blocks until closed
}

func (b *fakeBatcher) GetBatch(ctx context.Context, symbols []string) map[string]marketdata.BatchResult {
	b.mu.Lock()
	b.calls++
	block := b.block
	b.mu.Unlock()
	if block != nil {
		<-block
	}

	results := make(map[string]marketdata.BatchResult)
	for _, symbol := range symbols {
		if q, ok := b.quotes[symbol]; ok {
			copied := *q
			results[symbol] = marketdata.BatchResult{Quote: &copied}
		} else {
			results[symbol] = marketdata.BatchResult{Err: errors.New("not available")}
		}
	}
	return results
}

func (b *fakeBatcher) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// recordingNotifier counts deliveries and can fail on demand
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []uint
	fails bool
}

func (n *recordingNotifier) SendAlertTriggered(ctx context.Context, alert models.Alert, quote *models.MarketQuote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, alert.ID)
	return nil
}

func (n *recordingNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// recordingBroadcaster captures realtime pushes
type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes []models.Alert
}

func (b *recordingBroadcaster) PushAlertTriggered(userID uint, alert models.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, alert)
}

func (b *recordingBroadcaster) pushCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pushes)
}

func priceAlert(id, userID uint, symbol, condition string, target float64) models.Alert {
	return models.Alert{
		ID:          id,
		UserID:      userID,
		Symbol:      symbol,
		AlertType:   models.AlertTypePrice,
		Condition:   condition,
		TargetValue: target,
		IsActive:    true,
	}
}

func TestRunCycleTriggersOnSecondPass(t *testing.T) {
	store := newMemStore(priceAlert(1, 7, "NIFTY", models.ConditionAbove, 20000))
	batcher := &fakeBatcher{quotes: map[string]*models.MarketQuote{
		"NIFTY": {Symbol: "NIFTY", Price: 19800},
	}}
	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	engine := NewEngine(store, batcher, notifier, broadcaster)

	// First cycle: below target, no trigger, observed value recorded
	res, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.Checked != 1 || res.Triggered != 0 {
		t.Fatalf("expected checked=1 triggered=0, got %+v", res)
	}
	if got := store.get(1); got.IsTriggered || got.CurrentValue != 19800 {
		t.Fatalf("unexpected alert state after first cycle: %+v", got)
	}

	// Price crosses, second cycle triggers exactly once
	batcher.quotes["NIFTY"].Price = 20050
	res, err = engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.Triggered != 1 {
		t.Fatalf("expected 1 trigger, got %+v", res)
	}
	engine.Drain()

	got := store.get(1)
	if !got.IsTriggered || got.TriggeredAt == nil {
		t.Fatalf("alert should be triggered: %+v", got)
	}
	if got.CurrentValue != 20050 {
		t.Fatalf("expected observed value 20050, got %v", got.CurrentValue)
	}
	if !got.NotificationSent {
		t.Fatal("notification should be marked sent")
	}
	if notifier.sentCount() != 1 || broadcaster.pushCount() != 1 {
		t.Fatalf("expected single dispatch, got notify=%d push=%d", notifier.sentCount(), broadcaster.pushCount())
	}

	// Third cycle: alert is terminal, nothing eligible
	res, err = engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.Checked != 0 || res.Triggered != 0 {
		t.Fatalf("triggered alert must not be re-evaluated, got %+v", res)
	}
}

func TestRunCycleNoEligibleSkipsBatch(t *testing.T) {
	store := newMemStore()
	batcher := &fakeBatcher{quotes: map[string]*models.MarketQuote{}}
	engine := NewEngine(store, batcher, nil, nil)

	res, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if res.Checked != 0 || res.Triggered != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if batcher.callCount() != 0 {
		t.Fatal("no eligible alerts must mean no upstream call")
	}
}

func TestRunCycleSkipsUnresolvedSymbols(t *testing.T) {
	store := newMemStore(
		priceAlert(1, 7, "NIFTY", models.ConditionAbove, 1),
		priceAlert(2, 7, "MISSING", models.ConditionAbove, 1),
	)
	batcher := &fakeBatcher{quotes: map[string]*models.MarketQuote{
		"NIFTY": {Symbol: "NIFTY", Price: 100},
	}}
	engine := NewEngine(store, batcher, nil, nil)

	res, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	engine.Drain()

	if res.Checked != 1 || res.Triggered != 1 {
		t.Fatalf("only the resolved symbol should count, got %+v", res)
	}
	if got := store.get(2); got.IsTriggered {
		t.Fatal("alert with missing quote must stay pending")
	}
}

func TestRunCycleOverlapSkipped(t *testing.T) {
	store := newMemStore(priceAlert(1, 7, "NIFTY", models.ConditionAbove, 1))
	block := make(chan struct{})
	batcher := &fakeBatcher{
		quotes: map[string]*models.MarketQuote{"NIFTY": {Symbol: "NIFTY", Price: 100}},
		block:  block,
	}
	engine := NewEngine(store, batcher, nil, nil)

	done := make(chan CycleResult, 1)
	go func() {
		res, _ := engine.RunCycle(context.Background())
		done <- res
	}()

	// Wait for the first cycle to be inside GetBatch
	for batcher.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Overlapping tick is a no-op
	res, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("overlapping cycle errored: %v", err)
	}
	if res.Checked != 0 || res.Triggered != 0 {
		t.Fatalf("overlapping cycle should be skipped, got %+v", res)
	}

	close(block)
	first := <-done
	engine.Drain()

	if first.Triggered != 1 {
		t.Fatalf("first cycle should have triggered, got %+v", first)
	}
	if batcher.callCount() != 1 {
		t.Fatalf("expected single batch call, got %d", batcher.callCount())
	}
}

func TestRunCycleNotificationFailureKeepsTrigger(t *testing.T) {
	store := newMemStore(priceAlert(1, 7, "NIFTY", models.ConditionAbove, 1))
	batcher := &fakeBatcher{quotes: map[string]*models.MarketQuote{
		"NIFTY": {Symbol: "NIFTY", Price: 100},
	}}
	notifier := &recordingNotifier{fails: true}
	broadcaster := &recordingBroadcaster{}
	engine := NewEngine(store, batcher, notifier, broadcaster)

	res, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	engine.Drain()

	if res.Triggered != 1 {
		t.Fatalf("expected trigger despite notify failure, got %+v", res)
	}
	got := store.get(1)
	if !got.IsTriggered {
		t.Fatal("trigger must not be rolled back on notification failure")
	}
	if got.NotificationSent {
		t.Fatal("failed notification must not be marked sent")
	}
	if broadcaster.pushCount() != 1 {
		t.Fatal("realtime push should still happen after notify failure")
	}
}

func TestConditionMet(t *testing.T) {
	cases := []struct {
		condition string
		observed  float64
		target    float64
		want      bool
	}{
		{models.ConditionAbove, 100, 100, true},
		{models.ConditionAbove, 99.99, 100, false},
		{models.ConditionBelow, 100, 100, true},
		{models.ConditionBelow, 100.01, 100, false},
		{models.ConditionEquals, 100.005, 100, true},
		{models.ConditionEquals, 100.02, 100, false},
		{models.ConditionEquals, 99.995, 100, true},
		{"bogus", 100, 100, false},
	}
	for _, tc := range cases {
		if got := conditionMet(tc.condition, tc.observed, tc.target); got != tc.want {
			t.Errorf("conditionMet(%q, %v, %v) = %v, want %v", tc.condition, tc.observed, tc.target, got, tc.want)
		}
	}
}

func TestObservedValue(t *testing.T) {
	quote := &models.MarketQuote{Price: 250, Volume: 1200000, ChangePercent: -3.5}

	if got := observedValue(models.AlertTypePrice, quote); got != 250 {
		t.Errorf("price: got %v", got)
	}
	if got := observedValue(models.AlertTypeVolume, quote); got != 1200000 {
		t.Errorf("volume: got %v", got)
	}
	// Magnitude only: a 3.5% drop satisfies a 3% move alert
	if got := observedValue(models.AlertTypeChangePercent, quote); got != 3.5 {
		t.Errorf("change_percent: got %v", got)
	}
}

func TestSweepExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := priceAlert(1, 7, "NIFTY", models.ConditionAbove, 1)
	expired.ExpiresAt = &past
	live := priceAlert(2, 7, "SENSEX", models.ConditionAbove, 1)
	live.ExpiresAt = &future

	store := newMemStore(expired, live)
	engine := NewEngine(store, &fakeBatcher{}, nil, nil)

	if err := engine.SweepExpired(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if store.get(1).IsActive {
		t.Fatal("expired alert should be deactivated")
	}
	if !store.get(2).IsActive {
		t.Fatal("unexpired alert should stay active")
	}
}
