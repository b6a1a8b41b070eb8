package alerts

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"marketpulse/models"
	"marketpulse/services/marketdata"
)

// EqualsEpsilon is the fixed absolute tolerance for the equals condition.
// Absolute rather than relative: at typical price magnitudes a relative
// epsilon would swallow legitimate near-misses.
const EqualsEpsilon = 0.01

// QuoteBatcher resolves a set of symbols in one batch with independent
// per-symbol success or failure.
type QuoteBatcher interface {
	GetBatch(ctx context.Context, symbols []string) map[string]marketdata.BatchResult
}

// Notifier delivers the triggered-alert notification (email). Failures are
// logged by the engine and never undo the trigger transition.
type Notifier interface {
	SendAlertTriggered(ctx context.Context, alert models.Alert, quote *models.MarketQuote) error
}

// Broadcaster pushes a triggered-alert event to the owning user's realtime
// alerts room.
type Broadcaster interface {
	PushAlertTriggered(userID uint, alert models.Alert)
}

// CycleResult summarizes one evaluation cycle
type CycleResult struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
}

// Engine evaluates user alerts against live market data on a fixed interval.
// At most one cycle runs at a time; a tick arriving while a cycle is still
// running is skipped.
type Engine struct {
	store       Store
	quotes      QuoteBatcher
	notifier    Notifier
	broadcaster Broadcaster

	running atomic.Bool
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewEngine creates an alert engine. notifier and broadcaster may be nil,
// in which case the corresponding dispatch is skipped.
func NewEngine(store Store, quotes QuoteBatcher, notifier Notifier, broadcaster Broadcaster) *Engine {
	return &Engine{
		store:       store,
		quotes:      quotes,
		notifier:    notifier,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// RunCycle executes one evaluation cycle. If a previous cycle is still in
// flight the call returns immediately with a zero result.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	if !e.running.CompareAndSwap(false, true) {
		log.Println("alerts: previous cycle still running, skipping tick")
		return res, nil
	}
	defer e.running.Store(false)

	eligible, err := e.store.ListEligible(ctx)
	if err != nil {
		return res, err
	}
	if len(eligible) == 0 {
		// No demand, no upstream load
		return res, nil
	}

	symbols := distinctSymbols(eligible)
	quotes := e.quotes.GetBatch(ctx, symbols)

	for _, alert := range eligible {
		result, ok := quotes[alert.Symbol]
		if !ok || result.Err != nil || result.Quote == nil {
			// No quote this cycle; the alert stays pending and is retried
			// on the next tick.
			continue
		}
		res.Checked++

		observed := observedValue(alert.AlertType, result.Quote)
		if !conditionMet(alert.Condition, observed, alert.TargetValue) {
			if err := e.store.UpdateCurrentValue(ctx, alert.ID, observed); err != nil {
				log.Printf("alerts: %v", err)
			}
			continue
		}

		triggeredAt := e.now()
		won, err := e.store.MarkTriggered(ctx, alert.ID, observed, triggeredAt)
		if err != nil {
			log.Printf("alerts: %v", err)
			continue
		}
		if !won {
			// Already triggered elsewhere; exactly-once dispatch belongs to
			// whoever won the transition.
			continue
		}
		res.Triggered++

		alert.IsTriggered = true
		alert.TriggeredAt = &triggeredAt
		alert.CurrentValue = observed
		e.dispatch(alert, result.Quote)
	}

	return res, nil
}

// dispatch hands the trigger event to email and push delivery. Fire and
// forget: the trigger transition is already durable and is never rolled back.
func (e *Engine) dispatch(alert models.Alert, quote *models.MarketQuote) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if e.notifier != nil {
			if err := e.notifier.SendAlertTriggered(context.Background(), alert, quote); err != nil {
				log.Printf("alerts: notification for alert %d failed: %v", alert.ID, err)
			} else if err := e.store.MarkNotified(context.Background(), alert.ID); err != nil {
				log.Printf("alerts: %v", err)
			}
		}
		if e.broadcaster != nil {
			e.broadcaster.PushAlertTriggered(alert.UserID, alert)
		}
	}()
}

// Drain waits for in-flight notification dispatches, for graceful shutdown
// and deterministic tests.
func (e *Engine) Drain() {
	e.wg.Wait()
}

// SweepExpired deactivates alerts whose expiry has passed. Runs on its own
// coarser schedule, independent of the evaluation cycle guard.
func (e *Engine) SweepExpired(ctx context.Context) error {
	n, err := e.store.DeactivateExpired(ctx, e.now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("alerts: deactivated %d expired alerts", n)
	}
	return nil
}

// observedValue selects the quote field an alert type compares against.
// change_percent compares magnitude only; direction is carried by the
// condition/target pairing.
func observedValue(alertType string, quote *models.MarketQuote) float64 {
	switch alertType {
	case models.AlertTypeVolume:
		return float64(quote.Volume)
	case models.AlertTypeChangePercent:
		return math.Abs(quote.ChangePercent)
	default:
		return quote.Price
	}
}

// conditionMet evaluates a threshold condition against the observed value
func conditionMet(condition string, observed, target float64) bool {
	switch condition {
	case models.ConditionAbove:
		return observed >= target
	case models.ConditionBelow:
		return observed <= target
	case models.ConditionEquals:
		return math.Abs(observed-target) < EqualsEpsilon
	default:
		return false
	}
}

// distinctSymbols collects the unique symbols across eligible alerts
func distinctSymbols(alerts []models.Alert) []string {
	seen := make(map[string]bool, len(alerts))
	symbols := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		if !seen[alert.Symbol] {
			seen[alert.Symbol] = true
			symbols = append(symbols, alert.Symbol)
		}
	}
	return symbols
}
