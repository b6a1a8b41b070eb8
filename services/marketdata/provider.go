package marketdata

import (
	"context"
	"errors"

	"marketpulse/models"
)

// ErrNotAvailable is returned when no data source (cache, store, providers)
// can produce a quote for a symbol.
var ErrNotAvailable = errors.New("market data not available")

// QuoteProvider fetches a single quote from an upstream source. Providers
// receive their own provider-specific symbol (see ProviderSymbol).
type QuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, providerSymbol string) (*models.MarketQuote, error)
}

// FillDerived recomputes the change fields from price and previous close so
// stored quotes always satisfy change == price - previousClose regardless of
// what the upstream payload claimed.
func FillDerived(q *models.MarketQuote) {
	q.Change = q.Price - q.PreviousClose
	if q.PreviousClose != 0 {
		q.ChangePercent = q.Change / q.PreviousClose * 100
	} else {
		q.ChangePercent = 0
	}
}
