package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketpulse/models"
)

// NSEQuoteAPIURL is the NSE India equity quote endpoint
const NSEQuoteAPIURL = "https://www.nseindia.com/api/quote-equity"

// NSEQuoteResponse represents the NSE India API response
type NSEQuoteResponse struct {
	Info struct {
		Symbol string `json:"symbol"`
	} `json:"info"`
	PriceInfo struct {
		LastPrice     float64 `json:"lastPrice"`
		Change        float64 `json:"change"`
		PChange       float64 `json:"pChange"`
		PreviousClose float64 `json:"previousClose"`
		IntraDayHighLow struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"intraDayHighLow"`
	} `json:"priceInfo"`
	SecurityWiseDP struct {
		QuantityTraded int64 `json:"quantityTraded"`
	} `json:"securityWiseDP"`
}

// NSEProvider fetches quotes from the NSE India public API
type NSEProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewNSEProvider creates an NSE India quote provider
func NewNSEProvider() *NSEProvider {
	return &NSEProvider{
		baseURL:    NSEQuoteAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name
func (p *NSEProvider) Name() string { return ProviderNSE }

// FetchQuote fetches the current quote for an NSE symbol
func (p *NSEProvider) FetchQuote(ctx context.Context, providerSymbol string) (*models.MarketQuote, error) {
	reqURL := fmt.Sprintf("%s?symbol=%s", p.baseURL, url.QueryEscape(providerSymbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nse: create request: %w", err)
	}
	// NSE rejects requests without browser-like headers
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.nseindia.com/")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nse: fetch %s: %w", providerSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("nse: fetch %s: status %d", providerSymbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nse: read response: %w", err)
	}

	var parsed NSEQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("nse: parse response: %w", err)
	}
	if parsed.PriceInfo.LastPrice == 0 && parsed.PriceInfo.PreviousClose == 0 {
		return nil, fmt.Errorf("nse: no data for %s", providerSymbol)
	}

	quote := &models.MarketQuote{
		Symbol:        parsed.Info.Symbol,
		Price:         parsed.PriceInfo.LastPrice,
		Volume:        parsed.SecurityWiseDP.QuantityTraded,
		DayHigh:       parsed.PriceInfo.IntraDayHighLow.Max,
		DayLow:        parsed.PriceInfo.IntraDayHighLow.Min,
		PreviousClose: parsed.PriceInfo.PreviousClose,
		Source:        p.Name(),
		Timestamp:     time.Now(),
	}
	FillDerived(quote)
	return quote, nil
}
