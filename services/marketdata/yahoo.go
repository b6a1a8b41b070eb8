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

// YahooQuoteAPIURL is the Yahoo Finance realtime quote endpoint
const YahooQuoteAPIURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// YahooQuoteResponse represents the Yahoo Finance API response
type YahooQuoteResponse struct {
	QuoteResponse struct {
		Result []YahooQuoteData `json:"result"`
		Error  *YahooAPIError   `json:"error"`
	} `json:"quoteResponse"`
}

// YahooAPIError is the error object embedded in Yahoo responses
type YahooAPIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// YahooQuoteData represents a single quote from Yahoo Finance
type YahooQuoteData struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	MarketCap                  float64 `json:"marketCap"`
	RegularMarketTime          int64   `json:"regularMarketTime"`
}

// YahooProvider fetches quotes from Yahoo Finance
type YahooProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewYahooProvider creates a Yahoo Finance quote provider
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL:    YahooQuoteAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string { return ProviderYahoo }

// FetchQuote fetches the current quote for a Yahoo symbol
func (p *YahooProvider) FetchQuote(ctx context.Context, providerSymbol string) (*models.MarketQuote, error) {
	reqURL := fmt.Sprintf("%s?symbols=%s", p.baseURL, url.QueryEscape(providerSymbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; marketpulse/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: fetch %s: %w", providerSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("yahoo: fetch %s: status %d", providerSymbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo: read response: %w", err)
	}

	var parsed YahooQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("yahoo: parse response: %w", err)
	}
	if parsed.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo: api error: %s", parsed.QuoteResponse.Error.Description)
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no data for %s", providerSymbol)
	}

	data := parsed.QuoteResponse.Result[0]
	quote := &models.MarketQuote{
		Symbol:        data.Symbol,
		Price:         data.RegularMarketPrice,
		Volume:        data.RegularMarketVolume,
		DayHigh:       data.RegularMarketDayHigh,
		DayLow:        data.RegularMarketDayLow,
		PreviousClose: data.RegularMarketPreviousClose,
		MarketCap:     data.MarketCap,
		Source:        p.Name(),
		Timestamp:     time.Now(),
	}
	FillDerived(quote)
	return quote, nil
}
