package marketdata

import "strings"

// Provider names, in fallback priority order
const (
	ProviderYahoo = "yahoo"
	ProviderNSE   = "nse"
)

// Benchmark index aliases per provider. Everything else is treated as an
// NSE-listed equity.
var indexAliases = map[string]map[string]string{
	ProviderYahoo: {
		"NIFTY":     "^NSEI",
		"SENSEX":    "^BSESN",
		"BANKNIFTY": "^NSEBANK",
	},
	ProviderNSE: {
		"NIFTY":     "NIFTY 50",
		"SENSEX":    "SENSEX",
		"BANKNIFTY": "NIFTY BANK",
	},
}

// NormalizeSymbol canonicalizes a client-supplied symbol. Quotes are keyed by
// the normalized form; provider suffixes never leak into it.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ProviderSymbol maps a normalized symbol to the identifier a provider
// expects. Index aliases map to fixed provider codes; plain equities get the
// default exchange suffix unless they already carry an exchange qualifier.
func ProviderSymbol(provider, symbol string) string {
	if alias, ok := indexAliases[provider][symbol]; ok {
		return alias
	}
	if provider == ProviderYahoo && !strings.Contains(symbol, ".") {
		return symbol + ".NS"
	}
	return symbol
}
