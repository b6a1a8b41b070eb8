package marketdata

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		" nifty ":   "NIFTY",
		"reliance":  "RELIANCE",
		"SENSEX":    "SENSEX",
		"  tcs.ns ": "TCS.NS",
	}
	for input, want := range cases {
		if got := NormalizeSymbol(input); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestProviderSymbolIndexAliases(t *testing.T) {
	cases := []struct {
		provider string
		symbol   string
		want     string
	}{
		{ProviderYahoo, "NIFTY", "^NSEI"},
		{ProviderYahoo, "SENSEX", "^BSESN"},
		{ProviderYahoo, "BANKNIFTY", "^NSEBANK"},
		{ProviderNSE, "NIFTY", "NIFTY 50"},
		{ProviderNSE, "SENSEX", "SENSEX"},
		{ProviderNSE, "BANKNIFTY", "NIFTY BANK"},
	}
	for _, tc := range cases {
		if got := ProviderSymbol(tc.provider, tc.symbol); got != tc.want {
			t.Errorf("ProviderSymbol(%q, %q) = %q, want %q", tc.provider, tc.symbol, got, tc.want)
		}
	}
}

func TestProviderSymbolEquitySuffix(t *testing.T) {
	if got := ProviderSymbol(ProviderYahoo, "RELIANCE"); got != "RELIANCE.NS" {
		t.Errorf("expected RELIANCE.NS, got %q", got)
	}
	// Already-qualified symbols keep their suffix
	if got := ProviderSymbol(ProviderYahoo, "TATASTEEL.BO"); got != "TATASTEEL.BO" {
		t.Errorf("expected TATASTEEL.BO unchanged, got %q", got)
	}
	// NSE uses plain symbols for equities
	if got := ProviderSymbol(ProviderNSE, "RELIANCE"); got != "RELIANCE" {
		t.Errorf("expected RELIANCE unchanged for NSE, got %q", got)
	}
}
