package utils

import (
	"errors"
	"strings"
	"unicode"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// ErrMalformedTicker is returned when a model reply does not contain exactly
// one symbol-shaped token.
var ErrMalformedTicker = errors.New("utils: reply is not a single ticker symbol")

// Index names a model sometimes answers with instead of the Yahoo symbol.
var indexSymbols = map[string]string{
	"NIFTY":      "^NSEI",
	"NIFTY50":    "^NSEI",
	"NIFTY 50":   "^NSEI",
	"BANKNIFTY":  "^NSEBANK",
	"NIFTY BANK": "^NSEBANK",
	"SENSEX":     "^BSESN",
	"FTSE":       "^FTSE",
	"FTSE 100":   "^FTSE",
	"DAX":        "^GDAXI",
	"NIKKEI":     "^N225",
	"NIKKEI 225": "^N225",
	"S&P 500":    "^GSPC",
	"SPX":        "^GSPC",
	"DOW JONES":  "^DJI",
	"NASDAQ":     "^IXIC",
}

// Upper-case words that show up around the symbol ("NASDAQ: AAPL", "I think").
var noiseWords = map[string]bool{
	"NASDAQ": true, "NYSE": true, "LSE": true, "NSE": true, "BSE": true,
	"TSX": true, "ASX": true, "AMEX": true, "OTC": true, "ADR": true,
	"I": true, "A": true, "OR": true, "AND": true,
}

// Whole-reply answers that mean the model found no symbol.
var refusalReplies = map[string]bool{
	"N/A": true, "N.A": true, "NA": true, "NONE": true, "NULL": true, "NIL": true,
	"UNKNOWN": true, "NOT FOUND": true, "NOT AVAILABLE": true, "NOT APPLICABLE": true,
}

const wrapChars = "\"'`*_“”‘’"

// NormalizeTicker trims user input down to an upper-case symbol:
// whitespace, wrapping quotes, backticks, asterisks, a leading "$" and a
// trailing sentence period are removed. Well-known index names map to their
// Yahoo symbol ("NIFTY" becomes "^NSEI").
func NormalizeTicker(ticker string) string {
	ticker = cleanTicker(ticker)
	if sym, ok := indexSymbols[ticker]; ok {
		return sym
	}
	return ticker
}

func cleanTicker(ticker string) string {
	ticker = strings.TrimSpace(ticker)
	ticker = strings.TrimSuffix(ticker, ".")
	ticker = strings.Trim(ticker, wrapChars)
	ticker = strings.TrimSuffix(ticker, ".")
	ticker = strings.TrimPrefix(strings.TrimSpace(ticker), "$")
	return strings.ToUpper(ticker)
}

// ExtractTicker pulls a single ticker symbol out of a free-text model reply.
//
// A one-token reply is cleaned and shape-checked. A longer reply (the
// model ignored "just the symbol") is scanned for tokens written without
// lowercase letters; exactly one of them must be a valid symbol.
// Refusals such as "N/A" or "UNKNOWN" and bare exchange or index names are
// rejected. Index names are not mapped here: the model was asked for a
// company's symbol.
func ExtractTicker(reply string) (models.Ticker, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrMalformedTicker
	}

	whole := cleanTicker(reply)
	if refusalReplies[whole] || noiseWords[whole] || indexSymbols[whole] != "" {
		return "", ErrMalformedTicker
	}
	if sym := models.Ticker(whole); sym.Valid() {
		return sym, nil
	}

	var found models.Ticker
	seen := 0
	for _, tok := range strings.FieldsFunc(reply, isTokenSeparator) {
		word := strings.Trim(tok, wrapChars+".")
		if hasLower(tok) || noiseWords[word] || refusalReplies[word] {
			continue
		}
		sym := models.Ticker(cleanTicker(tok))
		if !sym.Valid() || sym == found {
			continue
		}
		found = sym
		seen++
	}
	if seen != 1 {
		return "", ErrMalformedTicker
	}
	return found, nil
}

// ToYahooSymbol maps a plain NSE/BSE code to Yahoo's suffixed form.
// Symbols that already carry a suffix or are indices pass through.
func ToYahooSymbol(ticker string, exchange string) string {
	ticker = NormalizeTicker(ticker)
	if strings.HasPrefix(ticker, "^") || strings.ContainsAny(ticker, ".=") {
		return ticker
	}
	switch strings.ToUpper(exchange) {
	case "NSE":
		return ticker + ".NS"
	case "BSE":
		return ticker + ".BO"
	case "LSE":
		return ticker + ".L"
	}
	return ticker
}

func isTokenSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ',', ';', ':', '(', ')', '[', ']', '|':
		return true
	}
	return false
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}
