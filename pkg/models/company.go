// Package models defines the core data structures used throughout stockbrief.
package models

import (
	"regexp"
	"strings"
)

// CompanyQuery is the free-text company name supplied with one request.
type CompanyQuery struct {
	Name string `json:"company_name"`
}

// Trimmed returns the name without surrounding whitespace.
func (q CompanyQuery) Trimmed() string {
	return strings.TrimSpace(q.Name)
}

// IsEmpty reports whether the name is empty or whitespace only.
func (q CompanyQuery) IsEmpty() bool {
	return q.Trimmed() == ""
}

// Ticker is an upper-case security symbol, optionally with an exchange
// suffix (e.g., "AAPL", "VOD.L", "RELIANCE.NS", "^GSPC", "EURUSD=X").
type Ticker string

// tickerPattern is the accepted shape of a resolved symbol.
var tickerPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9&-]{0,11}(\.[A-Z]{1,4}|=[A-Z])?$`)

// Valid reports whether t has the shape of a ticker symbol.
// It does not check that the symbol is listed anywhere.
func (t Ticker) Valid() bool {
	return tickerPattern.MatchString(string(t))
}

// Exchange returns the exchange suffix without the dot ("L", "NS"), or "".
func (t Ticker) Exchange() string {
	s := string(t)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func (t Ticker) String() string {
	return string(t)
}
