package datasource

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// EquityGetter fetches a quote for one symbol. equity.Get satisfies it.
type EquityGetter func(symbol string) (*finance.Equity, error)

// Equity is a secondary InfoSource backed by finance-go's quote endpoint.
// It only knows a subset of the summary keys.
type Equity struct {
	get EquityGetter
}

// EquityOption configures the Equity source.
type EquityOption func(*Equity)

// WithEquityGetter replaces the upstream call.
func WithEquityGetter(fn EquityGetter) EquityOption {
	return func(e *Equity) { e.get = fn }
}

// NewEquity creates the finance-go source.
func NewEquity(opts ...EquityOption) *Equity {
	e := &Equity{get: equity.Get}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the data source name.
func (e *Equity) Name() string { return "finance-go" }

// GetInfo returns the keys finance-go can supply for ticker.
func (e *Equity) GetInfo(ctx context.Context, ticker models.Ticker) (models.Info, error) {
	type result struct {
		q   *finance.Equity
		err error
	}
	// finance-go has no context support; the buffered channel lets the
	// goroutine finish after we stop waiting.
	ch := make(chan result, 1)
	go func() {
		q, err := e.get(string(ticker))
		ch <- result{q, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("equity %s: %w", ticker, r.err)
	}
	if r.q == nil {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	info := equityInfo(r.q)
	if len(info) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}
	return info, nil
}

// equityInfo maps finance-go fields onto summary keys. Zero means unknown.
func equityInfo(q *finance.Equity) models.Info {
	info := models.Info{}
	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	if name != "" {
		info["longName"] = name
	}

	setNumber(info, "marketCap", q.MarketCap)
	setNumber(info, "sharesOutstanding", int64(q.SharesOutstanding))
	setNumber(info, "trailingPE", q.TrailingPE)
	setNumber(info, "forwardPE", q.ForwardPE)
	setNumber(info, "priceToBook", q.PriceToBook)
	setNumber(info, "bookValue", q.BookValue)
	setNumber(info, "trailingEps", q.EpsTrailingTwelveMonths)
	setNumber(info, "forwardEps", q.EpsForward)
	setNumber(info, "dividendRate", q.TrailingAnnualDividendRate)
	setNumber(info, "dividendYield", q.TrailingAnnualDividendYield)
	setNumber(info, "fiftyTwoWeekHigh", q.FiftyTwoWeekHigh)
	setNumber(info, "fiftyTwoWeekLow", q.FiftyTwoWeekLow)
	return info
}

func setNumber[T int64 | float64](info models.Info, key string, v T) {
	if v != 0 {
		info[key] = v
	}
}
