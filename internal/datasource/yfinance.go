package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// Default Yahoo endpoints.
const (
	DefaultYahooBaseURL   = "https://query2.finance.yahoo.com"
	DefaultYahooCookieURL = "https://fc.yahoo.com"
)

// quoteSummaryModules are requested in this order; earlier modules win when
// two of them carry the same key.
var quoteSummaryModules = []string{
	"price",
	"assetProfile",
	"summaryDetail",
	"defaultKeyStatistics",
	"financialData",
}

// YFinance implements InfoSource over Yahoo's quoteSummary endpoint.
type YFinance struct {
	client    *http.Client
	baseURL   string
	cookieURL string
	limiter   *rate.Limiter
	logger    logrus.FieldLogger

	mu    sync.Mutex
	crumb string
}

// YFinanceOption configures the Yahoo source.
type YFinanceOption func(*YFinance)

// WithYahooBaseURL sets the API host (e.g., an httptest server).
func WithYahooBaseURL(u string) YFinanceOption {
	return func(y *YFinance) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithYahooCookieURL sets the page fetched to obtain session cookies.
func WithYahooCookieURL(u string) YFinanceOption {
	return func(y *YFinance) { y.cookieURL = u }
}

// WithYahooHTTPClient sets a custom HTTP client. A cookie jar is attached
// when the client has none.
func WithYahooHTTPClient(client *http.Client) YFinanceOption {
	return func(y *YFinance) {
		c := *client
		if c.Jar == nil {
			c.Jar = y.client.Jar
		}
		y.client = &c
	}
}

// WithYahooRateLimit caps outgoing requests per second. Zero or less disables it.
func WithYahooRateLimit(rps float64) YFinanceOption {
	return func(y *YFinance) {
		if rps <= 0 {
			y.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		y.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithYahooLogger sets the logger.
func WithYahooLogger(l logrus.FieldLogger) YFinanceOption {
	return func(y *YFinance) { y.logger = l }
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(opts ...YFinanceOption) *YFinance {
	jar, _ := cookiejar.New(nil)
	y := &YFinance{
		client:    &http.Client{Timeout: DefaultTimeout, Jar: jar},
		baseURL:   DefaultYahooBaseURL,
		cookieURL: DefaultYahooCookieURL,
		limiter:   rate.NewLimiter(2, 1),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(y)
	}
	y.logger = y.logger.WithField("source", "yfinance")
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// GetInfo returns the flattened quoteSummary record for ticker.
func (y *YFinance) GetInfo(ctx context.Context, ticker models.Ticker) (models.Info, error) {
	if !ticker.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTickerNotFound, ticker)
	}

	data, err := y.fetchSummary(ctx, ticker)
	if statusOf(err) == http.StatusUnauthorized {
		// Stale crumb; start a fresh session once.
		y.logger.WithField("ticker", ticker).Debug("crumb rejected, refreshing session")
		y.resetSession()
		data, err = y.fetchSummary(ctx, ticker)
	}
	if err != nil {
		switch statusOf(err) {
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("yfinance %s: %w", ticker, ErrRateLimited)
		}
		return nil, fmt.Errorf("yfinance %s: %w", ticker, err)
	}

	info, err := parseQuoteSummary(data)
	if err != nil {
		return nil, fmt.Errorf("yfinance %s: %w", ticker, err)
	}
	return info, nil
}

func (y *YFinance) fetchSummary(ctx context.Context, ticker models.Ticker) ([]byte, error) {
	crumb, err := y.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s&crumb=%s",
		y.baseURL,
		url.PathEscape(string(ticker)),
		strings.Join(quoteSummaryModules, ","),
		url.QueryEscape(crumb),
	)
	body, _, err := doGet(ctx, y.client, u, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// session returns the cached crumb, establishing a cookie session first if
// needed. The cookie page usually answers 404; only its cookies matter.
func (y *YFinance) session(ctx context.Context) (string, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.crumb != "" {
		return y.crumb, nil
	}

	if y.cookieURL != "" {
		body, _, err := doGet(ctx, y.client, y.cookieURL, nil)
		if err == nil {
			body.Close()
		} else if ctx.Err() != nil {
			return "", ctx.Err()
		} else {
			y.logger.WithError(err).Debug("cookie request")
		}
	}

	body, _, err := doGet(ctx, y.client, y.baseURL+"/v1/test/getcrumb", map[string]string{
		"Accept":  "text/plain, */*",
		"Origin":  "https://finance.yahoo.com",
		"Referer": "https://finance.yahoo.com/",
	})
	if err != nil {
		if statusOf(err) == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", ErrNoCrumb, ErrRateLimited)
		}
		return "", fmt.Errorf("%w: %w", ErrNoCrumb, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 256))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCrumb, err)
	}
	crumb := strings.TrimSpace(string(raw))
	if crumb == "" || strings.Contains(strings.ToLower(crumb), "html") {
		return "", ErrNoCrumb
	}
	y.crumb = crumb
	return crumb, nil
}

func (y *YFinance) resetSession() {
	y.mu.Lock()
	y.crumb = ""
	y.mu.Unlock()
}

// parseQuoteSummary flattens the module objects of a quoteSummary response
// into one record. {raw, fmt} objects contribute their raw number.
func parseQuoteSummary(data []byte) (models.Info, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse quoteSummary: invalid JSON")
	}
	root := gjson.ParseBytes(data)

	if e := root.Get("quoteSummary.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, e.Get("description").String())
	}
	result := root.Get("quoteSummary.result.0")
	if !result.IsObject() {
		return nil, ErrTickerNotFound
	}

	info := models.Info{}
	for _, module := range quoteSummaryModules {
		result.Get(module).ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if info.Has(key) {
				return true
			}
			if val, ok := flattenValue(v); ok {
				info[key] = val
			}
			return true
		})
	}
	if len(info) == 0 {
		return nil, ErrTickerNotFound
	}
	return info, nil
}

func flattenValue(v gjson.Result) (any, bool) {
	switch v.Type {
	case gjson.String:
		if strings.TrimSpace(v.Str) != "" {
			return v.Str, true
		}
	case gjson.Number:
		return json.Number(v.Raw), true
	case gjson.JSON:
		if raw := v.Get("raw"); v.IsObject() && raw.Type == gjson.Number {
			return json.Number(raw.Raw), true
		}
	}
	return nil, false
}
