package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// DefaultRSSBaseURL serves Yahoo's per-ticker headline feed.
const DefaultRSSBaseURL = "https://feeds.finance.yahoo.com"

// Headlines fetches recent news titles for a ticker from Yahoo's RSS feed.
type Headlines struct {
	baseURL string
	limiter *rate.Limiter
	parser  *gofeed.Parser
}

// NewHeadlines creates a headline feed reader. An empty baseURL selects
// DefaultRSSBaseURL; a nil client gets DefaultTimeout.
func NewHeadlines(baseURL string, client *http.Client) *Headlines {
	if baseURL == "" {
		baseURL = DefaultRSSBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = DefaultUserAgent
	return &Headlines{
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(2, 1), // conservative: 2 req/s
		parser:  parser,
	}
}

// Name returns the data source name.
func (h *Headlines) Name() string { return "Yahoo RSS" }

// GetHeadlines returns up to limit items for ticker, newest first as
// published by the feed.
func (h *Headlines) GetHeadlines(ctx context.Context, ticker models.Ticker, limit int) ([]models.Headline, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/rss/2.0/headline?s=%s&region=US&lang=en-US", h.baseURL, url.QueryEscape(string(ticker)))
	feed, err := h.parser.ParseURLWithContext(u, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", ticker, err)
	}

	out := make([]models.Headline, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		hl := models.Headline{
			Title:   title,
			Link:    item.Link,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			hl.Published = item.PublishedParsed.UTC().Format(time.DateOnly)
		}
		out = append(out, hl)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
