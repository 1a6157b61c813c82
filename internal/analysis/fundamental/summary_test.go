package fundamental

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockbrief/internal/datasource"
	"github.com/seenimoa/stockbrief/pkg/models"
)

func appleInfo() models.Info {
	return models.Info{
		"longName":          "Apple Inc.",
		"sector":            "Technology",
		"industry":          "Consumer Electronics",
		"country":           "United States",
		"fullTimeEmployees": json.Number("161000"),
		"marketCap":         json.Number("3000000000000"),
		"trailingPE":        json.Number("29.5"),
		"forwardPE":         27.12,
		"beta":              json.Number("1.24E0"),
		"sharesOutstanding": int64(15204100000),
		"dividendYield":     float32(0.5),
	}
}

type stubSource struct {
	info  models.Info
	err   error
	calls int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) GetInfo(context.Context, models.Ticker) (models.Info, error) {
	s.calls++
	return s.info, s.err
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 42)
	assert.Equal(t, "longName", keys[0])
	assert.Equal(t, "impliedVolatility", keys[len(keys)-1])

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestBuildText(t *testing.T) {
	text := Build("aapl", appleInfo()).Text()

	lines := strings.Split(text, "\n")
	assert.Equal(t, "Company Financial Summary – AAPL", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "Name: Apple Inc.", lines[2])

	for _, want := range []string{
		"Full Time Employees: 161000\n",
		"\nValuation Metrics\nMarket Cap: 3000000000000\n",
		"Trailing P/E Ratio: 29.5\n",
		"Forward P/E Ratio: 27.12\n",
		"Enterprise Value: None\n",
		"Dividend Yield: 0.5\n",
		"Beta: 1.24\n",
		"Shares Outstanding: 15204100000\n",
		"\nStock Performance\n",
		"Implied Volatility: None\n",
	} {
		assert.Contains(t, text, want)
	}
	assert.True(t, strings.HasSuffix(text, "Implied Volatility: None\n"))
}

func TestBuildEmptyInfo(t *testing.T) {
	s := Build("XYZ.L", nil)
	require.Len(t, s.Sections, 6)
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			assert.Equal(t, Missing, f.Value, f.Key)
		}
	}
	assert.Equal(t, models.Ticker("XYZ.L"), s.Ticker)
}

func TestBuildIsIdempotent(t *testing.T) {
	info := appleInfo()
	first := Build("AAPL", info).Text()
	for range 5 {
		assert.Equal(t, first, Build("AAPL", info).Text())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "None"},
		{"Apple Inc.", "Apple Inc."},
		{json.Number("161000"), "161000"},
		{json.Number("0.2463"), "0.2463"},
		{json.Number("1.5E10"), "15000000000"},
		{json.Number("-0.01"), "-0.01"},
		{1234.5, "1234.5"},
		{3e12, "3000000000000"},
		{0.0, "0"},
		{float32(0.1), "0.1"},
		{int64(42), "42"},
		{7, "7"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "%#v", tt.in)
	}
}

func TestFetcherFetch(t *testing.T) {
	src := &stubSource{info: appleInfo()}
	f := NewFetcher(src)

	s, err := f.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	field, ok := s.Field("longName")
	require.True(t, ok)
	assert.Equal(t, "Apple Inc.", field.Value)

	// Same provider state, same block.
	a, err := f.FetchText(context.Background(), "AAPL")
	require.NoError(t, err)
	b, err := f.FetchText(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 3, src.calls)
}

func TestFetcherErrors(t *testing.T) {
	src := &stubSource{err: datasource.ErrTickerNotFound}
	f := NewFetcher(src)

	_, err := f.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoTicker)
	assert.Zero(t, src.calls)

	_, err = f.FetchText(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, datasource.ErrTickerNotFound))
}
