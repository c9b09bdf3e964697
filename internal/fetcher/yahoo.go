package fetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"StockPulse/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance public chart API.
type YahooFetcher struct {
	Client   *http.Client
	BaseURL  string
	Interval string // candle interval, e.g. "5m"
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(interval, proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if interval == "" {
		interval = "5m"
	}
	return &YahooFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		BaseURL:  defaultYahooBaseURL,
		Interval: interval,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (f *YahooFetcher) fetchChart(symbol, interval, rng string) ([]model.Candle, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(symbol), interval, rng)

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote data for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	// Yahoo sometimes returns quote arrays shorter than the timestamp list.
	n := len(result.Timestamp)
	for _, arr := range [][]interface{}{quote.Open, quote.High, quote.Low, quote.Close, quote.Volume} {
		if len(arr) < n {
			n = len(arr)
		}
	}

	candles := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (halts, holidays)
		}
		candles = append(candles, model.NewCandle(
			symbol, time.Unix(result.Timestamp[i], 0), o, h, l, c, int64(toFloat(quote.Volume[i])),
		))
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

// FetchLatest returns the most recent intraday candle for the symbol.
func (f *YahooFetcher) FetchLatest(symbol string) (model.Candle, error) {
	candles, err := f.fetchChart(symbol, f.Interval, "1d")
	if err != nil {
		return model.Candle{}, err
	}
	if len(candles) == 0 {
		return model.Candle{}, fmt.Errorf("yahoo: no candles for %s", symbol)
	}
	return candles[len(candles)-1], nil
}

// FetchHistory returns intraday candles covering the past days.
func (f *YahooFetcher) FetchHistory(symbol string, days int) ([]model.Candle, error) {
	// Yahoo limits intraday ranges; pick the smallest range that covers days.
	rng := "3mo"
	switch {
	case days <= 1:
		rng = "1d"
	case days <= 5:
		rng = "5d"
	case days <= 30:
		rng = "1mo"
	}
	return f.fetchChart(symbol, f.Interval, rng)
}

// Validate reports whether the provider returns data for the symbol.
func (f *YahooFetcher) Validate(symbol string) bool {
	candles, err := f.fetchChart(symbol, "1d", "5d")
	return err == nil && len(candles) > 0
}
