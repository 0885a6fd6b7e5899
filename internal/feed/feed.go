// Package feed scrapes the reference rate page and extracts asset quotes
// for the oracle loop.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Quote is one scraped exchange rate, in asset units per USD.
type Quote struct {
	Asset       string
	UnitsPerUSD int64
}

// Source produces the current set of quotes.
type Source interface {
	Fetch(ctx context.Context) ([]Quote, error)
}

type Scraper struct {
	url        string
	httpClient *http.Client
}

func NewScraper(url string) *Scraper {
	return &Scraper{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads the rate page and parses its quote table. Rows without a
// symbol or with a non-positive rate are skipped.
func (s *Scraper) Fetch(ctx context.Context) ([]Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate page returned status %d", resp.StatusCode)
	}

	document, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate page: %w", err)
	}

	var quotes []Quote
	document.Find("table.rates tbody tr").Each(func(_ int, row *goquery.Selection) {
		asset := strings.ToUpper(strings.TrimSpace(row.Find("td.symbol").Text()))
		rateText := strings.TrimSpace(row.Find("td.rate").Text())
		rateText = strings.ReplaceAll(rateText, ",", "")

		if asset == "" || rateText == "" {
			return
		}

		rate, err := strconv.ParseInt(rateText, 10, 64)
		if err != nil || rate <= 0 {
			return
		}

		quotes = append(quotes, Quote{Asset: asset, UnitsPerUSD: rate})
	})

	return quotes, nil
}
