// Package models defines data structures for Tally
package models

import (
	"time"
)

// EODBar represents a single day's price data
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse is the provider's daily series for one ticker
type EODResponse struct {
	Data []EODBar `json:"data"`
}

// OHLCVRow is the per-date value of the OHLCV endpoint response.
type OHLCVRow struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// OHLCVByDate keys bars by ISO date. Later bars win on duplicate dates.
func OHLCVByDate(bars []EODBar) map[string]OHLCVRow {
	out := make(map[string]OHLCVRow, len(bars))
	for _, b := range bars {
		out[b.Date.Format("2006-01-02")] = OHLCVRow{
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return out
}

// PriceHistory is the result of a price-history fetch.
type PriceHistory struct {
	Ticker    string   `json:"ticker"`
	Period    string   `json:"period"`
	Bars      []EODBar `json:"bars"`
	Persisted bool     `json:"persisted"`
	NewRows   int      `json:"new_rows"`
}
