package models

import "time"

// Trend classifications for a price series.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// SMA crossover states.
const (
	CrossoverGolden = "golden_cross"
	CrossoverDeath  = "death_cross"
	CrossoverNone   = "none"
)

// TechnicalSnapshot summarises a daily price series as of its last bar.
// Indicators that need more history than the series holds are null.
type TechnicalSnapshot struct {
	Ticker      string    `json:"ticker"`
	Period      string    `json:"period"`
	AsOf        time.Time `json:"as_of"`
	Bars        int       `json:"bars"`
	Close       float64   `json:"close"`
	Change      *float64  `json:"change"`
	ChangePct   *float64  `json:"change_percent"`
	SMA20       *float64  `json:"sma_20"`
	SMA50       *float64  `json:"sma_50"`
	SMA200      *float64  `json:"sma_200"`
	RSI14       *float64  `json:"rsi_14"`
	RSIState    string    `json:"rsi_state,omitempty"`
	ATR14       *float64  `json:"atr_14"`
	VolumeRatio *float64  `json:"volume_ratio_20"`
	VolumeState string    `json:"volume_state,omitempty"`
	PeriodHigh  float64   `json:"period_high"`
	PeriodLow   float64   `json:"period_low"`
	Support     float64   `json:"support"`
	Resistance  float64   `json:"resistance"`
	Crossover   string    `json:"sma_20_50_crossover"`
	Trend       string    `json:"trend"`
}
