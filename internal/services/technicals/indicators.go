// Package technicals derives moving averages, momentum and range indicators
// from a daily price series. Bars are ascending by date, last bar most recent.
package technicals

import (
	"math"
	"sort"

	"github.com/bobmcallan/tally/internal/models"
)

// SMA returns the mean close of the last n bars.
func SMA(bars []models.EODBar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n), true
}

// RSI uses simple averages of the gains and losses over the last n closes.
func RSI(bars []models.EODBar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(bars) - n; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	switch {
	case gains == 0 && losses == 0:
		return 50, true
	case losses == 0:
		return 100, true
	}
	rs := gains / losses
	return 100 - 100/(1+rs), true
}

// ATR averages the true range of the last n bars.
func ATR(bars []models.EODBar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n+1 {
		return 0, false
	}

	sum := 0.0
	for i := len(bars) - n; i < len(bars); i++ {
		prev := bars[i-1].Close
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - prev)
		lc := math.Abs(bars[i].Low - prev)
		sum += math.Max(hl, math.Max(hc, lc))
	}
	return sum / float64(n), true
}

// VolumeRatio compares the last bar's volume with the mean of the n bars before it.
func VolumeRatio(bars []models.EODBar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n+1 {
		return 0, false
	}

	var sum int64
	for _, b := range bars[len(bars)-n-1 : len(bars)-1] {
		sum += b.Volume
	}
	if sum == 0 {
		return 0, false
	}
	avg := float64(sum) / float64(n)
	return float64(bars[len(bars)-1].Volume) / avg, true
}

// Range returns the highest high and lowest low of the series.
func Range(bars []models.EODBar) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	high, low = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high, low
}

// SupportResistance returns the lower quartile of lows and the upper quartile
// of highs over the last lookback bars.
func SupportResistance(bars []models.EODBar, lookback int) (support, resistance float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	if lookback <= 0 || lookback > len(bars) {
		lookback = len(bars)
	}
	window := bars[len(bars)-lookback:]

	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, b := range window {
		highs[i] = b.High
		lows[i] = b.Low
	}
	sort.Float64s(highs)
	sort.Float64s(lows)

	last := float64(len(window) - 1)
	return lows[int(last*0.25)], highs[int(last*0.75)]
}

// Crossover reports whether the short SMA crossed the long SMA on the last bar.
func Crossover(bars []models.EODBar, short, long int) string {
	if len(bars) < long+1 {
		return models.CrossoverNone
	}

	s, _ := SMA(bars, short)
	l, _ := SMA(bars, long)
	prev := bars[:len(bars)-1]
	ps, _ := SMA(prev, short)
	pl, _ := SMA(prev, long)

	switch {
	case ps <= pl && s > l:
		return models.CrossoverGolden
	case ps >= pl && s < l:
		return models.CrossoverDeath
	}
	return models.CrossoverNone
}

// ClassifyRSI maps an RSI value to overbought, oversold or neutral.
func ClassifyRSI(rsi float64) string {
	switch {
	case rsi >= 70:
		return "overbought"
	case rsi <= 30:
		return "oversold"
	}
	return "neutral"
}

// ClassifyVolume maps a volume ratio to spike, low or normal.
func ClassifyVolume(ratio float64) string {
	switch {
	case ratio >= 2.0:
		return "spike"
	case ratio <= 0.5:
		return "low"
	}
	return "normal"
}

// Trend is bullish when price is above the 200-day SMA and the 20-day SMA
// leads the 50-day, bearish for the mirror case. Missing averages are neutral.
func Trend(price float64, sma20, sma50, sma200 *float64) string {
	if sma20 == nil || sma50 == nil || sma200 == nil {
		return models.TrendNeutral
	}
	switch {
	case price > *sma200 && *sma20 > *sma50:
		return models.TrendBullish
	case price < *sma200 && *sma20 < *sma50:
		return models.TrendBearish
	}
	return models.TrendNeutral
}
