package prices

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/tally/internal/models"
)

// RenderCloseChart renders a PNG line chart of closing prices.
func RenderCloseChart(ticker string, bars []models.EODBar) ([]byte, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 bars, got %d", len(bars))
	}

	xValues := make([]time.Time, len(bars))
	closeY := make([]float64, len(bars))
	for i, b := range bars {
		xValues[i] = b.Date
		closeY[i] = b.Close
	}

	span := bars[len(bars)-1].Date.Sub(bars[0].Date)
	dateFormat := "Jan 06"
	if span < 120*24*time.Hour {
		dateFormat = "02 Jan"
	}

	closeSeries := chart.TimeSeries{
		Name: "Close",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2,
		},
		XValues: xValues,
		YValues: closeY,
	}

	graph := chart.Chart{
		Title:  ticker + " Close",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(dateFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{closeSeries},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
