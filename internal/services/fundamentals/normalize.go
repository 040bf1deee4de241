package fundamentals

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
)

// metadataKeys are provider bookkeeping fields, not line items.
var metadataKeys = map[string]bool{
	"date":            true,
	"filing_date":     true,
	"currency_symbol": true,
}

// Normalize converts provider values to float64. Nulls, blanks, NaN/Inf and
// anything non-numeric are dropped rather than stored as zero.
func Normalize(raw map[string]any) models.LineItems {
	items := make(models.LineItems, len(raw))
	for key, value := range raw {
		if metadataKeys[key] {
			continue
		}
		if v, ok := toFloat(value); ok {
			items[key] = v
		}
	}
	return items
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0, false
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		s := strings.TrimSpace(v)
		switch strings.ToLower(s) {
		case "", "nan", "none", "null", "n/a", "-":
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
