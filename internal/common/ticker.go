package common

import (
	"fmt"
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,19}$`)

// NormalizeTicker trims and upper-cases a ticker symbol and rejects anything
// that could not be a listed symbol (optionally exchange-qualified, e.g. BHP.AU).
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("ticker is required")
	}
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("invalid ticker %q", ticker)
	}
	return t, nil
}
