// Package earnings looks up upcoming earnings announcements for a ticker.
package earnings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/clients/alphavantage"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// DefaultHorizon is used when no horizon is given.
const DefaultHorizon = "3month"

// ErrInvalidHorizon is returned for an unsupported horizon token.
var ErrInvalidHorizon = errors.New("invalid horizon")

// Service implements EarningsService
type Service struct {
	client interfaces.EarningsCalendarClient
	logger arbor.ILogger
}

var _ interfaces.EarningsService = (*Service)(nil)

// NewService creates a new earnings service
func NewService(client interfaces.EarningsCalendarClient, logger arbor.ILogger) *Service {
	return &Service{client: client, logger: logger}
}

// Upcoming returns the calendar rows for a ticker. Provider and configuration
// problems come back as a calendar with Error set; only transport failures are
// returned as Go errors.
func (s *Service) Upcoming(ctx context.Context, ticker, horizon string) (*models.EarningsCalendar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if horizon == "" {
		horizon = DefaultHorizon
	}
	if !alphavantage.ValidHorizon(horizon) {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidHorizon, horizon, strings.Join(alphavantage.Horizons, ", "))
	}

	calendar := &models.EarningsCalendar{Ticker: ticker, Horizon: horizon}

	rows, err := s.client.GetEarningsCalendar(ctx, ticker, horizon)
	if err != nil {
		var pe *alphavantage.ProviderError
		if errors.As(err, &pe) {
			s.logger.Warn().Str("ticker", ticker).Str("kind", pe.Kind).Msg(pe.Message)
			calendar.Error = pe.Message
			return calendar, nil
		}
		return nil, fmt.Errorf("failed to fetch earnings calendar for %s: %w", ticker, err)
	}

	for _, row := range rows {
		if strings.ToUpper(strings.TrimSpace(row["symbol"])) == ticker {
			calendar.Events = append(calendar.Events, row)
		}
	}

	if len(calendar.Events) == 0 {
		calendar.Message = fmt.Sprintf("No upcoming earnings found for %s in the %s horizon.", ticker, horizon)
	}

	s.logger.Debug().Str("ticker", ticker).Str("horizon", horizon).Int("events", len(calendar.Events)).Msg("Earnings calendar fetched")
	return calendar, nil
}
