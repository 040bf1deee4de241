package models

import "encoding/json"

// EarningsEvent is one calendar row, column name to value.
type EarningsEvent map[string]string

// EarningsCalendar is the result of an earnings-calendar lookup. Exactly one
// of Events, Message or Error is meaningful.
type EarningsCalendar struct {
	Ticker  string
	Horizon string
	Events  []EarningsEvent
	// Message is informational, e.g. no events in the horizon
	Message string
	// Error is a provider or configuration problem (missing key, empty feed, rate limit)
	Error string
}

// IsError reports whether the provider or configuration failed.
func (c *EarningsCalendar) IsError() bool {
	return c != nil && c.Error != ""
}

// MarshalJSON writes {"error"}, {"message"} or the event list.
func (c EarningsCalendar) MarshalJSON() ([]byte, error) {
	switch {
	case c.Error != "":
		return json.Marshal(map[string]string{"error": c.Error})
	case c.Message != "":
		return json.Marshal(map[string]string{"message": c.Message})
	}
	events := c.Events
	if events == nil {
		events = []EarningsEvent{}
	}
	return json.Marshal(events)
}
