package models

import "encoding/json"

// RatioReport is the derived ratio bundle for one ticker, or an error envelope.
// Nil ratio fields are undefined (serialized as null).
type RatioReport struct {
	PERatio      *float64 `json:"p_e_ratio"`
	PBRatio      *float64 `json:"p_b_ratio"`
	ROEPercent   *float64 `json:"return_on_equity_percent"`
	AltmanZScore *float64 `json:"altman_z_score"`
	Warnings     []string `json:"warnings,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewRatioError returns an error envelope.
func NewRatioError(msg string) *RatioReport {
	return &RatioReport{Error: msg}
}

// IsError reports whether the report is an error envelope.
func (r *RatioReport) IsError() bool {
	return r != nil && r.Error != ""
}

// MarshalJSON writes either {"error": ...} or the ratio keys, never both.
func (r RatioReport) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type plain RatioReport
	return json.Marshal(plain(r))
}
