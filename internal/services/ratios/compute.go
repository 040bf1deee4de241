package ratios

import (
	"fmt"
	"math"

	"github.com/bobmcallan/tally/internal/models"
)

// Inputs are the resolved figures the ratio formulas consume. Missing items are zero.
type Inputs struct {
	MarketCap          float64
	NetIncome          float64
	BookValue          float64
	TotalAssets        float64
	WorkingCapital     float64
	CurrentAssets      float64
	CurrentLiabilities float64
	RetainedEarnings   float64
	EBIT               float64
	InterestExpense    float64
	TaxProvision       float64
	TotalLiabilities   float64
	TotalRevenue       float64
}

// Compute applies the ratio formulas. It never fails: undefined ratios are nil.
func Compute(in Inputs) *models.RatioReport {
	report := &models.RatioReport{}

	if in.NetIncome != 0 && in.MarketCap != 0 {
		report.PERatio = ptr(in.MarketCap / in.NetIncome)
	}
	if in.BookValue != 0 && in.MarketCap != 0 {
		report.PBRatio = ptr(in.MarketCap / in.BookValue)
	}
	if in.BookValue != 0 && in.NetIncome != 0 {
		report.ROEPercent = ptr(in.NetIncome / in.BookValue * 100)
	}

	if in.TotalAssets > 0 {
		workingCapital := in.WorkingCapital
		if workingCapital == 0 && in.CurrentAssets != 0 && in.CurrentLiabilities != 0 {
			workingCapital = in.CurrentAssets - in.CurrentLiabilities
		}

		ebit := in.EBIT
		if ebit == 0 && in.NetIncome != 0 {
			ebit = in.NetIncome + math.Abs(in.InterestExpense) + in.TaxProvision
		}

		a := workingCapital / in.TotalAssets
		b := in.RetainedEarnings / in.TotalAssets
		c := ebit / in.TotalAssets
		d := 0.0
		if in.TotalLiabilities != 0 {
			d = in.MarketCap / in.TotalLiabilities
		}
		e := in.TotalRevenue / in.TotalAssets

		report.AltmanZScore = ptr(1.2*a + 1.4*b + 3.3*c + 0.6*d + 1.0*e)
	}

	return report
}

// Extract resolves Inputs (without market cap) from the latest balance sheet and
// income statement, returning a warning for every required item that could not be found.
func Extract(balance, income *models.FinancialStatement) (Inputs, []string) {
	var in Inputs
	var warnings []string

	get := func(st *models.FinancialStatement, item Item, required bool) float64 {
		v, ok := Resolve(st.Data, st.SchemaVersion, item)
		if !ok && required {
			warnings = append(warnings, fmt.Sprintf("%s not found in %s (schema %s)", item, st.StatementType, schemaLabel(st.SchemaVersion)))
		}
		return v
	}

	in.NetIncome = get(income, NetIncome, true)
	in.TotalRevenue = get(income, TotalRevenue, true)
	in.InterestExpense = get(income, InterestExpense, false)
	in.TaxProvision = get(income, TaxProvision, false)
	in.EBIT = get(income, EBIT, false)

	in.BookValue = get(balance, BookValue, true)
	in.TotalAssets = get(balance, TotalAssets, true)
	in.RetainedEarnings = get(balance, RetainedEarnings, true)
	in.TotalLiabilities = get(balance, TotalLiabilities, true)
	in.CurrentAssets = get(balance, CurrentAssets, false)
	in.CurrentLiabilities = get(balance, CurrentLiabilities, false)
	in.WorkingCapital = get(balance, WorkingCapital, false)

	_, hasWC := Resolve(balance.Data, balance.SchemaVersion, WorkingCapital)
	_, hasCA := Resolve(balance.Data, balance.SchemaVersion, CurrentAssets)
	_, hasCL := Resolve(balance.Data, balance.SchemaVersion, CurrentLiabilities)
	if !hasWC && !(hasCA && hasCL) {
		warnings = append(warnings, fmt.Sprintf("%s not found in %s (schema %s)", WorkingCapital, balance.StatementType, schemaLabel(balance.SchemaVersion)))
	}

	_, hasEBIT := Resolve(income.Data, income.SchemaVersion, EBIT)
	if !hasEBIT {
		warnings = append(warnings, fmt.Sprintf("%s not found in %s, derived from net income, interest and tax", EBIT, income.StatementType))
	}

	return in, warnings
}

func schemaLabel(version string) string {
	if version == "" {
		return SchemaUnknown
	}
	return version
}

func ptr(v float64) *float64 {
	return &v
}
