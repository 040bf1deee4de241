package ratios

import (
	"github.com/bobmcallan/tally/internal/models"
)

// Item is a canonical line item, independent of provider naming.
type Item string

const (
	NetIncome          Item = "net_income"
	BookValue          Item = "book_value"
	TotalAssets        Item = "total_assets"
	WorkingCapital     Item = "working_capital"
	CurrentAssets      Item = "current_assets"
	CurrentLiabilities Item = "current_liabilities"
	RetainedEarnings   Item = "retained_earnings"
	EBIT               Item = "ebit"
	InterestExpense    Item = "interest_expense"
	TaxProvision       Item = "tax_provision"
	TotalLiabilities   Item = "total_liabilities"
	TotalRevenue       Item = "total_revenue"
	OperatingCashFlow  Item = "operating_cash_flow"
	CapitalExpenditure Item = "capital_expenditure"
	FreeCashFlow       Item = "free_cash_flow"
)

// Schema versions recorded on ingested statements.
const (
	SchemaYFinanceDisplay = "yfinance-display"
	SchemaYFinanceCompact = "yfinance-compact"
	SchemaEODHD           = "eodhd"
	SchemaUnknown         = "unknown"
)

// Schema maps canonical items to the field names of one provider vintage.
type Schema struct {
	Version string
	Fields  map[Item]string
}

// Schemas is the versioned mapping table, in classification priority order.
var Schemas = []Schema{
	{
		Version: SchemaYFinanceDisplay,
		Fields: map[Item]string{
			NetIncome:          "Net Income",
			BookValue:          "Stockholders Equity",
			TotalAssets:        "Total Assets",
			WorkingCapital:     "Working Capital",
			CurrentAssets:      "Current Assets",
			CurrentLiabilities: "Current Liabilities",
			RetainedEarnings:   "Retained Earnings",
			EBIT:               "EBIT",
			InterestExpense:    "Interest Expense",
			TaxProvision:       "Tax Provision",
			TotalLiabilities:   "Total Liabilities Net Minority Interest",
			TotalRevenue:       "Total Revenue",
			OperatingCashFlow:  "Operating Cash Flow",
			CapitalExpenditure: "Capital Expenditure",
			FreeCashFlow:       "Free Cash Flow",
		},
	},
	{
		Version: SchemaYFinanceCompact,
		Fields: map[Item]string{
			NetIncome:          "NetIncome",
			BookValue:          "StockholdersEquity",
			TotalAssets:        "TotalAssets",
			WorkingCapital:     "WorkingCapital",
			CurrentAssets:      "CurrentAssets",
			CurrentLiabilities: "CurrentLiabilities",
			RetainedEarnings:   "RetainedEarnings",
			EBIT:               "EBIT",
			InterestExpense:    "InterestExpense",
			TaxProvision:       "TaxProvision",
			TotalLiabilities:   "TotalLiabilitiesNetMinorityInterest",
			TotalRevenue:       "TotalRevenue",
			OperatingCashFlow:  "OperatingCashFlow",
			CapitalExpenditure: "CapitalExpenditure",
			FreeCashFlow:       "FreeCashFlow",
		},
	},
	{
		Version: SchemaEODHD,
		Fields: map[Item]string{
			NetIncome:          "netIncome",
			BookValue:          "totalStockholderEquity",
			TotalAssets:        "totalAssets",
			WorkingCapital:     "netWorkingCapital",
			CurrentAssets:      "totalCurrentAssets",
			CurrentLiabilities: "totalCurrentLiabilities",
			RetainedEarnings:   "retainedEarnings",
			EBIT:               "ebit",
			InterestExpense:    "interestExpense",
			TaxProvision:       "incomeTaxExpense",
			TotalLiabilities:   "totalLiab",
			TotalRevenue:       "totalRevenue",
			OperatingCashFlow:  "totalCashFromOperatingActivities",
			CapitalExpenditure: "capitalExpenditures",
			FreeCashFlow:       "freeCashFlow",
		},
	},
}

// aliases are tried in order after the vintage's own field.
var aliases = map[Item][]string{
	NetIncome:          {"Net Income", "NetIncome", "Net Income Common Stockholders", "netIncome"},
	BookValue:          {"Stockholders Equity", "StockholdersEquity", "Total Stockholders Equity", "Total Equity", "totalStockholderEquity"},
	TotalAssets:        {"Total Assets", "TotalAssets", "totalAssets"},
	WorkingCapital:     {"Working Capital", "WorkingCapital", "netWorkingCapital"},
	CurrentAssets:      {"Current Assets", "CurrentAssets", "Total Current Assets", "totalCurrentAssets"},
	CurrentLiabilities: {"Current Liabilities", "CurrentLiabilities", "Total Current Liabilities", "totalCurrentLiabilities"},
	RetainedEarnings:   {"Retained Earnings", "RetainedEarnings", "retainedEarnings"},
	EBIT:               {"EBIT", "Operating Income", "OperatingIncome", "ebit", "operatingIncome"},
	InterestExpense:    {"Interest Expense", "InterestExpense", "Interest Expense Non Operating", "interestExpense"},
	TaxProvision:       {"Tax Provision", "TaxProvision", "Income Tax Expense", "incomeTaxExpense"},
	TotalLiabilities:   {"Total Liabilities Net Minority Interest", "TotalLiabilitiesNetMinorityInterest", "Total Liabilities", "TotalLiabilities", "totalLiab"},
	TotalRevenue:       {"Total Revenue", "TotalRevenue", "Revenue", "totalRevenue"},
	OperatingCashFlow:  {"Operating Cash Flow", "OperatingCashFlow", "totalCashFromOperatingActivities"},
	CapitalExpenditure: {"Capital Expenditure", "CapitalExpenditure", "capitalExpenditures"},
	FreeCashFlow:       {"Free Cash Flow", "FreeCashFlow", "freeCashFlow"},
}

// statementItems lists the canonical items each statement type is expected to carry.
var statementItems = map[models.StatementType][]Item{
	models.IncomeStatement: {NetIncome, EBIT, InterestExpense, TaxProvision, TotalRevenue},
	models.BalanceSheet:    {BookValue, TotalAssets, WorkingCapital, CurrentAssets, CurrentLiabilities, RetainedEarnings, TotalLiabilities},
	models.CashFlow:        {OperatingCashFlow, CapitalExpenditure, FreeCashFlow},
}

// LookupSchema returns the schema for a version.
func LookupSchema(version string) (Schema, bool) {
	for _, s := range Schemas {
		if s.Version == version {
			return s, true
		}
	}
	return Schema{}, false
}

// Classify detects the vintage of a payload: the schema whose field names match
// the most keys, earliest schema on ties. No match at all is SchemaUnknown.
func Classify(items models.LineItems) string {
	best, bestHits := SchemaUnknown, 0
	for _, s := range Schemas {
		hits := 0
		for _, field := range s.Fields {
			if _, ok := items[field]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s.Version, hits
		}
	}
	return best
}

// Resolve looks up a canonical item, trying the vintage's field first and then
// the alias list. The first present value wins, including zero.
func Resolve(items models.LineItems, version string, item Item) (float64, bool) {
	if s, ok := LookupSchema(version); ok {
		if field, ok := s.Fields[item]; ok {
			if v, ok := items[field]; ok {
				return v, true
			}
		}
	}
	for _, field := range aliases[item] {
		if v, ok := items[field]; ok {
			return v, true
		}
	}
	return 0, false
}

// Unmapped returns the canonical items expected for a statement type that the
// payload does not carry under any known name.
func Unmapped(items models.LineItems, version string, statementType models.StatementType) []Item {
	var missing []Item
	for _, item := range statementItems[statementType] {
		if _, ok := Resolve(items, version, item); !ok {
			missing = append(missing, item)
		}
	}
	return missing
}
