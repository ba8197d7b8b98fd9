package dto

import (
	"sort"
	"time"

	"golang-stock-valuation/internal/entity"
)

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol        string        `json:"symbol"`
	Market        entity.Market `json:"market"`
	Name          string        `json:"name,omitempty"`
	Price         float64       `json:"price"`
	Open          float64       `json:"open"`
	High          float64       `json:"high"`
	Low           float64       `json:"low"`
	PrevClose     float64       `json:"prev_close"`
	Volume        float64       `json:"volume"`
	ChangePercent float64       `json:"change_percent"`
	PE            float64       `json:"pe,omitempty"`
	PB            float64       `json:"pb,omitempty"`
	MarketCap     float64       `json:"market_cap,omitempty"`
	FetchedAt     time.Time     `json:"fetched_at"`
	Stale         bool          `json:"stale,omitempty"`
}

// Financials is the statement and ratio data used by the valuation.
// Percent-style ratios (ROE, growth, debt ratio, yield) are in percent units.
type Financials struct {
	Symbol string        `json:"symbol"`
	Market entity.Market `json:"market"`

	Revenue           Metric `json:"revenue"`
	NetIncome         Metric `json:"net_income"`
	GrossMargin       Metric `json:"gross_margin"`
	NetMargin         Metric `json:"net_margin"`
	ROE               Metric `json:"roe"`
	ROA               Metric `json:"roa"`
	DebtRatio         Metric `json:"debt_ratio"`
	CurrentRatio      Metric `json:"current_ratio"`
	OperatingCashFlow Metric `json:"operating_cash_flow"`
	SharesOutstanding Metric `json:"shares_outstanding"`
	RevenueGrowth     Metric `json:"revenue_growth"`
	ProfitGrowth      Metric `json:"profit_growth"`
	EPS               Metric `json:"eps"`
	BookValuePerShare Metric `json:"book_value_per_share"`
	FCFPerShare       Metric `json:"fcf_per_share"`
	DividendYield     Metric `json:"dividend_yield"`
	PE                Metric `json:"pe"`
	PB                Metric `json:"pb"`
	FiscalYear        int    `json:"fiscal_year,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// MetricNames maps each metric to its report name.
func (f *Financials) MetricNames() map[string]*Metric {
	return map[string]*Metric{
		"revenue":              &f.Revenue,
		"net_income":           &f.NetIncome,
		"gross_margin":         &f.GrossMargin,
		"net_margin":           &f.NetMargin,
		"roe":                  &f.ROE,
		"roa":                  &f.ROA,
		"debt_ratio":           &f.DebtRatio,
		"current_ratio":        &f.CurrentRatio,
		"operating_cash_flow":  &f.OperatingCashFlow,
		"shares_outstanding":   &f.SharesOutstanding,
		"revenue_growth":       &f.RevenueGrowth,
		"profit_growth":        &f.ProfitGrowth,
		"eps":                  &f.EPS,
		"book_value_per_share": &f.BookValuePerShare,
		"fcf_per_share":        &f.FCFPerShare,
		"dividend_yield":       &f.DividendYield,
		"pe":                   &f.PE,
		"pb":                   &f.PB,
	}
}

// Merge fills every missing metric of f from other and returns f.
func (f *Financials) Merge(other *Financials) *Financials {
	if other == nil {
		return f
	}
	theirs := other.MetricNames()
	for name, m := range f.MetricNames() {
		if !m.Present() {
			*m = *theirs[name]
		}
	}
	if f.FiscalYear == 0 {
		f.FiscalYear = other.FiscalYear
	}
	return f
}

// EstimatedNames returns the sorted names of metrics whose basis is estimated.
func (f *Financials) EstimatedNames() []string {
	var names []string
	for name, m := range f.MetricNames() {
		if m.IsEstimated() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
