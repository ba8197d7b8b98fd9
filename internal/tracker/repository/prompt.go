package repository

import (
	"fmt"
	"sort"
	"strings"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
)

// BuildEstimateFinancialsPrompt asks the model for the financial indicators that
// the measured sources could not supply.
func BuildEstimateFinancialsPrompt(symbol string, market entity.Market, known *dto.Financials) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a financial data assistant. Estimate the latest annual financial indicators for the %s listed security %s.\n", market.DisplayName(), symbol))

	if known != nil {
		var lines []string
		for name, m := range known.MetricNames() {
			if m.Present() {
				lines = append(lines, fmt.Sprintf("- %s: %.4f", name, m.Value))
			}
		}
		if len(lines) > 0 {
			sb.WriteString("\nAlready known values (do not contradict them):\n")
			sort.Strings(lines)
			sb.WriteString(strings.Join(lines, "\n"))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(`
Return ONLY a JSON object with these numeric fields. Percent values are in percent units (15 means 15%).
Use null for anything you cannot estimate with reasonable confidence.
{
  "eps": number,
  "book_value_per_share": number,
  "fcf_per_share": number,
  "roe": number,
  "roa": number,
  "debt_ratio": number,
  "current_ratio": number,
  "revenue_growth": number,
  "profit_growth": number,
  "dividend_yield": number,
  "gross_margin": number,
  "net_margin": number,
  "fiscal_year": number
}`)

	return sb.String()
}

