package telegram

import (
	"fmt"
	"strings"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/utils"
)

const maxMessageLen = 4090

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape makes free text safe for legacy Markdown.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatCycleReport renders a cycle report as one or more Markdown messages,
// each no longer than the Telegram limit.
func FormatCycleReport(report *dto.CycleReport) []string {
	title := "🔄 *Portfolio Update*"
	if report.FirstRun {
		title = "🆕 *Portfolio Valuation (first analysis)*"
	}

	var head strings.Builder
	head.WriteString(title + "\n")
	head.WriteString(fmt.Sprintf("🕒 %s\n", utils.PrettyDate(report.FinishedAt)))
	head.WriteString(FormatMarketStatus(report.OpenMarkets) + "\n")

	if len(report.Holdings) == 0 {
		head.WriteString("📌 No open positions.\n")
		return []string{head.String()}
	}

	pnlEmoji := "📈"
	if report.TotalPnL < 0 {
		pnlEmoji = "📉"
	}
	head.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	head.WriteString("💰 *Overview*\n")
	head.WriteString(fmt.Sprintf("• Cost: %.2f\n", report.TotalCost))
	head.WriteString(fmt.Sprintf("• Value: %.2f\n", report.TotalValue))
	head.WriteString(fmt.Sprintf("%s P&L: %+.2f (%+.2f%%)\n\n", pnlEmoji, report.TotalPnL, report.TotalPnLPct))

	entries := []string{head.String()}
	if len(report.Events) > 0 {
		entries = append(entries, formatEvents(report.Events))
	}
	for i, line := range report.Holdings {
		entries = append(entries, formatHolding(i+1, line))
	}
	if report.SnapshotErr != "" {
		entries = append(entries, "⚠️ Alert state could not be saved, alerts may repeat next cycle.\n")
	}

	return splitMessages(entries, func(part int) string {
		return fmt.Sprintf("---*Portfolio report part %d*---\n\n", part)
	})
}

// FormatMarketStatus lists every market with its trading status.
func FormatMarketStatus(open []entity.Market) string {
	var parts []string
	for _, m := range entity.Markets {
		status := "🔴"
		for _, o := range open {
			if o == m {
				status = "🟢"
				break
			}
		}
		parts = append(parts, fmt.Sprintf("%s %s", status, m.DisplayName()))
	}
	return strings.Join(parts, " | ")
}

func formatEvents(events []dto.AlertEvent) string {
	var sb strings.Builder
	sb.WriteString("🔔 *Alerts*\n")
	for _, e := range events {
		switch e.Kind {
		case dto.AlertNewPosition:
			sb.WriteString(fmt.Sprintf("• 🆕 %s new position (%+.2f%%)\n", escape(e.Symbol), e.Magnitude))
		case dto.AlertPriceChange:
			sb.WriteString(fmt.Sprintf("• 🔀 %s P&L moved %+.2f pts\n", escape(e.Symbol), e.Magnitude))
		case dto.AlertProfit:
			sb.WriteString(fmt.Sprintf("• 🎯 %s reached profit target (%+.2f%%)\n", escape(e.Symbol), e.Magnitude))
		case dto.AlertLoss:
			sb.WriteString(fmt.Sprintf("• ⚠️ %s hit loss limit (%+.2f%%)\n", escape(e.Symbol), e.Magnitude))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatHolding(n int, line dto.HoldingReport) string {
	h := line.Holding
	var sb strings.Builder

	name := h.Symbol
	if h.Name != "" {
		name = fmt.Sprintf("%s (%s)", h.Name, h.Symbol)
	}
	sb.WriteString(fmt.Sprintf("%d. *%s* · %s\n", n, escape(name), h.Market.DisplayName()))
	sb.WriteString(fmt.Sprintf("   • Shares: %d | Avg cost: %.2f\n", h.NetShares, h.AvgCostFloat()))

	pnlEmoji := "📈"
	if line.PnL < 0 {
		pnlEmoji = "📉"
	}
	sb.WriteString(fmt.Sprintf("   • Price: %.2f (%s)\n", line.Price, escape(line.PriceSource)))
	sb.WriteString(fmt.Sprintf("   %s P&L: %+.2f (%+.2f%%)\n", pnlEmoji, line.PnL, line.PnLPercent))

	switch line.Status {
	case dto.HoldingStatusEstimateOnly:
		sb.WriteString("   ⚠️ _Estimate only, low confidence_\n")
	case dto.HoldingStatusPersistFailed:
		sb.WriteString("   ⚠️ _Valuation not saved, no alerts for this holding_\n")
	}

	if v := line.Valuation; v != nil {
		mosEmoji := "🔴"
		switch {
		case v.MarginOfSafety > 0.3:
			mosEmoji = "🟢"
		case v.MarginOfSafety > 0:
			mosEmoji = "🟡"
		}
		sb.WriteString(fmt.Sprintf("   %s %s | Intrinsic: %.2f | MOS: %+.1f%%\n", mosEmoji, escape(string(v.Recommendation)), v.IntrinsicValue, v.MarginOfSafety*100))
		sb.WriteString(fmt.Sprintf("   • Quality: %.0f (%s) | Confidence: %s\n", v.QualityScore, v.QualityRating, v.Confidence))
		if len(v.EstimatedMetrics) > 0 {
			sb.WriteString(fmt.Sprintf("   • Estimated: %s\n", escape(strings.Join(v.EstimatedMetrics, ", "))))
		}
	}

	if c := line.Change; c != nil && !c.First {
		sb.WriteString(fmt.Sprintf("   📊 Since %d day(s): price %+.2f%%, intrinsic %+.2f%%, MOS %+.2f pts\n",
			c.Days, c.PriceChange*100, c.IntrinsicChange*100, c.MOSChange*100))
		switch {
		case c.PriceDriven && c.FundamentalDriven:
			sb.WriteString("   💡 Driven by both price and fundamentals\n")
		case c.PriceDriven:
			sb.WriteString("   💡 Mostly market sentiment / price movement\n")
		case c.FundamentalDriven:
			sb.WriteString("   💡 Company fundamentals changed\n")
		default:
			sb.WriteString("   💡 Small change, keep watching\n")
		}
		if c.AdjustedRecommendation != c.BaseRecommendation {
			sb.WriteString(fmt.Sprintf("   👉 %s\n", escape(string(c.AdjustedRecommendation))))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// splitMessages packs entries into messages under the length limit. Every
// part after the first starts with header(part). An entry is never split.
func splitMessages(entries []string, header func(part int) string) []string {
	var messages []string
	var current strings.Builder
	part := 1

	for _, entry := range entries {
		if current.Len() > 0 && current.Len()+len(entry) > maxMessageLen {
			messages = append(messages, current.String())
			part++
			current.Reset()
			current.WriteString(header(part))
		}
		current.WriteString(entry)
	}
	if current.Len() > 0 {
		messages = append(messages, current.String())
	}
	return messages
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, errMsg, data)
}
