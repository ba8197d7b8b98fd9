package entity

import (
	"fmt"
	"strings"
)

// Market is a trading venue a symbol is listed on.
type Market string

const (
	MarketCNA  Market = "CN_A"
	MarketHK   Market = "HK"
	MarketUS   Market = "US"
	MarketFund Market = "FUND"
)

// Markets lists every supported venue.
var Markets = []Market{MarketCNA, MarketHK, MarketUS, MarketFund}

func (m Market) IsValid() bool {
	switch m {
	case MarketCNA, MarketHK, MarketUS, MarketFund:
		return true
	}
	return false
}

// Valuable reports whether holdings on this market get an intrinsic value.
// Funds are tracked for P&L only.
func (m Market) Valuable() bool {
	return m != MarketFund
}

// DisplayName returns the human label used in reports.
func (m Market) DisplayName() string {
	switch m {
	case MarketCNA:
		return "A-Share"
	case MarketHK:
		return "HK"
	case MarketUS:
		return "US"
	case MarketFund:
		return "Fund"
	}
	return string(m)
}

// Action is the side of a transaction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

func (a Action) IsValid() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseMarkets reads a comma separated market list, case insensitive.
// An empty string yields no filter.
func ParseMarkets(raw string) ([]Market, error) {
	var markets []Market
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		m := Market(part)
		if !m.IsValid() {
			return nil, fmt.Errorf("unknown market %q", part)
		}
		markets = append(markets, m)
	}
	return markets, nil
}
