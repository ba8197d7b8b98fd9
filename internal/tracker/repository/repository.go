package repository

import (
	"context"
	"errors"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
)

var (
	// ErrOutOfOrder is returned when a valuation is not newer than the latest stored one.
	ErrOutOfOrder = errors.New("valuation analysis date is not after the latest record")
	// ErrNotFound is returned when a provider has no data for a symbol.
	ErrNotFound = errors.New("not found")
)

// QuoteRepository fetches live quotes.
type QuoteRepository interface {
	GetQuote(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, error)
}

// FinancialsRepository fetches financial statement data.
type FinancialsRepository interface {
	GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, error)
}
