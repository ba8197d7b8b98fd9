package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/pkg/logger"

	"github.com/shopspring/decimal"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("invalid transaction")

// ValidationError reports a rejected transaction field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LedgerService records trades and derives holdings from them.
type LedgerService interface {
	Record(ctx context.Context, req dto.RecordTransactionRequest) (*entity.Transaction, error)
	HoldingsFor(ctx context.Context, param dto.GetHoldingsParam) ([]dto.Holding, error)
	Transactions(ctx context.Context, param dto.GetTransactionsParam) ([]entity.Transaction, error)
}

type ledgerService struct {
	transactionRepo repository.TransactionRepository
	logger          *logger.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(transactionRepo repository.TransactionRepository, logger *logger.Logger) LedgerService {
	return &ledgerService{
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// Record validates and stores one trade. Transactions are never updated afterwards.
func (s *ledgerService) Record(ctx context.Context, req dto.RecordTransactionRequest) (*entity.Transaction, error) {
	if err := validateTransaction(req); err != nil {
		return nil, err
	}

	transaction := &entity.Transaction{
		UserID:    strings.TrimSpace(req.UserID),
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Name:      strings.TrimSpace(req.Name),
		Market:    req.Market,
		Action:    req.Action,
		Price:     req.Price,
		Shares:    req.Shares,
		TradeDate: req.TradeDate,
	}
	if err := s.transactionRepo.Create(ctx, transaction); err != nil {
		s.logger.Error("Failed to record transaction", logger.ErrorField(err), logger.StringField("user_id", transaction.UserID), logger.StringField("symbol", transaction.Symbol))
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	s.logger.Info("Transaction recorded",
		logger.StringField("user_id", transaction.UserID),
		logger.StringField("symbol", transaction.Symbol),
		logger.StringField("action", string(transaction.Action)),
		logger.Field("shares", transaction.Shares),
	)
	return transaction, nil
}

func validateTransaction(req dto.RecordTransactionRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return &ValidationError{Field: "user_id", Reason: "is required"}
	case strings.TrimSpace(req.Symbol) == "":
		return &ValidationError{Field: "symbol", Reason: "is required"}
	case !req.Market.IsValid():
		return &ValidationError{Field: "market", Reason: fmt.Sprintf("unknown market %q", req.Market)}
	case !req.Action.IsValid():
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", req.Action)}
	case !req.Price.IsPositive():
		return &ValidationError{Field: "price", Reason: "must be greater than zero"}
	case req.Shares <= 0:
		return &ValidationError{Field: "shares", Reason: "must be greater than zero"}
	case req.TradeDate.IsZero():
		return &ValidationError{Field: "trade_date", Reason: "is required"}
	}
	return nil
}

// HoldingsFor returns the user's open positions, largest cost first.
func (s *ledgerService) HoldingsFor(ctx context.Context, param dto.GetHoldingsParam) ([]dto.Holding, error) {
	transactions, err := s.transactionRepo.Get(ctx, dto.GetTransactionsParam{UserID: param.UserID})
	if err != nil {
		s.logger.Error("Failed to load ledger", logger.ErrorField(err), logger.StringField("user_id", param.UserID))
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	holdings := AggregateHoldings(transactions)
	if len(param.Markets) == 0 {
		return holdings, nil
	}

	filtered := make([]dto.Holding, 0, len(holdings))
	for _, h := range holdings {
		for _, m := range param.Markets {
			if h.Market == m {
				filtered = append(filtered, h)
				break
			}
		}
	}
	return filtered, nil
}

func (s *ledgerService) Transactions(ctx context.Context, param dto.GetTransactionsParam) ([]entity.Transaction, error) {
	transactions, err := s.transactionRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return transactions, nil
}

// AggregateHoldings folds a ledger into holdings. Positions whose net share
// count is not positive are dropped. The result is sorted by total cost
// descending, then by symbol.
func AggregateHoldings(transactions []entity.Transaction) []dto.Holding {
	byKey := map[string]*dto.Holding{}
	var order []string

	for _, t := range transactions {
		h := dto.Holding{Symbol: t.Symbol, Market: t.Market}
		key := h.Key()
		agg, ok := byKey[key]
		if !ok {
			agg = &h
			byKey[key] = agg
			order = append(order, key)
		}

		if t.Name != "" {
			agg.Name = t.Name
		}
		if t.TradeDate.After(agg.LastTradeDate) {
			agg.LastTradeDate = t.TradeDate
		}
		agg.TotalCost = agg.TotalCost.Add(t.Amount())
		if t.Action == entity.ActionBuy {
			agg.NetShares += t.Shares
			agg.BuyShares += t.Shares
			agg.BuyAmount = agg.BuyAmount.Add(t.Amount())
		} else {
			agg.NetShares -= t.Shares
		}
	}

	holdings := make([]dto.Holding, 0, len(order))
	for _, key := range order {
		h := byKey[key]
		if h.NetShares <= 0 {
			continue
		}
		if h.BuyShares > 0 {
			h.AvgCost = h.BuyAmount.Div(decimal.NewFromInt(h.BuyShares))
		}
		holdings = append(holdings, *h)
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if c := holdings[i].TotalCost.Cmp(holdings[j].TotalCost); c != 0 {
			return c > 0
		}
		if holdings[i].Symbol != holdings[j].Symbol {
			return holdings[i].Symbol < holdings[j].Symbol
		}
		return holdings[i].Market < holdings[j].Market
	})
	return holdings
}
