package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransactionRepo struct {
	rows      []entity.Transaction
	createErr error
	getErr    error
}

func (f *fakeTransactionRepo) Create(ctx context.Context, transaction *entity.Transaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	transaction.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, *transaction)
	return nil
}

func (f *fakeTransactionRepo) Get(ctx context.Context, param dto.GetTransactionsParam) ([]entity.Transaction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []entity.Transaction
	for _, t := range f.rows {
		if t.UserID != param.UserID {
			continue
		}
		if param.Symbol != nil && t.Symbol != *param.Symbol {
			continue
		}
		if param.Market != nil && t.Market != *param.Market {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func trade(symbol string, market entity.Market, action entity.Action, price string, shares int64, day int) entity.Transaction {
	return entity.Transaction{
		UserID:    "alice",
		Symbol:    symbol,
		Market:    market,
		Action:    action,
		Price:     decimal.RequireFromString(price),
		Shares:    shares,
		TradeDate: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregateHoldings(t *testing.T) {
	t.Run("single buy", func(t *testing.T) {
		got := AggregateHoldings([]entity.Transaction{
			trade("600000", entity.MarketCNA, entity.ActionBuy, "10", 100, 1),
		})
		require.Len(t, got, 1)
		assert.Equal(t, int64(100), got[0].NetShares)
		assert.True(t, decimal.NewFromInt(10).Equal(got[0].AvgCost))
		assert.True(t, decimal.NewFromInt(1000).Equal(got[0].TotalCost))
	})

	t.Run("buy then partial sell", func(t *testing.T) {
		got := AggregateHoldings([]entity.Transaction{
			trade("600000", entity.MarketCNA, entity.ActionBuy, "10", 100, 1),
			trade("600000", entity.MarketCNA, entity.ActionBuy, "13", 50, 2),
			trade("600000", entity.MarketCNA, entity.ActionSell, "14", 60, 3),
		})
		require.Len(t, got, 1)
		assert.Equal(t, int64(90), got[0].NetShares)
		// (10*100 + 13*50) / 150 = 11
		assert.True(t, decimal.NewFromInt(11).Equal(got[0].AvgCost), got[0].AvgCost.String())
		// 1000 + 650 - 840
		assert.True(t, decimal.NewFromInt(810).Equal(got[0].TotalCost), got[0].TotalCost.String())
		assert.Equal(t, 3, got[0].LastTradeDate.Day())
		assert.InDelta(t, 990.0, got[0].CostBasis(), 1e-9)
	})

	t.Run("buy then full sell", func(t *testing.T) {
		got := AggregateHoldings([]entity.Transaction{
			trade("600000", entity.MarketCNA, entity.ActionBuy, "10", 100, 1),
			trade("600000", entity.MarketCNA, entity.ActionSell, "12", 100, 2),
		})
		assert.Empty(t, got)
	})

	t.Run("sorted by total cost", func(t *testing.T) {
		got := AggregateHoldings([]entity.Transaction{
			trade("AAPL", entity.MarketUS, entity.ActionBuy, "190.5", 10, 1),
			trade("00700", entity.MarketHK, entity.ActionBuy, "320", 100, 1),
			trade("510300", entity.MarketFund, entity.ActionBuy, "3.9", 1000, 1),
			trade("000001", entity.MarketCNA, entity.ActionBuy, "3.9", 1000, 1),
		})
		var symbols []string
		for _, h := range got {
			symbols = append(symbols, h.Symbol)
		}
		assert.Equal(t, []string{"00700", "000001", "510300", "AAPL"}, symbols)
	})
}

func TestLedgerService_Record(t *testing.T) {
	repo := &fakeTransactionRepo{}
	svc := NewLedgerService(repo, logger.NewNop())
	ctx := context.Background()

	valid := dto.RecordTransactionRequest{
		UserID:    "alice",
		Symbol:    " aapl ",
		Market:    entity.MarketUS,
		Action:    entity.ActionBuy,
		Price:     decimal.RequireFromString("190.5"),
		Shares:    10,
		TradeDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	tx, err := svc.Record(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tx.Symbol)
	assert.Len(t, repo.rows, 1)

	tests := []struct {
		name   string
		mutate func(*dto.RecordTransactionRequest)
		field  string
	}{
		{"blank user", func(r *dto.RecordTransactionRequest) { r.UserID = " " }, "user_id"},
		{"blank symbol", func(r *dto.RecordTransactionRequest) { r.Symbol = "" }, "symbol"},
		{"unknown market", func(r *dto.RecordTransactionRequest) { r.Market = "LSE" }, "market"},
		{"unknown action", func(r *dto.RecordTransactionRequest) { r.Action = "short" }, "action"},
		{"zero price", func(r *dto.RecordTransactionRequest) { r.Price = decimal.Zero }, "price"},
		{"negative price", func(r *dto.RecordTransactionRequest) { r.Price = decimal.NewFromInt(-1) }, "price"},
		{"zero shares", func(r *dto.RecordTransactionRequest) { r.Shares = 0 }, "shares"},
		{"missing date", func(r *dto.RecordTransactionRequest) { r.TradeDate = time.Time{} }, "trade_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := svc.Record(ctx, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Len(t, repo.rows, 1)

	repo.createErr = errors.New("db down")
	_, err = svc.Record(ctx, valid)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestLedgerService_HoldingsFor(t *testing.T) {
	repo := &fakeTransactionRepo{rows: []entity.Transaction{
		trade("600000", entity.MarketCNA, entity.ActionBuy, "10", 100, 1),
		trade("AAPL", entity.MarketUS, entity.ActionBuy, "190", 10, 1),
	}}
	svc := NewLedgerService(repo, logger.NewNop())

	all, err := svc.HoldingsFor(context.Background(), dto.GetHoldingsParam{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	us, err := svc.HoldingsFor(context.Background(), dto.GetHoldingsParam{UserID: "alice", Markets: []entity.Market{entity.MarketUS}})
	require.NoError(t, err)
	require.Len(t, us, 1)
	assert.Equal(t, "AAPL", us[0].Symbol)

	repo.getErr = errors.New("db down")
	_, err = svc.HoldingsFor(context.Background(), dto.GetHoldingsParam{UserID: "alice"})
	assert.Error(t, err)
}
