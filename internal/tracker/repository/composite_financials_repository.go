package repository

import (
	"context"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"
)

// valuationInputs are the metrics whose absence triggers an estimate.
var valuationInputs = []string{"eps", "book_value_per_share", "fcf_per_share", "roe", "profit_growth", "debt_ratio"}

type compositeFinancialsRepository struct {
	measured  FinancialsRepository
	estimator FinancialsEstimator
	logger    *logger.Logger
}

// NewCompositeFinancialsRepository prefers measured values and asks the
// estimator only for what is still missing. estimator may be nil.
func NewCompositeFinancialsRepository(measured FinancialsRepository, estimator FinancialsEstimator, log *logger.Logger) FinancialsRepository {
	return &compositeFinancialsRepository{
		measured:  measured,
		estimator: estimator,
		logger:    log,
	}
}

func (r *compositeFinancialsRepository) GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, error) {
	fin, err := r.measured.GetFinancials(ctx, symbol, market)
	if err != nil {
		r.logger.Warn("Measured financials unavailable", logger.ErrorField(err), logger.StringField("symbol", symbol))
		if r.estimator == nil {
			return nil, err
		}
		fin = &dto.Financials{Symbol: symbol, Market: market}
	}

	if r.estimator == nil || !missingAny(fin) {
		return fin, nil
	}

	est, err := r.estimator.Estimate(ctx, symbol, market, fin)
	if err != nil {
		r.logger.Warn("Financials estimate unavailable", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return fin, nil
	}
	fin.Merge(est)
	if fin.FetchedAt.IsZero() {
		fin.FetchedAt = est.FetchedAt
	}
	return fin, nil
}

func missingAny(fin *dto.Financials) bool {
	metrics := fin.MetricNames()
	for _, name := range valuationInputs {
		if !metrics[name].Present() {
			return true
		}
	}
	return false
}
