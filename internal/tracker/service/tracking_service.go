package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/pkg/logger"
	"golang-stock-valuation/pkg/telegram"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrPersistence matches every *PersistenceError.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError is a failed read or write of the valuation history for one symbol.
type PersistenceError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s valuation for %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NotificationSink delivers a text message to a user.
type NotificationSink interface {
	Send(ctx context.Context, userID, text string) error
}

// Price sources reported per holding.
const (
	PriceSourceLive          = "live"
	PriceSourceStale         = "stale"
	PriceSourceLastValuation = "last_valuation"
	PriceSourceAvgCost       = "avg_cost"
)

// TrackingService runs tracking cycles: it values every holding of a user,
// appends the valuations to the history and raises alerts.
type TrackingService interface {
	RunCycle(ctx context.Context, req dto.RunCycleRequest) (*dto.CycleReport, error)
}

// TrackingServiceConfig holds the cycle tuning and the clock.
type TrackingServiceConfig struct {
	MaxConcurrentFetches int
	Now                  func() time.Time
}

// TrackingDeps are the collaborators of the tracking service.
type TrackingDeps struct {
	Ledger        LedgerService
	MarketData    MarketDataCache
	Hours         *MarketHours
	Engine        *ValuationEngine
	Analyzer      *ChangeAnalyzer
	Policy        *AlertPolicy
	ValuationRepo repository.ValuationRepository
	SnapshotRepo  repository.AlertSnapshotRepository
	UserLocker    Locker
	SymbolLocker  Locker
	Sink          NotificationSink
}

type trackingService struct {
	cfg TrackingServiceConfig
	TrackingDeps
	logger *logger.Logger
}

// NewTrackingService creates a new tracking service. Nil lockers default to
// in-process keyed mutexes.
func NewTrackingService(cfg TrackingServiceConfig, deps TrackingDeps, log *logger.Logger) TrackingService {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.UserLocker == nil {
		deps.UserLocker = NewKeyedMutex()
	}
	if deps.SymbolLocker == nil {
		deps.SymbolLocker = NewKeyedMutex()
	}
	return &trackingService{
		cfg:          cfg,
		TrackingDeps: deps,
		logger:       log,
	}
}

type marketData struct {
	quote      *dto.Quote
	financials *dto.Financials
}

// RunCycle executes one tracking cycle for a user. The report is best effort:
// holdings without data are reported as estimates, failed writes are marked
// on the holding. An error is returned only when the cycle could not run at all.
func (s *trackingService) RunCycle(ctx context.Context, req dto.RunCycleRequest) (*dto.CycleReport, error) {
	if req.CycleID == uuid.Nil {
		req.CycleID = uuid.New()
	}
	if req.Trigger == "" {
		req.Trigger = dto.TriggerScheduled
	}
	ctx = logger.WithContext(ctx, logger.StringField("cycle_id", req.CycleID.String()), logger.StringField("user_id", req.UserID))

	now := s.cfg.Now()
	report := &dto.CycleReport{
		CycleID:     req.CycleID,
		UserID:      req.UserID,
		Trigger:     req.Trigger,
		Force:       req.Force,
		StartedAt:   now,
		OpenMarkets: s.Hours.OpenMarkets(now),
		Holdings:    []dto.HoldingReport{},
		Events:      []dto.AlertEvent{},
	}

	unlock, err := s.UserLocker.Lock(ctx, req.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to acquire user lock", logger.ErrorField(err))
		return nil, fmt.Errorf("failed to acquire lock for user %s: %w", req.UserID, err)
	}
	defer unlock()

	all, err := s.Ledger.HoldingsFor(ctx, dto.GetHoldingsParam{UserID: req.UserID})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load holdings", logger.ErrorField(err))
		return nil, err
	}

	holdings := s.selectHoldings(all, req, report.OpenMarkets)
	if len(holdings) == 0 && !req.Force {
		report.Skipped = true
		report.FinishedAt = s.cfg.Now()
		s.logger.InfoContext(ctx, "No holdings in an open market, skipping cycle", logger.IntField("holdings", len(all)))
		return report, nil
	}

	data := s.fetch(ctx, holdings, req.Force)

	firstRun := true
	for i, h := range holdings {
		line := s.valueHolding(ctx, h, data[i])
		if line.Change != nil && !line.Change.First {
			firstRun = false
		}
		report.Holdings = append(report.Holdings, line)
	}
	report.FirstRun = firstRun && len(report.Holdings) > 0
	s.totals(report)

	s.evaluateAlerts(ctx, report, all, s.cfg.Now())

	report.FinishedAt = s.cfg.Now()
	if len(report.Events) > 0 || req.Force {
		s.notify(ctx, report)
	}

	s.logger.InfoContext(ctx, "Tracking cycle finished",
		logger.IntField("holdings", len(report.Holdings)),
		logger.IntField("events", len(report.Events)),
		logger.BoolField("notified", report.Notified),
		logger.DurationField("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// selectHoldings applies the market filter and, for unforced cycles, the
// trading-hours gate.
func (s *trackingService) selectHoldings(all []dto.Holding, req dto.RunCycleRequest, open []entity.Market) []dto.Holding {
	selected := make([]dto.Holding, 0, len(all))
	for _, h := range all {
		if len(req.Markets) > 0 && !containsMarket(req.Markets, h.Market) {
			continue
		}
		if !req.Force && !containsMarket(open, h.Market) {
			continue
		}
		selected = append(selected, h)
	}
	return selected
}

func containsMarket(markets []entity.Market, m entity.Market) bool {
	for _, candidate := range markets {
		if candidate == m {
			return true
		}
	}
	return false
}

// fetch loads quotes and financials for every holding concurrently.
func (s *trackingService) fetch(ctx context.Context, holdings []dto.Holding, force bool) []marketData {
	data := make([]marketData, len(holdings))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentFetches)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			var quote *dto.Quote
			var ok bool
			if force {
				quote, ok = s.MarketData.GetQuoteForced(ctx, h.Symbol, h.Market)
			} else {
				quote, ok = s.MarketData.GetQuote(ctx, h.Symbol, h.Market)
			}
			if ok {
				data[i].quote = quote
			}
			if h.Market.Valuable() {
				if fin, ok := s.MarketData.GetFinancials(ctx, h.Symbol, h.Market); ok {
					data[i].financials = fin
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return data
}

func (s *trackingService) valueHolding(ctx context.Context, h dto.Holding, md marketData) dto.HoldingReport {
	line := dto.HoldingReport{Holding: h}

	if md.quote == nil || md.quote.Price <= 0 {
		s.estimateOnly(ctx, &line, md)
		return line
	}

	line.Price = md.quote.Price
	line.PriceSource = PriceSourceLive
	if md.quote.Stale {
		line.PriceSource = PriceSourceStale
	}
	if line.Holding.Name == "" {
		line.Holding.Name = md.quote.Name
	}
	fillPnL(&line)

	if !h.Market.Valuable() {
		line.Status = dto.HoldingStatusNotApplicable
		return line
	}

	if err := s.appendValuation(ctx, &line, md); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist valuation", logger.ErrorField(err), logger.StringField("symbol", h.Symbol))
		line.Status = dto.HoldingStatusPersistFailed
		line.Error = err.Error()
		return line
	}
	line.Status = dto.HoldingStatusOK
	return line
}

// appendValuation reads the previous record, values the holding and appends
// the new record, all under the symbol lock so the history stays ordered.
// The analysis date is taken under the lock: cycles of other users may have
// appended to the same symbol while this one was fetching.
func (s *trackingService) appendValuation(ctx context.Context, line *dto.HoldingReport, md marketData) error {
	h := line.Holding
	unlock, err := s.SymbolLocker.Lock(ctx, h.Key())
	if err != nil {
		return &PersistenceError{Op: "lock", Symbol: h.Symbol, Err: err}
	}
	defer unlock()

	previous, err := s.ValuationRepo.Latest(ctx, h.Symbol, h.Market)
	if err != nil {
		return &PersistenceError{Op: "read", Symbol: h.Symbol, Err: err}
	}
	analyzedAt := analysisDate(s.cfg.Now(), previous)

	result := s.Engine.Evaluate(dto.ValuationInput{
		Symbol:     h.Symbol,
		Market:     h.Market,
		Price:      line.Price,
		Financials: md.financials,
		StaleQuote: md.quote.Stale,
	})
	record := result.ToRecord(h.Symbol, h.Market, analyzedAt)
	line.Valuation = result
	line.Change = s.Analyzer.Analyze(record, previous)

	// Nothing is written once the cycle has been cancelled.
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "append", Symbol: h.Symbol, Err: err}
	}
	if err := s.ValuationRepo.Append(ctx, record); err != nil {
		return &PersistenceError{Op: "append", Symbol: h.Symbol, Err: err}
	}
	line.Record = record
	return nil
}

// analysisDate truncates now to the storage precision and keeps it strictly
// after the previous record, which another process may have stamped with a
// clock running slightly ahead.
func analysisDate(now time.Time, previous *entity.ValuationRecord) time.Time {
	at := now.Truncate(time.Microsecond)
	if previous != nil && !at.After(previous.AnalysisDate) {
		at = previous.AnalysisDate.Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return at
}

// estimateOnly reports a holding without a usable quote. The price falls back
// to the last valued price, then to the average cost.
func (s *trackingService) estimateOnly(ctx context.Context, line *dto.HoldingReport, md marketData) {
	h := line.Holding
	line.Status = dto.HoldingStatusEstimateOnly
	line.Price = h.AvgCostFloat()
	line.PriceSource = PriceSourceAvgCost

	if h.Market.Valuable() {
		previous, err := s.ValuationRepo.Latest(ctx, h.Symbol, h.Market)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to read last valuation", logger.ErrorField(err), logger.StringField("symbol", h.Symbol))
		} else if previous != nil && previous.CurrentPrice > 0 {
			line.Price = previous.CurrentPrice
			line.PriceSource = PriceSourceLastValuation
		}
	}
	fillPnL(line)

	if h.Market.Valuable() && line.Price > 0 {
		result := s.Engine.Evaluate(dto.ValuationInput{
			Symbol:     h.Symbol,
			Market:     h.Market,
			Price:      line.Price,
			Financials: md.financials,
			StaleQuote: true,
		})
		line.Valuation = result
	}
	s.logger.WarnContext(ctx, "No quote available, reporting estimate", logger.StringField("symbol", h.Symbol), logger.StringField("price_source", line.PriceSource))
}

func fillPnL(line *dto.HoldingReport) {
	h := line.Holding
	cost := h.CostBasis()
	line.CurrentValue = line.Price * float64(h.NetShares)
	line.PnL = line.CurrentValue - cost
	if cost > 0 {
		line.PnLPercent = line.PnL / cost * 100
	}
}

func (s *trackingService) totals(report *dto.CycleReport) {
	for _, line := range report.Holdings {
		report.TotalCost += line.Holding.CostBasis()
		report.TotalValue += line.CurrentValue
	}
	report.TotalPnL = report.TotalValue - report.TotalCost
	if report.TotalCost > 0 {
		report.TotalPnLPct = report.TotalPnL / report.TotalCost * 100
	}
}

// evaluateAlerts runs the alert policy over the holdings that were valued and
// persisted, then replaces the user's snapshot. Rows of holdings that were not
// evaluated in this cycle are kept; rows of closed positions are dropped.
func (s *trackingService) evaluateAlerts(ctx context.Context, report *dto.CycleReport, all []dto.Holding, now time.Time) {
	previous, err := s.SnapshotRepo.GetByUser(ctx, report.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load alert snapshot", logger.ErrorField(err))
		report.SnapshotErr = err.Error()
		return
	}
	snapshots := make(map[string]entity.AlertSnapshot, len(previous))
	for _, row := range previous {
		snapshots[row.Key()] = row
	}

	var states []dto.AlertState
	for _, line := range report.Holdings {
		if !line.Alertable() {
			continue
		}
		state := dto.AlertState{
			Symbol:     line.Holding.Symbol,
			Market:     line.Holding.Market,
			Price:      line.Price,
			PnLPercent: round2(line.PnLPercent),
		}
		if line.Valuation != nil {
			mos := line.Valuation.MarginOfSafety
			state.MarginOfSafety = &mos
		}
		states = append(states, state)
	}
	report.Events = s.Policy.Evaluate(states, snapshots)

	keep := make([]string, 0, len(all))
	for _, h := range all {
		keep = append(keep, h.Key())
	}
	if err := s.SnapshotRepo.Replace(ctx, report.UserID, s.Policy.Snapshots(report.UserID, states, now), keep); err != nil {
		s.logger.ErrorContext(ctx, "Failed to replace alert snapshot", logger.ErrorField(err))
		report.SnapshotErr = err.Error()
	}
}

func (s *trackingService) notify(ctx context.Context, report *dto.CycleReport) {
	if s.Sink == nil {
		return
	}
	for _, text := range telegram.FormatCycleReport(report) {
		if err := s.Sink.Send(ctx, report.UserID, text); err != nil {
			s.logger.WarnContext(ctx, "Failed to send notification", logger.ErrorField(err))
			report.NotifyErr = err.Error()
			return
		}
	}
	report.Notified = true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
