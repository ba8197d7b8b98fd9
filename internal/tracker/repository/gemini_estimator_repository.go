package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"

	"github.com/kaptinlin/jsonrepair"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// TextGenerator produces a text completion for a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// FinancialsEstimator fills missing financials with model estimates.
type FinancialsEstimator interface {
	Estimate(ctx context.Context, symbol string, market entity.Market, known *dto.Financials) (*dto.Financials, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator wraps a genai client as a TextGenerator that asks for JSON output.
func NewGeminiGenerator(client *genai.Client, model string) TextGenerator {
	return &geminiGenerator{client: client, model: model}
}

func (g *geminiGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

type geminiEstimatorRepository struct {
	generator      TextGenerator
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	now            func() time.Time
}

// NewGeminiEstimatorRepository creates an estimator backed by a text generator.
func NewGeminiEstimatorRepository(cfg *config.Config, log *logger.Logger, generator TextGenerator) FinancialsEstimator {
	perMinute := cfg.Gemini.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return &geminiEstimatorRepository{
		generator:      generator,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		now:            time.Now,
	}
}

type estimatedFinancials struct {
	EPS               *float64 `json:"eps"`
	BookValuePerShare *float64 `json:"book_value_per_share"`
	FCFPerShare       *float64 `json:"fcf_per_share"`
	ROE               *float64 `json:"roe"`
	ROA               *float64 `json:"roa"`
	DebtRatio         *float64 `json:"debt_ratio"`
	CurrentRatio      *float64 `json:"current_ratio"`
	RevenueGrowth     *float64 `json:"revenue_growth"`
	ProfitGrowth      *float64 `json:"profit_growth"`
	DividendYield     *float64 `json:"dividend_yield"`
	GrossMargin       *float64 `json:"gross_margin"`
	NetMargin         *float64 `json:"net_margin"`
	FiscalYear        *float64 `json:"fiscal_year"`
}

func (r *geminiEstimatorRepository) Estimate(ctx context.Context, symbol string, market entity.Market, known *dto.Financials) (*dto.Financials, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	prompt := BuildEstimateFinancialsPrompt(symbol, market, known)
	response, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		r.logger.Error("Failed to estimate financials", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return nil, err
	}

	fin, err := ParseEstimatedFinancials(response)
	if err != nil {
		r.logger.Error("Failed to parse estimated financials", logger.ErrorField(err), logger.StringField("symbol", symbol), logger.StringField("response", response))
		return nil, err
	}
	fin.Symbol = symbol
	fin.Market = market
	fin.FetchedAt = r.now()
	return fin, nil
}

// ParseEstimatedFinancials repairs and decodes a model response. Every value it
// yields is tagged as estimated.
func ParseEstimatedFinancials(response string) (*dto.Financials, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to repair json: %w", err)
	}

	var raw estimatedFinancials
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal estimated financials: %w", err)
	}

	fin := &dto.Financials{
		EPS:               estimated(raw.EPS),
		BookValuePerShare: estimated(raw.BookValuePerShare),
		FCFPerShare:       estimated(raw.FCFPerShare),
		ROE:               estimated(raw.ROE),
		ROA:               estimated(raw.ROA),
		DebtRatio:         estimated(raw.DebtRatio),
		CurrentRatio:      estimated(raw.CurrentRatio),
		RevenueGrowth:     estimated(raw.RevenueGrowth),
		ProfitGrowth:      estimated(raw.ProfitGrowth),
		DividendYield:     estimated(raw.DividendYield),
		GrossMargin:       estimated(raw.GrossMargin),
		NetMargin:         estimated(raw.NetMargin),
	}
	if raw.FiscalYear != nil {
		fin.FiscalYear = int(*raw.FiscalYear)
	}
	return fin, nil
}

func estimated(v *float64) dto.Metric {
	if v == nil {
		return dto.Metric{}
	}
	return dto.Estimated(*v)
}
