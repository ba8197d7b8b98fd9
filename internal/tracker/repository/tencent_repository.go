package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/config"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/pkg/logger"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// Field positions in the "~"-separated quote payload.
const (
	tencentFieldName          = 1
	tencentFieldPrice         = 3
	tencentFieldPrevClose     = 4
	tencentFieldOpen          = 5
	tencentFieldVolume        = 6
	tencentFieldChangePercent = 32
	tencentFieldHigh          = 33
	tencentFieldLow           = 34
	tencentFieldPE            = 39
	tencentFieldMarketCap     = 44
	tencentFieldPB            = 46
)

// TencentRepository reads quotes and valuation ratios from the Tencent quote endpoint.
type TencentRepository interface {
	QuoteRepository
	FinancialsRepository
}

type tencentRepository struct {
	client         *http.Client
	baseURL        string
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	now            func() time.Time
}

// NewTencentRepository creates a new Tencent quote repository.
func NewTencentRepository(cfg *config.Config, log *logger.Logger) TencentRepository {
	perMinute := cfg.Tencent.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	timeout := cfg.Tencent.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &tencentRepository{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:        strings.TrimRight(cfg.Tencent.BaseURL, "/"),
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		now:            time.Now,
	}
}

// TencentCode maps a symbol to the prefixed code the endpoint expects.
func TencentCode(symbol string, market entity.Market) string {
	code := strings.TrimSpace(symbol)
	switch market {
	case entity.MarketHK:
		return "hk" + code
	case entity.MarketUS:
		return "us" + strings.ToUpper(code)
	case entity.MarketFund:
		if len(code) == 5 {
			if hasAnyPrefix(code, "51", "56", "58", "60", "50") {
				return "sh" + code
			}
			return "sz" + code
		}
		if hasAnyPrefix(code, "15", "16") {
			return "sz" + code
		}
		return "sh" + code
	default:
		if strings.HasPrefix(code, "6") {
			return "sh" + code
		}
		return "sz" + code
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (r *tencentRepository) GetQuote(ctx context.Context, symbol string, market entity.Market) (*dto.Quote, error) {
	values, err := r.fetch(ctx, symbol, market)
	if err != nil {
		return nil, err
	}

	quote, err := ParseTencentQuote(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}
	quote.Symbol = symbol
	quote.Market = market
	quote.FetchedAt = r.now()
	return quote, nil
}

// GetFinancials returns the ratios the quote endpoint measures directly: PE, PB
// and the per-share figures implied by them.
func (r *tencentRepository) GetFinancials(ctx context.Context, symbol string, market entity.Market) (*dto.Financials, error) {
	quote, err := r.GetQuote(ctx, symbol, market)
	if err != nil {
		return nil, err
	}

	fin := &dto.Financials{
		Symbol:    symbol,
		Market:    market,
		FetchedAt: quote.FetchedAt,
	}
	if quote.PE > 0 {
		fin.PE = dto.Measured(quote.PE)
		fin.EPS = dto.Measured(quote.Price / quote.PE)
	}
	if quote.PB > 0 {
		fin.PB = dto.Measured(quote.PB)
		fin.BookValuePerShare = dto.Measured(quote.Price / quote.PB)
	}
	if quote.PE > 0 && quote.PB > 0 {
		// ROE = PB / PE, in percent.
		fin.ROE = dto.Measured(quote.PB / quote.PE * 100)
	}
	return fin, nil
}

func (r *tencentRepository) fetch(ctx context.Context, symbol string, market entity.Market) ([]string, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	code := TencentCode(symbol, market)
	url := fmt.Sprintf("%s/q=%s", r.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Failed to request Tencent quote", logger.ErrorField(err), logger.StringField("code", code))
		return nil, fmt.Errorf("failed to request quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-OK response from Tencent: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return SplitTencentPayload(string(body))
}

// SplitTencentPayload extracts the "~"-separated fields from a v_xxx="..."; line.
func SplitTencentPayload(body string) ([]string, error) {
	idx := strings.Index(body, `="`)
	if idx < 0 {
		return nil, ErrNotFound
	}
	payload := strings.TrimSpace(body[idx+2:])
	payload = strings.TrimRight(payload, ";\n\r")
	payload = strings.TrimSuffix(payload, `"`)
	if payload == "" {
		return nil, ErrNotFound
	}
	return strings.Split(payload, "~"), nil
}

// ParseTencentQuote converts the split payload into a Quote.
func ParseTencentQuote(values []string) (*dto.Quote, error) {
	if len(values) <= tencentFieldPrice {
		return nil, ErrNotFound
	}
	price := fieldFloat(values, tencentFieldPrice)
	if price <= 0 {
		return nil, fmt.Errorf("%w: no price", ErrNotFound)
	}

	return &dto.Quote{
		Name:          fieldString(values, tencentFieldName),
		Price:         price,
		PrevClose:     fieldFloat(values, tencentFieldPrevClose),
		Open:          fieldFloat(values, tencentFieldOpen),
		Volume:        fieldFloat(values, tencentFieldVolume),
		ChangePercent: fieldFloat(values, tencentFieldChangePercent),
		High:          fieldFloat(values, tencentFieldHigh),
		Low:           fieldFloat(values, tencentFieldLow),
		PE:            fieldFloat(values, tencentFieldPE),
		MarketCap:     fieldFloat(values, tencentFieldMarketCap),
		PB:            fieldFloat(values, tencentFieldPB),
	}, nil
}

func fieldString(values []string, i int) string {
	if i >= len(values) {
		return ""
	}
	return strings.TrimSpace(values[i])
}

func fieldFloat(values []string, i int) float64 {
	s := fieldString(values, i)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
