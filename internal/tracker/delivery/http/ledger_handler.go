package http

import (
	"errors"
	"net/http"
	"strings"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/pkg/logger"

	"github.com/labstack/echo/v4"
)

// LedgerHandler handles HTTP requests for transactions and holdings.
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *logger.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService service.LedgerService, logger *logger.Logger) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, logger: logger}
}

// RegisterRoutes registers the ledger routes to the Echo group.
func (h *LedgerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:user_id/transactions", h.RecordTransaction)
	g.GET("/:user_id/transactions", h.GetTransactions)
	g.GET("/:user_id/holdings", h.GetHoldings)
}

// RecordTransaction godoc
// @Summary Record a trade
// @Description Append a buy or sell to the user's ledger. trade_date is RFC3339.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   user_id      path    string                          true  "User ID"
// @Param   transaction  body    dto.RecordTransactionRequest    true  "Trade to record"
// @Success 201 {object} entity.Transaction
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /users/{user_id}/transactions [post]
func (h *LedgerHandler) RecordTransaction(c echo.Context) error {
	var req dto.RecordTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	req.UserID = c.Param("user_id")
	req.Market = entity.Market(strings.ToUpper(string(req.Market)))
	req.Action = entity.Action(strings.ToLower(string(req.Action)))

	transaction, err := h.ledgerService.Record(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to record transaction"})
	}
	return c.JSON(http.StatusCreated, transaction)
}

// GetTransactions godoc
// @Summary List trades
// @Description List the user's trades, optionally filtered by symbol and market
// @Tags ledger
// @Produce  json
// @Param   user_id  path   string  true   "User ID"
// @Param   symbol   query  string  false  "Symbol"
// @Param   market   query  string  false  "Market (CN_A, HK, US, FUND)"
// @Success 200 {array} entity.Transaction
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /users/{user_id}/transactions [get]
func (h *LedgerHandler) GetTransactions(c echo.Context) error {
	param := dto.GetTransactionsParam{UserID: c.Param("user_id")}
	if symbol := strings.TrimSpace(c.QueryParam("symbol")); symbol != "" {
		symbol = strings.ToUpper(symbol)
		param.Symbol = &symbol
	}
	if raw := c.QueryParam("market"); raw != "" {
		markets, err := entity.ParseMarkets(raw)
		if err != nil || len(markets) != 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid market"})
		}
		param.Market = &markets[0]
	}

	transactions, err := h.ledgerService.Transactions(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to get transactions", logger.ErrorField(err), logger.StringField("user_id", param.UserID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get transactions"})
	}
	return c.JSON(http.StatusOK, transactions)
}

// GetHoldings godoc
// @Summary List holdings
// @Description Open positions aggregated from the ledger, largest cost first
// @Tags ledger
// @Produce  json
// @Param   user_id  path   string  true   "User ID"
// @Param   market   query  string  false  "Comma separated markets"
// @Success 200 {array} dto.Holding
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /users/{user_id}/holdings [get]
func (h *LedgerHandler) GetHoldings(c echo.Context) error {
	markets, err := entity.ParseMarkets(c.QueryParam("market"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	holdings, err := h.ledgerService.HoldingsFor(c.Request().Context(), dto.GetHoldingsParam{UserID: c.Param("user_id"), Markets: markets})
	if err != nil {
		h.logger.Error("Failed to get holdings", logger.ErrorField(err), logger.StringField("user_id", c.Param("user_id")))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get holdings"})
	}
	if holdings == nil {
		holdings = []dto.Holding{}
	}
	return c.JSON(http.StatusOK, holdings)
}
