package http

import (
	"net/http"
	"strconv"
	"strings"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/pkg/logger"

	"github.com/labstack/echo/v4"
)

const defaultHistoryLimit = 30

// ValuationHandler serves the valuation history.
type ValuationHandler struct {
	valuationRepo repository.ValuationRepository
	logger        *logger.Logger
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationRepo repository.ValuationRepository, logger *logger.Logger) *ValuationHandler {
	return &ValuationHandler{valuationRepo: valuationRepo, logger: logger}
}

// RegisterRoutes registers the valuation routes to the Echo group.
func (h *ValuationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:market/:symbol", h.GetHistory)
}

// GetHistory godoc
// @Summary Valuation history
// @Description Stored valuations of a symbol, newest first
// @Tags valuations
// @Produce  json
// @Param   market  path   string  true   "Market"
// @Param   symbol  path   string  true   "Symbol"
// @Param   limit   query  int     false  "Max records (default 30)"
// @Success 200 {array} entity.ValuationRecord
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /valuations/{market}/{symbol} [get]
func (h *ValuationHandler) GetHistory(c echo.Context) error {
	market := entity.Market(strings.ToUpper(c.Param("market")))
	if !market.IsValid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid market"})
	}
	symbol := strings.ToUpper(c.Param("symbol"))

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		limit = n
	}

	records, err := h.valuationRepo.History(c.Request().Context(), symbol, market, limit)
	if err != nil {
		h.logger.Error("Failed to get valuation history", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get valuation history"})
	}
	if records == nil {
		records = []entity.ValuationRecord{}
	}
	return c.JSON(http.StatusOK, records)
}
