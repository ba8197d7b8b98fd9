package http

import (
	"net/http"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CycleRequest is the body of a manual cycle trigger.
type CycleRequest struct {
	Force   bool   `json:"force"`
	Markets string `json:"markets"`
}

// CycleHandler queues manual tracking cycles.
type CycleHandler struct {
	schedulerService service.SchedulerService
	logger           *logger.Logger
}

// NewCycleHandler creates a new CycleHandler.
func NewCycleHandler(schedulerService service.SchedulerService, logger *logger.Logger) *CycleHandler {
	return &CycleHandler{schedulerService: schedulerService, logger: logger}
}

// RegisterRoutes registers the cycle routes to the Echo group.
func (h *CycleHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:user_id/cycles", h.TriggerCycle)
}

// TriggerCycle godoc
// @Summary Trigger a tracking cycle
// @Description Queue a manual cycle for the user. The cycle runs asynchronously.
// @Tags cycles
// @Accept  json
// @Produce  json
// @Param   user_id  path  string        true   "User ID"
// @Param   cycle    body  CycleRequest  false  "Cycle options"
// @Success 202 {object} dto.CycleStreamPayload
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /users/{user_id}/cycles [post]
func (h *CycleHandler) TriggerCycle(c echo.Context) error {
	var req CycleRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
		}
	}
	markets, err := entity.ParseMarkets(req.Markets)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	payload, err := h.schedulerService.Enqueue(c.Request().Context(), c.Param("user_id"), req.Force, markets, dto.TriggerManual)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to queue cycle"})
	}
	return c.JSON(http.StatusAccepted, payload)
}
