package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-relay/internal/ledger"
	"github.com/nulzo/llm-relay/pkg/api"
)

type UsageHandler struct {
	service ledger.Service
}

func NewUsageHandler(service ledger.Service) *UsageHandler {
	return &UsageHandler{service: service}
}

func (h *UsageHandler) Overview(c *gin.Context) {
	daysStr := c.DefaultQuery("days", "7")
	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 1 || days > 365 {
		_ = c.Error(api.InvalidRequestError("'days' must be an integer between 1 and 365"))
		return
	}

	overview, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("failed to aggregate usage", err))
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Recent serves the newest usage records for the dashboard activity feed.
func (h *UsageHandler) Recent(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		_ = c.Error(api.InvalidRequestError("'limit' must be an integer between 1 and 100"))
		return
	}

	records, err := h.service.GetRecentActivity(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(api.InternalError("failed to load recent usage", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   records,
	})
}
