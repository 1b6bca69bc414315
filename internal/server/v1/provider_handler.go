package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-relay/internal/dispatch"
	"github.com/nulzo/llm-relay/internal/health"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/internal/server/validator"
	"github.com/nulzo/llm-relay/pkg/api"
)

type ProviderHandler struct {
	registry *registry.Registry
	monitor  *health.Monitor
	engine   *dispatch.Engine
}

func NewProviderHandler(reg *registry.Registry, mon *health.Monitor, engine *dispatch.Engine) *ProviderHandler {
	return &ProviderHandler{registry: reg, monitor: mon, engine: engine}
}

// Status reports every provider with its live health state. The listing is
// stable-ordered by provider name.
func (h *ProviderHandler) Status(c *gin.Context) {
	statuses := h.monitor.StatusAll()

	var out []api.ProviderStatus
	for _, p := range h.registry.Snapshot() {
		st := statuses[p.Name]
		out = append(out, api.ProviderStatus{
			Provider:           p.Name,
			DisplayName:        p.DisplayName,
			Description:        p.Description,
			Kind:               p.Kind,
			State:              string(st.State),
			Reason:             st.Reason,
			ModelsAvailable:    st.ModelsAvailable,
			CostModel:          p.CostModel,
			RequiresCredential: p.RequiresCredential,
			Configured:         p.Configured,
			SetupURL:           p.SetupURL,
			LastCheckedAt:      st.LastCheckedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"object":    "list",
		"providers": out,
	})
}

func (h *ProviderHandler) Configure(c *gin.Context) {
	name := c.Param("name")

	var req api.ConfigureProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	err := h.registry.Configure(name, req.Credential, req.Enabled, req.Priority)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			_ = c.Error(api.NotFoundError(err.Error()))
			return
		}
		_ = c.Error(api.ConfigurationError(err.Error()))
		return
	}

	// Reassess health right away so the dashboard reflects the new
	// credential without waiting a probe cycle.
	h.monitor.ForceRefresh(name)

	prov, err := h.registry.Get(name)
	if err != nil {
		_ = c.Error(api.InternalError("provider vanished after configure", err))
		return
	}
	c.JSON(http.StatusOK, prov)
}

func (h *ProviderHandler) Test(c *gin.Context) {
	name := c.Param("name")

	var req api.TestConnectionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
			return
		}
	}

	result, err := h.engine.TestConnection(c.Request.Context(), name, strings.TrimSpace(req.TestPrompt))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
