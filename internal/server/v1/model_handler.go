package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/pkg/api"
)

type ModelHandler struct {
	registry *registry.Registry
}

func NewModelHandler(reg *registry.Registry) *ModelHandler {
	return &ModelHandler{registry: reg}
}

// List returns the cross-provider model catalog, grouped by provider name
// order. Unavailable models are included and flagged, not hidden.
func (h *ModelHandler) List(c *gin.Context) {
	var out []api.ModelInfo
	for _, p := range h.registry.Snapshot() {
		for _, m := range p.Models {
			info := api.ModelInfo{
				Provider:      p.Name,
				Name:          m.Name,
				Capabilities:  m.Capabilities,
				ContextLength: m.ContextLength,
				Available:     m.Available,
			}
			if m.SizeBytes > 0 {
				gb := float64(m.SizeBytes) / (1 << 30)
				info.SizeGB = &gb
			}
			out = append(out, info)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   out,
	})
}
