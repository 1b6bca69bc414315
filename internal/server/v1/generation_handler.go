package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-relay/internal/dispatch"
	"github.com/nulzo/llm-relay/internal/server/validator"
	"github.com/nulzo/llm-relay/pkg/api"
)

type GenerationHandler struct {
	engine *dispatch.Engine
}

func NewGenerationHandler(engine *dispatch.Engine) *GenerationHandler {
	return &GenerationHandler{engine: engine}
}

func (h *GenerationHandler) Generate(c *gin.Context) {
	var req api.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		_ = c.Error(api.InvalidRequestError(err.Error()))
		return
	}

	result, err := h.engine.Generate(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GenerationHandler) GenerateBatch(c *gin.Context) {
	var batch api.BatchGenerateRequest
	if err := c.ShouldBindJSON(&batch); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	// All items must be valid before any dispatch starts; a bad item fails
	// the whole batch so callers never pay for a partial run they cannot use.
	for i := range batch.Requests {
		batch.Requests[i].Normalize()
		if err := batch.Requests[i].Validate(); err != nil {
			_ = c.Error(api.InvalidRequestError(
				fmt.Sprintf("requests[%d]: %s", i, err.Error())))
			return
		}
	}

	results := h.engine.GenerateBatch(c.Request.Context(), &batch)
	c.JSON(http.StatusOK, gin.H{
		"object":  "list",
		"results": results,
	})
}
