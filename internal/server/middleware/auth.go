package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-relay/pkg/api"
)

// Auth checks for a valid Bearer token in the Authorization header. With no
// keys configured the check is disabled, which is the local-development mode.
func Auth(staticKeys []string) gin.HandlerFunc {
	keys := make(map[string]bool, len(staticKeys))
	for _, k := range staticKeys {
		keys[k] = true
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortProblem(c, api.UnauthorizedError("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortProblem(c, api.UnauthorizedError("invalid Authorization header format"))
			return
		}

		if !keys[parts[1]] {
			abortProblem(c, api.UnauthorizedError("invalid API key"))
			return
		}

		c.Next()
	}
}

func abortProblem(c *gin.Context, p *api.Problem) {
	c.AbortWithStatusJSON(p.Status, p)
}
