package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"iapgate/internal/infrastructure/auth"
	"iapgate/internal/shared/logger"
	"iapgate/internal/shared/utils"
)

// ServiceTokenMiddleware guards the validation endpoint with the bearer
// tokens the validator client signs.
// ServiceClientKey is the context key the calling client is stored under.
const ServiceClientKey = "service_client"

type ServiceTokenMiddleware struct {
	tokens *auth.ServiceTokenService
	logger logger.Interface
}

func NewServiceTokenMiddleware(tokens *auth.ServiceTokenService, logger logger.Interface) *ServiceTokenMiddleware {
	return &ServiceTokenMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

func (m *ServiceTokenMiddleware) RequireServiceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}

		if token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Warnw("service token validation failed", "error", err, "ip", c.ClientIP())
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired service token")
			return
		}

		c.Set(ServiceClientKey, claims.Client)
		c.Next()
	}
}
