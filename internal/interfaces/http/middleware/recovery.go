package middleware

import (
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	apperrors "iapgate/internal/shared/errors"
	"iapgate/internal/shared/logger"
	"iapgate/internal/shared/utils"
)

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Api-Key":     true,
}

// Recovery answers a panicking request with an internal_error envelope. A
// panic caused by the client going away is logged and the request aborted.
func Recovery(log logger.Interface) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		fields := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", recovered,
		}
		if client, ok := c.Get(ServiceClientKey); ok {
			fields = append(fields, "service_client", client)
		}

		if clientGone(recovered) {
			log.Warnw("client connection lost during request", fields...)
			c.Abort()
			return
		}

		fields = append(fields,
			"headers", headerDump(c.Request.Header),
			"stack", string(debug.Stack()),
		)
		log.Errorw("panic recovered", fields...)

		utils.ErrorResponseWithError(c, apperrors.NewInternalError("Internal server error occurred"))
	})
}

// headerDump lists request headers in name order with credentials masked.
func headerDump(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		if redactedHeaders[http.CanonicalHeaderKey(name)] {
			out = append(out, name+": *")
			continue
		}
		out = append(out, name+": "+strings.Join(h[name], ", "))
	}
	return out
}

func clientGone(recovered any) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		msg := strings.ToLower(opErr.Err.Error())
		return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
	}
	return false
}
