package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careerrec/internal/ai"
	"github.com/xxxsen/careerrec/internal/middleware"
	"github.com/xxxsen/careerrec/internal/pkg/errcode"
	appErr "github.com/xxxsen/careerrec/internal/pkg/errors"
	"github.com/xxxsen/careerrec/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", middleware.RequestIDFrom(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case ai.IsRateLimit(err), errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, errcode.ErrServiceUnavailable, "service unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// queryInt reads an optional integer query parameter bounded to [min, max].
// Missing values yield def.
func queryInt(c *gin.Context, key string, def, min, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}
