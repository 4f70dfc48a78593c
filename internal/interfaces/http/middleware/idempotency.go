package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/shared"
	"github.com/eyc/invoicing/internal/interfaces/http/dto"
)

// HeaderIdempotencyKey is the client supplied key of a mutating request.
const HeaderIdempotencyKey = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds client supplied keys.
const MaxIdempotencyKeyLength = 255

// Idempotency rejects a repeat of a request carrying an Idempotency-Key
// that already succeeded (or is still running) with 409. Requests without
// the header pass through. A failed request forgets its key so the client
// may retry it. If the store itself fails the request is let through.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		scoped := c.Request.Method + " " + c.FullPath() + " " + key

		fresh, err := store.MarkProcessed(ctx, scoped, ttl)
		if err != nil {
			logger.Warn("Idempotency store unavailable, handling request anyway",
				zap.String("idempotency_key", key), zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicate, "A request with this Idempotency-Key was already handled", GetRequestID(c)))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Forget(ctx, scoped); err != nil {
				logger.Warn("Failed to release idempotency key",
					zap.String("idempotency_key", key), zap.Error(err))
			}
		}
	}
}
