package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/zkvault/internal/common"
	"github.com/dmitrijs2005/zkvault/internal/server/auth"
	"github.com/dmitrijs2005/zkvault/internal/server/metrics"
)

const (
	userIDKey    = "userID"
	requestIDKey = "requestID"
)

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// requestIDMiddleware accepts a client supplied X-Request-ID or makes one
// up, and echoes it on the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// accessLog writes one line per request. Bodies are never logged.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "http request",
			"request_id", requestID(c),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// authenticate requires a valid bearer token and stores its user id in
// the gin context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.abortWithError(c, common.ErrorUnauthorized)
			return
		}

		id, err := auth.ParseToken(token, s.jwtSecret)
		if err != nil {
			s.abortWithError(c, err)
			return
		}

		c.Set(userIDKey, id)
		c.Next()
	}
}

// limitLogins rejects login attempts beyond the per-IP budget with 429.
func (s *Server) limitLogins() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.loginLimiter.allow(c.ClientIP(), time.Now()) {
			s.metrics.ObserveLogin(metrics.OutcomeLimited)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "too many login attempts"})
			return
		}
		c.Next()
	}
}
