package httpx

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecureHeaders sets the standard set of defensive response headers. HSTS
// is only sent on TLS requests. It never ends the request.
func SecureHeaders(development bool) gin.HandlerFunc {
	sm := secure.New(secure.Options{
		CustomFrameOptionsValue:       "SAMEORIGIN",
		ContentTypeNosniff:            true,
		CustomBrowserXssValue:         "0",
		ReferrerPolicy:                "no-referrer",
		CrossOriginOpenerPolicy:       "same-origin",
		CrossOriginResourcePolicy:     "same-origin",
		XDNSPrefetchControl:           "off",
		XPermittedCrossDomainPolicies: "none",
		STSSeconds:                    15552000,
		STSIncludeSubdomains:          true,
		SSLProxyHeaders:               map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:                 development,
	})

	return func(c *gin.Context) {
		if err := sm.Process(c.Writer, c.Request); err != nil {
			_ = c.Error(err)
		}
		h := c.Writer.Header()
		h.Set("X-Download-Options", "noopen")
		h.Set("Origin-Agent-Cluster", "?1")
		h.Del("X-Powered-By")
		c.Next()
	}
}

// AccessLog writes one entry per request once the response is complete.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Recovery turns a panic into a 500 JSON response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, err any) {
		logger.Error("panic while serving request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", err),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// Errors logs errors recorded on the context and answers with a 500 JSON
// body when no later stage wrote a response.
func Errors(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		status := c.Writer.Status()
		for _, e := range c.Errors {
			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(e.Err),
			}
			if status >= http.StatusInternalServerError || !c.Writer.Written() {
				logger.Error("request failed", fields...)
			} else {
				logger.Warn("request rejected", fields...)
			}
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
	}
}
