package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GinRequestIDKey is the gin context key the RequestID middleware writes
const GinRequestIDKey = "request_id"

// GinOption configures GinMiddleware
type GinOption func(*ginOptions)

type ginOptions struct {
	quiet map[string]bool
}

// WithQuietRoutes logs successful requests to the given route templates at
// debug level. Probes such as /health would otherwise flood the log.
func WithQuietRoutes(routes ...string) GinOption {
	return func(o *ginOptions) {
		for _, r := range routes {
			o.quiet[r] = true
		}
	}
}

// GinMiddleware puts a request-scoped logger into the request context, so
// handlers and services below can use L(ctx), and logs one line per request.
// Routes are logged by template, not by raw path.
func GinMiddleware(log *zap.Logger, opts ...GinOption) gin.HandlerFunc {
	o := ginOptions{quiet: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		reqLog := log.With(zap.String("method", c.Request.Method), zap.String("route", route))
		ctx := WithContext(c.Request.Context(), reqLog)
		if id := c.GetString(GinRequestIDKey); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		case o.quiet[route]:
			level = zapcore.DebugLevel
		}
		ce := reqLog.Check(level, "HTTP request")
		if ce == nil {
			return
		}

		// tenant is resolved by middleware further down the chain
		fields := append(contextFields(c.Request.Context()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		ce.Write(fields...)
	}
}

// Recovery turns a handler panic into a logged error and a 500. respond
// writes the response body; nil aborts with the bare status.
func Recovery(log *zap.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error("Panic recovered",
				zap.String("request_id", c.GetString(GinRequestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			if respond == nil || c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			respond(c)
			c.Abort()
		}()
		c.Next()
	}
}
