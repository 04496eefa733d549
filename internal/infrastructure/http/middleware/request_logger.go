package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs one structured line per request. Streaming endpoints are
// logged when the stream ends.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			level := zapcore.InfoLevel
			switch {
			case res.Status >= 500:
				level = zapcore.ErrorLevel
			case res.Status >= 400:
				level = zapcore.WarnLevel
			}

			if ce := logger.Check(level, "http.request"); ce != nil {
				fields := []zap.Field{
					zap.String("method", req.Method),
					zap.String("path", c.Path()),
					zap.String("uri", req.RequestURI),
					zap.Int("status", res.Status),
					zap.Int64("bytes_out", res.Size),
					zap.Duration("latency", time.Since(start)),
					zap.String("remote_ip", c.RealIP()),
				}
				if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
					fields = append(fields, zap.String("request_id", id))
				}
				if err != nil {
					fields = append(fields, zap.Error(err))
				}
				ce.Write(fields...)
			}
			return nil
		}
	}
}
