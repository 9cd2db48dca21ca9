package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/progress-engine/internal/infrastructure/driver"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/interfaces/rest/handler"
	"go.uber.org/zap"
)

// RateLimitOption fixed window limit per client
type RateLimitOption struct {
	Skipper middleware.Skipper
	Prefix  string        // kv key prefix
	Limit   int64         // requests allowed per window
	Window  time.Duration // window length
	// KeyFunc identifies the client, real ip by default
	KeyFunc func(c echo.Context) string
}

// RateLimit count requests in the kv store. The store being unavailable lets requests through.
func RateLimit(kv driver.KeyValueDB, options ...*RateLimitOption) echo.MiddlewareFunc {
	cfg := &RateLimitOption{
		Skipper: middleware.DefaultSkipper,
		Prefix:  "ratelimit",
		Limit:   30,
		Window:  time.Minute,
		KeyFunc: func(c echo.Context) string { return c.RealIP() },
	}
	if len(options) > 0 {
		option := options[0]
		if option.Skipper != nil {
			cfg.Skipper = option.Skipper
		}
		if option.Prefix != "" {
			cfg.Prefix = option.Prefix
		}
		if option.Limit > 0 {
			cfg.Limit = option.Limit
		}
		if option.Window > 0 {
			cfg.Window = option.Window
		}
		if option.KeyFunc != nil {
			cfg.KeyFunc = option.KeyFunc
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			now := time.Now()
			window := now.UnixNano() / int64(cfg.Window)
			key := fmt.Sprintf("%s:%s:%d", cfg.Prefix, cfg.KeyFunc(c), window)
			count, err := kv.Incr(key, cfg.Window)
			if err != nil {
				logging.ExtractLoggerFromContext(c.Request().Context()).Warn("rate limiter unavailable", zap.Error(err))
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
			remaining := cfg.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			header.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > cfg.Limit {
				reset := time.Unix(0, (window+1)*int64(cfg.Window))
				header.Set("Retry-After", strconv.Itoa(int(reset.Sub(now).Seconds())+1))
				return c.JSON(http.StatusTooManyRequests,
					handler.NewRESTStandardError(http.StatusTooManyRequests, "rate limit exceeded, retry later"))
			}
			return next(c)
		}
	}
}
