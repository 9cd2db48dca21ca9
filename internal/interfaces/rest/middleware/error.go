package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"github.com/pot-code/progress-engine/internal/interfaces/rest/handler"
	"go.uber.org/zap"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	// Handler answers errors that are not part of the domain taxonomy
	Handler func(c echo.Context, err error)
}

// ErrorHandling map returned errors and recovered panics to responses
// **DO NOT return error anymore**
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	custom := &ErrorHandlingOption{
		Handler: func(c echo.Context, err error) {
			c.JSON(http.StatusInternalServerError, handler.NewRESTStandardError(http.StatusInternalServerError, ""))
		},
	}
	if len(options) > 0 {
		option := options[0]
		if option.Handler != nil {
			custom.Handler = option.Handler
		}
	}
	fallback := custom.Handler
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if any := recover(); any != nil {
					err, ok := any.(error)
					if !ok {
						err = fmt.Errorf("%v", any)
					}
					logging.ExtractLoggerFromContext(c.Request().Context()).Error("recovered from panic",
						zap.Error(err),
						zap.String("url.path", c.Request().RequestURI),
						zap.String("http.request.method", c.Request().Method),
						zap.Strings("route.params.name", c.ParamNames()),
						zap.Strings("route.params.value", c.ParamValues()),
					)
					fallback(c, err)
				}
			}()
			if err := next(c); err != nil {
				respondError(c, err, fallback)
			}
			return nil
		}
	}
}

func respondError(c echo.Context, err error, fallback func(c echo.Context, err error)) {
	traceID := c.Response().Header().Get(echo.HeaderXRequestID)

	var (
		validationErr *domain.ValidationError
		httpErr       *echo.HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest,
			handler.NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", validationErr.Fields).SetTraceID(traceID))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, handler.NewRESTStandardError(http.StatusNotFound, err.Error()).SetTraceID(traceID))
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, handler.NewRESTStandardError(http.StatusConflict, err.Error()).SetTraceID(traceID))
	case errors.As(err, &httpErr):
		c.JSON(httpErr.Code, handler.NewRESTStandardError(httpErr.Code, fmt.Sprint(httpErr.Message)).SetTraceID(traceID))
	default:
		fallback(c, err)
	}
}
