package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel zapcore.Level
		wantLogs  int
	}{
		{"success", "/progress/l1", http.StatusOK, zap.DebugLevel, 1},
		{"not found", "/progress/l1", http.StatusNotFound, zap.DebugLevel, 1},
		{"rate limited", "/progress/l1", http.StatusTooManyRequests, zap.WarnLevel, 1},
		{"forbidden", "/progress/l1", http.StatusForbidden, zap.WarnLevel, 1},
		{"server error", "/progress/l1", http.StatusInternalServerError, zap.ErrorLevel, 1},
		{"skipped", "/healthz", http.StatusOK, zap.DebugLevel, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			app := echo.New()
			app.Use(Logging(zap.New(core), &LoggingConfig{
				Skipper: func(c echo.Context) bool { return strings.HasPrefix(c.Request().RequestURI, "/healthz") },
			}))
			handler := func(c echo.Context) error { return c.NoContent(tt.status) }
			app.GET("/progress/:lessonId", handler)
			app.GET("/healthz", handler)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)

			require.Equal(t, tt.wantLogs, logs.Len())
			if tt.wantLogs == 0 {
				return
			}
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, http.StatusText(tt.status), entry.Message)

			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["http.response.status_code"])
			assert.Equal(t, "10.0.0.7", fields["client.address"])
			assert.Equal(t, []interface{}{"l1"}, fields["route.params.value"])
			assert.Contains(t, fields, "event.duration")
		})
	}
}
