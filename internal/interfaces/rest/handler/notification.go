package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/progress-engine/internal/infrastructure/auth"
	"github.com/pot-code/progress-engine/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// StreamServer serves a push connection for one user
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// NotificationHandler live notification stream
type NotificationHandler struct {
	stream  StreamServer
	jwtUtil *auth.JWTUtil
}

func NewNotificationHandler(Stream StreamServer, JWTUtil *auth.JWTUtil) *NotificationHandler {
	handler := &NotificationHandler{Stream, JWTUtil}
	return handler
}

// HandleStream GET /ws/notifications
func (nh *NotificationHandler) HandleStream(c echo.Context) (err error) {
	claims := nh.jwtUtil.GetContextToken(c)
	// a failed upgrade has already been answered by the upgrader
	if err := nh.stream.Serve(c.Response(), c.Request(), claims.UID); err != nil {
		logging.ExtractLoggerFromContext(c.Request().Context()).Debug("websocket upgrade failed",
			zap.String("user.id", claims.UID), zap.Error(err))
	}
	return nil
}
