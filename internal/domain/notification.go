package domain

import (
	"context"
	"time"
)

// NotificationKind notification type
type NotificationKind string

// notification kinds raised by the engine
const (
	NotifyQuizPassed        NotificationKind = "quiz_passed"
	NotifyQuizFailed        NotificationKind = "quiz_failed"
	NotifyCertificateIssued NotificationKind = "certificate_issued"
)

// Notification message for a learner
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier notification sink, fire-and-forget for callers: errors are logged, never propagated
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}
