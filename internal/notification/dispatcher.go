package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pot-code/progress-engine/internal/domain"
	"github.com/pot-code/progress-engine/internal/infrastructure/uuid"
	"go.uber.org/multierr"
)

// Dispatcher stamps a notification and fans it out to every sink. Every sink is tried, errors are combined.
type Dispatcher struct {
	Sinks         []domain.Notifier
	UUIDGenerator uuid.Generator
}

var _ domain.Notifier = &Dispatcher{}

// NewDispatcher ...
func NewDispatcher(UUIDGenerator uuid.Generator, sinks ...domain.Notifier) *Dispatcher {
	return &Dispatcher{Sinks: sinks, UUIDGenerator: UUIDGenerator}
}

// Notify ...
func (d *Dispatcher) Notify(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		id, err := d.UUIDGenerator.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate notification id: %w", err)
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var err error
	for _, s := range d.Sinks {
		err = multierr.Append(err, s.Notify(ctx, n))
	}
	return err
}
