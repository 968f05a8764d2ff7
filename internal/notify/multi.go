package notify

import (
	"context"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type Notifier interface {
	Notify(ctx context.Context, event *models.Event)
}

// Multi forwards every event to each notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event *models.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// Filter forwards only the listed event types.
type Filter struct {
	Next  Notifier
	Types []models.EventType
}

func (f Filter) Notify(ctx context.Context, event *models.Event) {
	for _, t := range f.Types {
		if t == event.Type {
			f.Next.Notify(ctx, event)
			return
		}
	}
}
