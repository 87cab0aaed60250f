// Package notify delivers activity notifications to chat webhooks.
package notify

import (
	"context"
	"errors"

	"github.com/joescharf/ghwatch/internal/models"
)

// Notifier delivers a batch of activity items. totalFetched and maxItems
// describe the run the batch came from. A non-nil error means at least one
// item may not have been delivered.
type Notifier interface {
	Send(ctx context.Context, items []models.ActivityItem, totalFetched, maxItems int) error
}

// MultiNotifier sends every batch to each of its notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMulti returns a MultiNotifier. Nil notifiers are ignored.
func NewMulti(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Send calls every notifier, even after a failure, and joins the errors.
func (m *MultiNotifier) Send(ctx context.Context, items []models.ActivityItem, totalFetched, maxItems int) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, items, totalFetched, maxItems); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
