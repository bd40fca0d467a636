package services

import (
	"context"
	"errors"

	"partsledger/internal/models"
)

// EventPublisher receives ledger events after their transaction committed.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.LedgerEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.LedgerEvent) error { return nil }

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, evt models.LedgerEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
