package services

import (
	"context"
	"fmt"

	"partsledger/internal/store"
)

// FormatInvoiceNumber renders a sequence value as INV-000042.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}

// InvoiceNumberer hands out unique invoice numbers. Numbers are never reused,
// including ones drawn by a create that was later rejected.
type InvoiceNumberer interface {
	Next(ctx context.Context, tx store.Store) (string, error)
}

// StoreNumberer draws numbers from the store's own sequence.
type StoreNumberer struct{}

func (StoreNumberer) Next(ctx context.Context, tx store.Store) (string, error) {
	seq, err := tx.NextInvoiceSeq(ctx)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(seq), nil
}

// Incrementer is the counter primitive behind RedisNumberer.
type Incrementer interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// RedisNumberer draws numbers from a shared Redis counter so several API
// replicas agree on one sequence.
type RedisNumberer struct {
	counter Incrementer
	key     string
}

func NewRedisNumberer(counter Incrementer, key string) *RedisNumberer {
	if key == "" {
		key = "partsledger:invoice_seq"
	}
	return &RedisNumberer{counter: counter, key: key}
}

func (n *RedisNumberer) Next(ctx context.Context, _ store.Store) (string, error) {
	seq, err := n.counter.Increment(ctx, n.key)
	if err != nil {
		return "", fmt.Errorf("failed to increment invoice counter: %w", err)
	}
	return FormatInvoiceNumber(seq), nil
}
