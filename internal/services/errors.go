package services

import (
	"errors"
	"fmt"

	"partsledger/internal/models"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid invoice state")
	ErrNotFound          = errors.New("not found")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Details)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Details)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Details: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the item that could not cover a decrement.
type InsufficientStockError struct {
	ItemID    string
	SKU       string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): available %d, requested %d",
		e.Name, e.SKU, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidStateError reports a transition the invoice's status does not allow.
type InvalidStateError struct {
	InvoiceID string
	Status    models.InvoiceStatus
	Action    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s invoice %s in status %s", e.Action, e.InvoiceID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError reports an unknown item or invoice id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
