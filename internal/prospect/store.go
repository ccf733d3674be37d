// Package prospect is the tabular record store for the people being
// called: who they are, what they enquired about, and how the follow-up
// call ended.
package prospect

import (
	"context"
	"time"

	"github.com/campaignkit/callagent/internal/domain"
)

// Record is one prospect row.
type Record struct {
	ID           string
	Name         string
	Phone        string
	Product      string
	EnquiryDate  time.Time
	Email        string
	Status       string
	Outcome      domain.Outcome
	Sentiment    domain.Sentiment
	Notes        string
	LastCalledAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Customer converts the record into the immutable profile a session holds.
func (r *Record) Customer() domain.Customer {
	return domain.Customer{
		ID:          r.ID,
		Name:        r.Name,
		Phone:       r.Phone,
		Product:     r.Product,
		EnquiryDate: r.EnquiryDate,
	}
}

// CallResult is what the finalizer writes back after a call.
type CallResult struct {
	Outcome   domain.Outcome
	Sentiment domain.Sentiment
	Email     string
	Notes     string
	CalledAt  time.Time
}

// Store is the narrow contract the orchestrator needs from the record
// store. Retries, if any, are the implementation's own concern.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByPhone(ctx context.Context, phone string) (*Record, error)
	UpdateCallResult(ctx context.Context, id string, res CallResult) error
	Close() error
}
