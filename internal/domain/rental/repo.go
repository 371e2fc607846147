package rental

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, r *Rental) error
	GetByID(ctx context.Context, id uuid.UUID) (*View, error)
	Update(ctx context.Context, r *Rental) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error)
	SetInvoice(ctx context.Context, id, invoiceID uuid.UUID) error
}
