package invoicing

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	// Create inserts the header. A taken numero_facture yields
	// ErrDuplicateNumber.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Invoice, int, error)
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error)
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []*Item) error
}
