package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Patient, int, error)
	// SSNTaken reports whether another patient than exclude holds ssn.
	SSNTaken(ctx context.Context, ssn string, exclude uuid.UUID) (bool, error)
}
