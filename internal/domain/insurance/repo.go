package insurance

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type InsuranceRepository interface {
	Create(ctx context.Context, i *Insurance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error)
	Update(ctx context.Context, i *Insurance) error
	List(ctx context.Context, f InsuranceFilter, page pagination.Params) ([]*Insurance, int, error)
}

type CoverageRepository interface {
	Create(ctx context.Context, c *Coverage) error
	GetByID(ctx context.Context, id uuid.UUID) (*Coverage, error)
	Update(ctx context.Context, c *Coverage) error
	List(ctx context.Context, f CoverageFilter, page pagination.Params) ([]*Coverage, int, error)
	// ListForPatient returns the patient's coverages joined with their insurer.
	ListForPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*CoverageView, error)
}
