package equipment

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, e *Equipment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Equipment, error)
	Update(ctx context.Context, e *Equipment) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Equipment, int, error)
	SerialTaken(ctx context.Context, serial string, exclude uuid.UUID) (bool, error)
	ListAvailable(ctx context.Context, equipmentType *string) ([]*Equipment, error)
	ListMaintenanceDue(ctx context.Context, today civil.Date) ([]*Equipment, error)
	// TransitionStatus moves the unit from one status to another only if it
	// is still in from. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetMaintenance(ctx context.Context, id uuid.UUID, last, next civil.Date) error
}
