package intervention

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, in *Intervention) error
	// GetByID returns the intervention with its patient, equipment and
	// technician summaries. Services are loaded separately.
	GetByID(ctx context.Context, id uuid.UUID) (*View, error)
	Update(ctx context.Context, in *Intervention) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error)
	// Schedule lists the open interventions of a technician planned in [from, to).
	Schedule(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]*View, error)
	// Overdue lists planifiée interventions scheduled before now.
	Overdue(ctx context.Context, now time.Time) ([]*View, error)
	ListServices(ctx context.Context, interventionID uuid.UUID) ([]*ServiceLine, error)
	// ReplaceServices deletes every line of the intervention and inserts lines.
	ReplaceServices(ctx context.Context, interventionID uuid.UUID, lines []*ServiceLine) error
	// ListBillable returns the facturable interventions of the patient among
	// ids that are not cancelled and not billed by a live invoice, ordered by
	// date_planifiee.
	ListBillable(ctx context.Context, patientID uuid.UUID, ids []uuid.UUID) ([]*Intervention, error)
	SetInvoice(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error
}
