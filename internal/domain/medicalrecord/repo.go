package medicalrecord

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Record, int, error)
	// AppendExamResult adds result under the date key of resultats_examens.
	AppendExamResult(ctx context.Context, id uuid.UUID, date string, result map[string]interface{}) (*Record, error)
	AppendDocument(ctx context.Context, id uuid.UUID, doc Document) (*Record, error)
}
