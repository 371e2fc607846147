package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	GetByName(ctx context.Context, nom string) (*Item, error)
	Update(ctx context.Context, it *Item) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Item, int, error)
}
