package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, role *string, page pagination.Params) ([]*User, int, error)
}
