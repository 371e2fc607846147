package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound      = apperr.NotFound("service not found")
	ErrDuplicateName = apperr.Conflict("a service with this name already exists")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, it)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(it)
	if err := it.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Deactivate withdraws the service from the catalog. Past interventions keep
// referencing it.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	active := false
	_, err := s.Update(ctx, id, Patch{Actif: &active})
	return err
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Item, int, error) {
	return s.repo.List(ctx, f, page)
}

// Seed inserts each item whose name is not in the catalog yet and returns
// how many were created.
func (s *Service) Seed(ctx context.Context, items []*Item) (int, error) {
	created := 0
	for _, it := range items {
		_, err := s.repo.GetByName(ctx, it.Nom)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		if err := s.Create(ctx, it); err != nil {
			return created, err
		}
		created++
		s.logger.Info().Str("service", it.Nom).Msg("service seeded")
	}
	return created, nil
}
