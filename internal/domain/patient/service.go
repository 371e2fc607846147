package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound     = apperr.NotFound("patient not found")
	ErrDuplicateSSN = apperr.Conflict("a patient with this social security number already exists")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.Actif = true
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.checkSSN(ctx, p.NumeroSecuriteSociale, uuid.Nil); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if patch.NumeroSecuriteSociale != nil {
		if err := s.checkSSN(ctx, p.NumeroSecuriteSociale, id); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Deactivate soft-deletes the patient. Records referencing it are kept.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deactivated")
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Patient, int, error) {
	return s.repo.List(ctx, f, page)
}

// RequireActive returns ErrNotFound unless the patient exists and is active.
func (s *Service) RequireActive(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.Actif {
		return ErrNotFound
	}
	return nil
}

// Exists returns ErrNotFound when no patient has this id, active or not.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}

func (s *Service) checkSSN(ctx context.Context, ssn *string, exclude uuid.UUID) error {
	if ssn == nil || *ssn == "" {
		return nil
	}
	taken, err := s.repo.SSNTaken(ctx, *ssn, exclude)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateSSN
	}
	return nil
}
