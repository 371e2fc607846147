package insurance

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrInsuranceNotFound = apperr.NotFound("insurance not found")
	ErrCoverageNotFound  = apperr.NotFound("patient insurance not found")
	ErrInsuranceInactive = apperr.Conflict("insurance is inactive")
)

// PatientChecker resolves patients for coverage writes and reads.
type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	insurances InsuranceRepository
	coverages  CoverageRepository
	patients   PatientChecker
	logger     zerolog.Logger
}

func NewService(insurances InsuranceRepository, coverages CoverageRepository, patients PatientChecker, logger zerolog.Logger) *Service {
	return &Service{insurances: insurances, coverages: coverages, patients: patients, logger: logger}
}

// -- Insurers --

func (s *Service) CreateInsurance(ctx context.Context, i *Insurance) error {
	if err := i.Validate(); err != nil {
		return err
	}
	return s.insurances.Create(ctx, i)
}

func (s *Service) GetInsurance(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	return s.insurances.GetByID(ctx, id)
}

func (s *Service) UpdateInsurance(ctx context.Context, id uuid.UUID, patch InsurancePatch) (*Insurance, error) {
	i, err := s.insurances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(i)
	if err := i.Validate(); err != nil {
		return nil, err
	}
	if err := s.insurances.Update(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) DeactivateInsurance(ctx context.Context, id uuid.UUID) error {
	inactive := false
	_, err := s.UpdateInsurance(ctx, id, InsurancePatch{Actif: &inactive})
	return err
}

func (s *Service) ListInsurances(ctx context.Context, f InsuranceFilter, page pagination.Params) ([]*Insurance, int, error) {
	return s.insurances.List(ctx, f, page)
}

// -- Patient coverages --

func (s *Service) CreateCoverage(ctx context.Context, c *Coverage) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.patients.RequireActive(ctx, c.PatientID); err != nil {
		return err
	}
	ins, err := s.insurances.GetByID(ctx, c.AssuranceID)
	if err != nil {
		return err
	}
	if !ins.Actif {
		return ErrInsuranceInactive
	}
	if err := s.coverages.Create(ctx, c); err != nil {
		return err
	}
	s.logger.Info().
		Str("patient_id", c.PatientID.String()).
		Str("assurance_id", c.AssuranceID.String()).
		Msg("patient coverage added")
	return nil
}

func (s *Service) GetCoverage(ctx context.Context, id uuid.UUID) (*Coverage, error) {
	return s.coverages.GetByID(ctx, id)
}

func (s *Service) UpdateCoverage(ctx context.Context, id uuid.UUID, patch CoveragePatch) (*Coverage, error) {
	c, err := s.coverages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.coverages.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeactivateCoverage(ctx context.Context, id uuid.UUID) error {
	inactive := false
	_, err := s.UpdateCoverage(ctx, id, CoveragePatch{Actif: &inactive})
	return err
}

func (s *Service) ListCoverages(ctx context.Context, f CoverageFilter, page pagination.Params) ([]*Coverage, int, error) {
	return s.coverages.List(ctx, f, page)
}

// PatientCoverages returns the active coverages of a patient with their insurer.
func (s *Service) PatientCoverages(ctx context.Context, patientID uuid.UUID) ([]*CoverageView, error) {
	if err := s.patients.Exists(ctx, patientID); err != nil {
		return nil, err
	}
	return s.coverages.ListForPatient(ctx, patientID, true)
}

// CoverageFor returns the patient's coverage with the insurer that applies
// on day, or nil when there is none.
func (s *Service) CoverageFor(ctx context.Context, patientID, insuranceID uuid.UUID, day civil.Date) (*Coverage, error) {
	views, err := s.coverages.ListForPatient(ctx, patientID, true)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if v.AssuranceID == insuranceID && v.CoversOn(day) {
			return v.Coverage, nil
		}
	}
	return nil, nil
}
