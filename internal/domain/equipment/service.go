package equipment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound        = apperr.NotFound("equipment not found")
	ErrDuplicateSerial = apperr.Conflict("an equipment with this serial number already exists")
	ErrRetired         = apperr.Conflict("equipment is retired")
	ErrAlreadyAssigned = apperr.Conflict("equipment is already assigned to another patient")
	ErrNotAssigned     = apperr.Conflict("equipment is not assigned to a patient")
	ErrUnavailable     = apperr.Conflict("equipment is not available")
)

// PatientChecker verifies that a patient exists and is active.
type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo     Repository
	patients PatientChecker
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientChecker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, e *Equipment) error {
	if e.Statut == "" {
		e.Statut = StatusNew
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.checkSerial(ctx, e.NumeroSerie, uuid.Nil); err != nil {
		return err
	}
	if e.PatientID != nil {
		if err := s.patients.RequireActive(ctx, *e.PatientID); err != nil {
			return err
		}
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Equipment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Statut == StatusRetired && patch.Statut != nil && *patch.Statut != StatusRetired {
		return nil, ErrRetired
	}
	patch.Apply(e)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if patch.NumeroSerie != nil {
		if err := s.checkSerial(ctx, e.NumeroSerie, id); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Retire marks the unit réformé. Retired units cannot be assigned or rented.
func (s *Service) Retire(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetStatus(ctx, id, StatusRetired); err != nil {
		return err
	}
	s.logger.Info().Str("equipment_id", id.String()).Msg("equipment retired")
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Equipment, int, error) {
	return s.repo.List(ctx, f, page)
}

// Assign hands the unit to a patient and puts it in service.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, req AssignRequest) (*Equipment, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Invalid("patient_id", "is required")
	}
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Statut == StatusRetired {
		return nil, ErrRetired
	}
	if err := s.patients.RequireActive(ctx, req.PatientID); err != nil {
		return nil, err
	}
	now := s.now()
	if e.IsAssigned(now) && *e.PatientID != req.PatientID {
		return nil, ErrAlreadyAssigned
	}

	at := now
	if req.DateAttribution != nil {
		at = *req.DateAttribution
	}
	patientID := req.PatientID
	e.PatientID = &patientID
	e.DateAttribution = &at
	e.DateFinAttribution = nil
	e.Statut = StatusInService
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Release ends the current assignment. The patient link is kept as history.
func (s *Service) Release(ctx context.Context, id uuid.UUID, req ReleaseRequest) (*Equipment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.PatientID == nil {
		return nil, ErrNotAssigned
	}
	end := s.now()
	if req.DateFinAttribution != nil {
		end = *req.DateFinAttribution
	}
	e.DateFinAttribution = &end
	e.Statut = StatusAvailable
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Available(ctx context.Context, equipmentType *string) ([]*Equipment, error) {
	return s.repo.ListAvailable(ctx, equipmentType)
}

func (s *Service) MaintenanceDue(ctx context.Context) ([]*Equipment, error) {
	return s.repo.ListMaintenanceDue(ctx, civil.DateOf(s.now()))
}

// Reserve moves an available unit to en location. Callers run it inside
// the transaction that records the rental.
func (s *Service) Reserve(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Statut != StatusAvailable {
		return nil, ErrUnavailable
	}
	ok, err := s.repo.TransitionStatus(ctx, id, StatusAvailable, StatusRented)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnavailable
	}
	e.Statut = StatusRented
	return e, nil
}

// ReturnToStock makes a unit available again unless it was retired meanwhile.
func (s *Service) ReturnToStock(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.Statut == StatusRetired {
		return nil
	}
	return s.repo.SetStatus(ctx, id, StatusAvailable)
}

// RecordMaintenance stamps a completed maintenance and schedules the next one.
func (s *Service) RecordMaintenance(ctx context.Context, id uuid.UUID, done civil.Date) error {
	next := done.AddDays(MaintenanceInterval)
	if err := s.repo.SetMaintenance(ctx, id, done, next); err != nil {
		return err
	}
	s.logger.Info().
		Str("equipment_id", id.String()).
		Str("next_maintenance", next.String()).
		Msg("maintenance rescheduled")
	return nil
}

func (s *Service) checkSerial(ctx context.Context, serial string, exclude uuid.UUID) error {
	taken, err := s.repo.SerialTaken(ctx, serial, exclude)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateSerial
	}
	return nil
}
