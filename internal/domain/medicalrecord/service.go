package medicalrecord

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var ErrNotFound = apperr.NotFound("medical record not found")

// PatientChecker is the part of the patient registry records depend on.
type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) error
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

func (s *Service) Create(ctx context.Context, r *Record) error {
	r.Actif = true
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.patients.RequireActive(ctx, r.PatientID); err != nil {
		return err
	}
	if r.ParametresTherapeutiques == nil {
		r.ParametresTherapeutiques = map[string]interface{}{}
	}
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Record, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.Actif = false
	return s.repo.Update(ctx, r)
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Record, int, error) {
	return s.repo.List(ctx, f, page)
}

// ForPatient lists the active records of a patient, most recent first.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*Record, int, error) {
	if err := s.patients.Exists(ctx, patientID); err != nil {
		return nil, 0, err
	}
	actif := true
	return s.repo.List(ctx, Filter{PatientID: &patientID, Actif: &actif}, page)
}

// AddExam appends a result to the list kept under the exam date.
func (s *Service) AddExam(ctx context.Context, id uuid.UUID, in ExamInput) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	day := civil.DateOf(s.now())
	if in.Date != nil {
		day = *in.Date
	}
	r, err := s.repo.AppendExamResult(ctx, id, day.String(), in.Result)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("record_id", id.String()).Str("date", day.String()).Msg("exam result added")
	return r, nil
}

func (s *Service) AddDocument(ctx context.Context, id uuid.UUID, in DocumentInput) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	doc := Document{Path: in.Path, Type: in.Type, DateAjout: civil.DateOf(s.now()).String()}
	return s.repo.AppendDocument(ctx, id, doc)
}
