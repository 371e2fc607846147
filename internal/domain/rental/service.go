package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound          = apperr.NotFound("rental not found")
	ErrAlreadyTerminated = apperr.Conflict("rental is already terminated")
)

type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) error
}

// Stock moves equipment in and out of rental.
type Stock interface {
	Reserve(ctx context.Context, id uuid.UUID) (*equipment.Equipment, error)
	ReturnToStock(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	patients PatientChecker
	stock    Stock
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, patients PatientChecker, stock Stock, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, patients: patients, stock: stock, logger: logger, now: time.Now}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// Create records the rental and puts the equipment en location in one
// transaction. Only disponible equipment can be rented.
func (s *Service) Create(ctx context.Context, in NewRental) (*View, error) {
	r := in.rental(s.today())
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.patients.RequireActive(ctx, r.PatientID); err != nil {
		return nil, err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.stock.Reserve(ctx, r.EquipmentID); err != nil {
			return err
		}
		return s.repo.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("rental_id", r.ID.String()).
		Str("equipment_id", r.EquipmentID.String()).
		Str("patient_id", r.PatientID.String()).
		Msg("rental started")
	return s.repo.GetByID(ctx, r.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(v.Rental)
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v.Rental); err != nil {
		return nil, err
	}
	return v, nil
}

// Terminate closes an open rental and returns the equipment to stock.
func (s *Service) Terminate(ctx context.Context, id uuid.UUID, req TerminateRequest) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.IsOpen() {
		return nil, ErrAlreadyTerminated
	}
	end := s.today()
	if req.DateFin != nil {
		end = *req.DateFin
	}
	if end.Before(v.DateDebut) {
		return nil, apperr.Invalid("date_fin", "must not be before date_debut")
	}
	v.DateFin = &end
	v.EtatRetour = req.EtatRetour
	v.NotesRetour = req.NotesRetour

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, v.Rental); err != nil {
			return err
		}
		return s.stock.ReturnToStock(ctx, v.EquipmentID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("rental_id", id.String()).Str("date_fin", end.String()).Msg("rental terminated")
	return v, nil
}

// SoftDelete hides the rental. The equipment status is left as is.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	v.Actif = false
	return s.repo.Update(ctx, v.Rental)
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error) {
	return s.repo.List(ctx, f, page)
}

// Active lists open rentals that were not deleted.
func (s *Service) Active(ctx context.Context, page pagination.Params) ([]*View, int, error) {
	actif := true
	return s.repo.List(ctx, Filter{Actif: &actif, Open: true}, page)
}

func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, page pagination.Params) ([]*View, int, error) {
	if err := s.patients.Exists(ctx, patientID); err != nil {
		return nil, 0, err
	}
	actif := true
	return s.repo.List(ctx, Filter{PatientID: &patientID, Actif: &actif}, page)
}

// MarkInvoiced links the rental to the invoice that bills it.
func (s *Service) MarkInvoiced(ctx context.Context, id, invoiceID uuid.UUID) error {
	return s.repo.SetInvoice(ctx, id, invoiceID)
}
