package intervention

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/catalog"
	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/identity"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound          = apperr.NotFound("intervention not found")
	ErrAlreadyCompleted  = apperr.Conflict("intervention is already completed")
	ErrInvalidTransition = apperr.Conflict("invalid intervention status transition")
	// ErrCloseThroughAction rejects patches that set terminée or annulée.
	ErrCloseThroughAction = apperr.Conflict("use complete or cancel to close an intervention")
	ErrInactiveTechnician = apperr.Invalid("technicien_id", "references an inactive user")
	ErrUnknownService     = apperr.Invalid("services", "references an unknown service")
)

type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
}

// EquipmentRegistry is what interventions need from the equipment registry.
type EquipmentRegistry interface {
	Get(ctx context.Context, id uuid.UUID) (*equipment.Equipment, error)
	RecordMaintenance(ctx context.Context, id uuid.UUID, done civil.Date) error
}

type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type CatalogLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
}

type Service struct {
	repo       Repository
	tx         db.Transactor
	patients   PatientChecker
	equipments EquipmentRegistry
	users      UserLookup
	catalog    CatalogLookup
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, tx db.Transactor, patients PatientChecker, equipments EquipmentRegistry,
	users UserLookup, catalog CatalogLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		patients:   patients,
		equipments: equipments,
		users:      users,
		catalog:    catalog,
		logger:     logger,
		now:        time.Now,
	}
}

// Create records the intervention and its service lines in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*View, error) {
	in, err := req.intervention()
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := validateServices(req.Services); err != nil {
		return nil, err
	}
	if err := s.patients.RequireActive(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, in, req.Services); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, in); err != nil {
			return err
		}
		return s.repo.ReplaceServices(ctx, in.ID, lines(in.ID, req.Services))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("intervention_id", in.ID.String()).
		Str("type", in.TypeIntervention).
		Time("date_planifiee", in.DatePlanifiee).
		Msg("intervention scheduled")
	return s.Get(ctx, in.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Services, err = s.repo.ListServices(ctx, id); err != nil {
		return nil, err
	}
	return v, nil
}

// Update applies patch. A status change must follow the state machine.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in := v.Intervention
	if patch.Statut != nil && *patch.Statut != in.Statut {
		switch {
		case *patch.Statut == StatusDone || *patch.Statut == StatusCancelled:
			return nil, ErrCloseThroughAction
		case !CanTransition(in.Statut, *patch.Statut):
			return nil, ErrInvalidTransition
		}
	}
	started := patch.Statut != nil && *patch.Statut == StatusInProgress && in.Statut != StatusInProgress
	patch.Apply(in)
	if started && in.DateDebut == nil {
		now := s.now()
		in.DateDebut = &now
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var services []ServiceInput
	if patch.Services != nil {
		services = *patch.Services
		if err := validateServices(services); err != nil {
			return nil, err
		}
	}
	if err := s.checkRefs(ctx, in, services); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, in); err != nil {
			return err
		}
		if patch.Services == nil {
			return nil
		}
		return s.repo.ReplaceServices(ctx, id, lines(id, services))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Start moves a planned intervention to en cours.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.Statut, StatusInProgress) {
		return nil, ErrInvalidTransition
	}
	now := s.now()
	v.Statut = StatusInProgress
	v.DateDebut = &now
	if err := s.repo.Update(ctx, v.Intervention); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Complete closes the intervention. A completed maintenance reschedules the
// linked equipment in the same transaction.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, req CompleteRequest) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in := v.Intervention
	switch in.Statut {
	case StatusDone:
		return nil, ErrAlreadyCompleted
	case StatusCancelled:
		return nil, ErrInvalidTransition
	}
	if req.Montant != nil && *req.Montant < 0 {
		return nil, apperr.Invalid("montant", "must not be negative")
	}

	end := s.now()
	if req.DateFin != nil {
		end = *req.DateFin
	}
	if in.DateDebut != nil && end.Before(*in.DateDebut) {
		return nil, apperr.Invalid("date_fin", "must not be before date_debut")
	}
	in.Statut = StatusDone
	in.DateFin = &end
	in.ActionsEffectuees = req.ActionsEffectuees
	in.PiecesRemplacees = req.PiecesRemplacees
	in.Resultat = req.Resultat
	in.SignaturePatient = req.SignaturePatient
	in.SignatureTechnicien = req.SignatureTechnicien
	if req.Montant != nil {
		in.Montant = req.Montant
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, in); err != nil {
			return err
		}
		if in.TypeIntervention == TypeMaintenance && in.EquipementID != nil {
			return s.equipments.RecordMaintenance(ctx, *in.EquipementID, civil.DateOf(end))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("intervention_id", id.String()).Msg("intervention completed")
	return s.Get(ctx, id)
}

// Cancel marks the intervention annulée. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch v.Statut {
	case StatusCancelled:
		return s.Get(ctx, id)
	case StatusDone:
		return nil, ErrInvalidTransition
	}
	v.Statut = StatusCancelled
	if err := s.repo.Update(ctx, v.Intervention); err != nil {
		return nil, err
	}
	s.logger.Info().Str("intervention_id", id.String()).Msg("intervention cancelled")
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error) {
	return s.repo.List(ctx, f, page)
}

// Schedule lists the open interventions of a technician planned between
// from and to, both days included.
func (s *Service) Schedule(ctx context.Context, technicianID uuid.UUID, from, to civil.Date) ([]*View, error) {
	if to.Before(from) {
		return nil, apperr.Invalid("date_fin", "must not be before date_debut")
	}
	return s.repo.Schedule(ctx, technicianID, from.Time, to.AddDays(1).Time)
}

func (s *Service) Overdue(ctx context.Context) ([]*View, error) {
	return s.repo.Overdue(ctx, s.now())
}

// Billable returns the interventions among ids that can be invoiced to the
// patient.
func (s *Service) Billable(ctx context.Context, patientID uuid.UUID, ids []uuid.UUID) ([]*Intervention, error) {
	if len(ids) == 0 {
		return []*Intervention{}, nil
	}
	return s.repo.ListBillable(ctx, patientID, ids)
}

// MarkInvoiced links the interventions to the invoice that bills them.
func (s *Service) MarkInvoiced(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error {
	return s.repo.SetInvoice(ctx, ids, invoiceID)
}

func (s *Service) checkRefs(ctx context.Context, in *Intervention, services []ServiceInput) error {
	if in.EquipementID != nil {
		if _, err := s.equipments.Get(ctx, *in.EquipementID); err != nil {
			return err
		}
	}
	if in.TechnicienID != nil {
		u, err := s.users.Get(ctx, *in.TechnicienID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return ErrInactiveTechnician
		}
	}
	for _, si := range services {
		item, err := s.catalog.Get(ctx, si.ServiceID)
		if err != nil {
			return err
		}
		if !item.Actif {
			return apperr.Invalid("services", "service "+item.Nom+" is inactive")
		}
	}
	return nil
}

func lines(interventionID uuid.UUID, in []ServiceInput) []*ServiceLine {
	out := make([]*ServiceLine, 0, len(in))
	for _, si := range in {
		out = append(out, si.line(interventionID))
	}
	return out
}
