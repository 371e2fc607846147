package invoicing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/catalog"
	"github.com/oxycare/oxycare/internal/domain/insurance"
	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/rental"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound                = apperr.NotFound("invoice not found")
	ErrDuplicateNumber         = apperr.Conflict("an invoice with this number already exists")
	ErrInvoiceLocked           = apperr.Conflict("a paid invoice cannot be modified")
	ErrAlreadyPaid             = apperr.Conflict("invoice is already paid")
	ErrCannotCancelPaid        = apperr.Conflict("a paid invoice cannot be cancelled")
	ErrInvoiceCancelled        = apperr.Conflict("invoice is cancelled")
	ErrNoBillableInterventions = apperr.Conflict("no billable intervention found for this patient")
	ErrRentalAlreadyInvoiced   = apperr.Conflict("rental is already invoiced")
	ErrNoCoverage              = apperr.Conflict("patient has no active coverage with this insurer on the issue date")
	ErrUnknownReference        = apperr.Invalid("items", "references an unknown equipment, intervention or service")
)

const itemDateLayout = "02/01/2006"

type PatientChecker interface {
	RequireActive(ctx context.Context, id uuid.UUID) error
}

// Insurers resolves the insurer share of an invoice.
type Insurers interface {
	GetInsurance(ctx context.Context, id uuid.UUID) (*insurance.Insurance, error)
	CoverageFor(ctx context.Context, patientID, insuranceID uuid.UUID, day civil.Date) (*insurance.Coverage, error)
}

type Interventions interface {
	Billable(ctx context.Context, patientID uuid.UUID, ids []uuid.UUID) ([]*intervention.Intervention, error)
	MarkInvoiced(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error
}

type Rentals interface {
	Get(ctx context.Context, id uuid.UUID) (*rental.View, error)
	MarkInvoiced(ctx context.Context, id, invoiceID uuid.UUID) error
}

type CatalogLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
}

type Service struct {
	repo          Repository
	tx            db.Transactor
	patients      PatientChecker
	insurers      Insurers
	interventions Interventions
	rentals       Rentals
	catalog       CatalogLookup
	logger        zerolog.Logger
	now           func() time.Time
	numbers       func(time.Time) (string, error)
}

func NewService(repo Repository, tx db.Transactor, patients PatientChecker, insurers Insurers,
	interventions Interventions, rentals Rentals, catalog CatalogLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		tx:            tx,
		patients:      patients,
		insurers:      insurers,
		interventions: interventions,
		rentals:       rentals,
		catalog:       catalog,
		logger:        logger,
		now:           time.Now,
		numbers:       GenerateNumber,
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// Create issues an invoice with its items. Missing amounts and dates are
// derived; a missing number is generated.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*View, error) {
	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	today := s.today()
	inv := &Invoice{
		PatientID:       req.PatientID,
		DateEmission:    today,
		TauxTVA:         DefaultVATRate,
		Statut:          StatusPending,
		DocumentFacture: req.DocumentFacture,
		Notes:           req.Notes,
	}
	if req.DateEmission != nil {
		inv.DateEmission = *req.DateEmission
	}
	inv.DateEcheance = inv.DateEmission.AddDays(PaymentTermDays)
	if req.DateEcheance != nil {
		inv.DateEcheance = *req.DateEcheance
	}
	inv.PeriodeDebut = inv.DateEmission
	if req.PeriodeDebut != nil {
		inv.PeriodeDebut = *req.PeriodeDebut
	}
	inv.PeriodeFin = inv.PeriodeDebut
	if req.PeriodeFin != nil {
		inv.PeriodeFin = *req.PeriodeFin
	}
	if req.TauxTVA != nil {
		inv.TauxTVA = *req.TauxTVA
	}
	inv.MontantHT = sumItems(items)
	if req.MontantHT != nil {
		inv.MontantHT = *req.MontantHT
	}
	inv.MontantTTC = ttcOf(inv.MontantHT, inv.TauxTVA)
	if req.MontantTTC != nil {
		inv.MontantTTC = *req.MontantTTC
	}
	if req.Statut != nil {
		inv.Statut = *req.Statut
	}
	if inv.Statut == StatusPaid {
		inv.DatePaiement = &today
	}
	if req.PatientID == uuid.Nil {
		return nil, apperr.Invalid("patient_id", "is required")
	}
	if err := s.applyCoverage(ctx, inv, req.Coverage); err != nil {
		return nil, err
	}
	if err := s.patients.RequireActive(ctx, inv.PatientID); err != nil {
		return nil, err
	}

	var number string
	if req.NumeroFacture != nil {
		number = *req.NumeroFacture
	}
	if err := s.issue(ctx, inv, items, number, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, inv.ID)
}

// issue inserts the invoice, its items and whatever follow-up writes then
// needs, in one transaction. An empty number is generated and regenerated on
// collision; a caller-supplied duplicate fails with ErrDuplicateNumber.
func (s *Service) issue(ctx context.Context, inv *Invoice, items []*Item, number string, then func(ctx context.Context) error) error {
	auto := number == ""
	for attempt := 1; ; attempt++ {
		if auto {
			n, err := s.numbers(s.now())
			if err != nil {
				return err
			}
			number = n
		}
		inv.NumeroFacture = number
		if err := inv.Validate(); err != nil {
			return err
		}
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, inv); err != nil {
				return err
			}
			if err := s.repo.ReplaceItems(ctx, inv.ID, items); err != nil {
				return err
			}
			if then != nil {
				return then(ctx)
			}
			return nil
		})
		if auto && errors.Is(err, ErrDuplicateNumber) && attempt < maxNumberAttempts {
			s.logger.Warn().Str("numero_facture", number).Int("attempt", attempt).Msg("invoice number collision, retrying")
			continue
		}
		return err
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return newView(inv, items, s.today()), nil
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error) {
	invoices, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, 0, err
	}
	today := s.today()
	views := make([]*View, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, newView(inv, nil, today))
	}
	return views, total, nil
}

// Update applies patch. A paid invoice only accepts patches that keep it
// payée.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*View, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid() && (patch.Statut == nil || *patch.Statut != StatusPaid) {
		return nil, ErrInvoiceLocked
	}
	if inv.Statut == StatusCancelled && patch.Statut != nil && *patch.Statut != StatusCancelled {
		return nil, ErrInvoiceCancelled
	}
	if patch.AssuranceID == nil && inv.AssuranceID == nil &&
		(patch.TauxPriseEnCharge != nil || patch.MontantPriseEnCharge != nil) {
		return nil, apperr.Invalid("assurance_id", "is required with a coverage rate or amount")
	}
	wasPaid := inv.IsPaid()
	patientID := inv.PatientID
	patch.apply(inv)

	var items []*Item
	if patch.Items != nil {
		if items, err = s.resolveItems(ctx, *patch.Items); err != nil {
			return nil, err
		}
		if patch.MontantHT == nil {
			inv.MontantHT = sumItems(items)
		}
	}
	if patch.MontantTTC == nil && (patch.MontantHT != nil || patch.TauxTVA != nil || patch.Items != nil) {
		inv.MontantTTC = ttcOf(inv.MontantHT, inv.TauxTVA)
	}
	amountsChanged := patch.MontantHT != nil || patch.TauxTVA != nil || patch.MontantTTC != nil || patch.Items != nil
	switch {
	case patch.AssuranceID != nil:
		if err := s.applyCoverage(ctx, inv, patch.Coverage); err != nil {
			return nil, err
		}
	case amountsChanged || patch.TauxPriseEnCharge != nil || patch.MontantPriseEnCharge != nil:
		inv.splitCoverage(patch.MontantPriseEnCharge)
	}
	if inv.IsPaid() && !wasPaid && inv.DatePaiement == nil {
		today := s.today()
		inv.DatePaiement = &today
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if inv.PatientID != patientID {
		if err := s.patients.RequireActive(ctx, inv.PatientID); err != nil {
			return nil, err
		}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		if patch.Items == nil {
			return nil
		}
		return s.repo.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// MarkPaid records the payment of a pending invoice.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, req PaymentRequest) (*View, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Statut {
	case StatusPaid:
		return nil, ErrAlreadyPaid
	case StatusCancelled:
		return nil, ErrInvoiceCancelled
	}
	paidOn := s.today()
	if req.DatePaiement != nil {
		paidOn = *req.DatePaiement
	}
	inv.Statut = StatusPaid
	inv.DatePaiement = &paidOn
	inv.MethodePaiement = req.MethodePaiement
	inv.ReferencePaiement = req.ReferencePaiement
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("numero_facture", inv.NumeroFacture).
		Float64("montant_ttc", inv.MontantTTC).
		Msg("invoice paid")
	return s.Get(ctx, id)
}

// Cancel voids a pending invoice. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*View, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Statut {
	case StatusPaid:
		return nil, ErrCannotCancelPaid
	case StatusCancelled:
		return s.Get(ctx, id)
	}
	inv.Statut = StatusCancelled
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().Str("numero_facture", inv.NumeroFacture).Msg("invoice cancelled")
	return s.Get(ctx, id)
}

// FromInterventions bills the selected interventions of a patient: one
// line per intervention, period spanning their dates, due in 30 days.
func (s *Service) FromInterventions(ctx context.Context, req FromInterventionsRequest) (*View, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Invalid("patient_id", "is required")
	}
	if len(req.InterventionIDs) == 0 {
		return nil, apperr.Invalid("intervention_ids", "is required")
	}
	if err := s.patients.RequireActive(ctx, req.PatientID); err != nil {
		return nil, err
	}
	billable, err := s.interventions.Billable(ctx, req.PatientID, req.InterventionIDs)
	if err != nil {
		return nil, err
	}
	if len(billable) == 0 {
		return nil, ErrNoBillableInterventions
	}

	inv := s.draft(req.PatientID, req.GenerateOptions)
	ids := make([]uuid.UUID, 0, len(billable))
	items := make([]*Item, 0, len(billable))
	for i, in := range billable {
		start, end := civil.DateOf(in.DatePlanifiee), civil.DateOf(in.PeriodEnd())
		if i == 0 || start.Before(inv.PeriodeDebut) {
			inv.PeriodeDebut = start
		}
		if i == 0 || end.After(inv.PeriodeFin) {
			inv.PeriodeFin = end
		}
		amount := in.Amount()
		inv.MontantHT += amount
		interventionID := in.ID
		items = append(items, &Item{
			Description:    fmt.Sprintf("Intervention %s du %s", in.TypeIntervention, in.DatePlanifiee.Format(itemDateLayout)),
			Quantite:       1,
			PrixUnitaire:   amount,
			MontantTotal:   amount,
			EquipementID:   in.EquipementID,
			InterventionID: &interventionID,
		})
		ids = append(ids, in.ID)
	}
	inv.MontantHT = round2(inv.MontantHT)
	inv.MontantTTC = ttcOf(inv.MontantHT, inv.TauxTVA)
	if err := s.applyCoverage(ctx, inv, req.Coverage); err != nil {
		return nil, err
	}

	err = s.issue(ctx, inv, items, "", func(ctx context.Context) error {
		return s.interventions.MarkInvoiced(ctx, ids, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("numero_facture", inv.NumeroFacture).
		Int("interventions", len(ids)).
		Float64("montant_ttc", inv.MontantTTC).
		Msg("invoice generated from interventions")
	return s.Get(ctx, inv.ID)
}

// FromRental bills a rental according to its billing mode: journalier per
// day, mensuel per started 30-day month, forfaitaire as a flat fee.
func (s *Service) FromRental(ctx context.Context, rentalID uuid.UUID, opts GenerateOptions) (*View, error) {
	r, err := s.rentals.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.FactureID != nil {
		prev, err := s.repo.GetByID(ctx, *r.FactureID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if prev != nil && prev.Statut != StatusCancelled {
			return nil, ErrRentalAlreadyInvoiced
		}
	}
	if err := s.patients.RequireActive(ctx, r.PatientID); err != nil {
		return nil, err
	}

	today := s.today()
	end := today
	if r.DateFin != nil {
		end = *r.DateFin
	}
	qty := rentalQuantity(r.ModeFacturation, r.Days(today))
	model := "équipement"
	if r.Equipment != nil && r.Equipment.Modele != "" {
		model = r.Equipment.Modele
	}
	equipmentID := r.EquipmentID
	item := &Item{
		Description: fmt.Sprintf("Location %s du %s au %s", model,
			r.DateDebut.Format(itemDateLayout), end.Format(itemDateLayout)),
		Quantite:     qty,
		PrixUnitaire: r.TarifJournalier,
		MontantTotal: round2(qty * r.TarifJournalier),
		EquipementID: &equipmentID,
	}

	inv := s.draft(r.PatientID, opts)
	inv.PeriodeDebut = r.DateDebut
	inv.PeriodeFin = end
	inv.MontantHT = item.MontantTotal
	inv.MontantTTC = ttcOf(inv.MontantHT, inv.TauxTVA)
	if err := s.applyCoverage(ctx, inv, opts.Coverage); err != nil {
		return nil, err
	}

	err = s.issue(ctx, inv, []*Item{item}, "", func(ctx context.Context) error {
		return s.rentals.MarkInvoiced(ctx, r.ID, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("numero_facture", inv.NumeroFacture).
		Str("rental_id", r.ID.String()).
		Float64("montant_ttc", inv.MontantTTC).
		Msg("invoice generated from rental")
	return s.Get(ctx, inv.ID)
}

// rentalQuantity is the number of billed days, or 1 for a flat fee.
func rentalQuantity(mode string, days int) float64 {
	switch mode {
	case rental.BillingMonthly:
		return math.Ceil(float64(days)/30) * 30
	case rental.BillingFlat:
		return 1
	default:
		return float64(days)
	}
}

// draft is a pending invoice issued today and due in 30 days.
func (s *Service) draft(patientID uuid.UUID, opts GenerateOptions) *Invoice {
	today := s.today()
	inv := &Invoice{
		PatientID:    patientID,
		DateEmission: today,
		DateEcheance: today.AddDays(PaymentTermDays),
		TauxTVA:      DefaultVATRate,
		Statut:       StatusPending,
		Notes:        opts.Notes,
	}
	if opts.TauxTVA != nil {
		inv.TauxTVA = *opts.TauxTVA
	}
	return inv
}

// applyCoverage sets the insurer fields. Without an explicit rate the
// patient's coverage with that insurer on the issue date supplies it.
func (s *Service) applyCoverage(ctx context.Context, inv *Invoice, c Coverage) error {
	if c.AssuranceID == nil {
		if c.TauxPriseEnCharge != nil || c.MontantPriseEnCharge != nil {
			return apperr.Invalid("assurance_id", "is required with a coverage rate or amount")
		}
		inv.splitCoverage(nil)
		return nil
	}
	if _, err := s.insurers.GetInsurance(ctx, *c.AssuranceID); err != nil {
		return err
	}
	inv.AssuranceID = c.AssuranceID
	if c.NumeroDossierAssurance != nil {
		inv.NumeroDossierAssurance = c.NumeroDossierAssurance
	}
	if c.TauxPriseEnCharge != nil {
		inv.TauxPriseEnCharge = *c.TauxPriseEnCharge
	} else {
		cov, err := s.insurers.CoverageFor(ctx, inv.PatientID, *c.AssuranceID, inv.DateEmission)
		if err != nil {
			return err
		}
		if cov == nil {
			return ErrNoCoverage
		}
		inv.TauxPriseEnCharge = cov.TauxCouverture
	}
	inv.splitCoverage(c.MontantPriseEnCharge)
	return nil
}

// resolveItems builds the invoice lines, naming catalog lines after their
// service when no description is given.
func (s *Service) resolveItems(ctx context.Context, in []ItemInput) ([]*Item, error) {
	resolved := make([]ItemInput, len(in))
	copy(resolved, in)
	for i := range resolved {
		if resolved[i].ServiceID == nil {
			continue
		}
		svc, err := s.catalog.Get(ctx, *resolved[i].ServiceID)
		if err != nil {
			return nil, err
		}
		if resolved[i].Description == "" {
			resolved[i].Description = svc.Nom
		}
	}
	return buildItems(resolved)
}

// Export renders the filtered invoices as an xlsx workbook.
func (s *Service) Export(ctx context.Context, f Filter) ([]byte, error) {
	views, _, err := s.List(ctx, f, pagination.All())
	if err != nil {
		return nil, err
	}
	return exportWorkbook(views)
}
