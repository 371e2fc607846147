package invoicing

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

const (
	StatusPending   = "en attente"
	StatusPaid      = "payée"
	StatusCancelled = "annulée"
)

const (
	DefaultVATRate  = 20.0
	PaymentTermDays = 30
)

func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusPaid || s == StatusCancelled
}

type Invoice struct {
	ID                     uuid.UUID   `json:"id"`
	NumeroFacture          string      `json:"numero_facture"`
	PatientID              uuid.UUID   `json:"patient_id"`
	DateEmission           civil.Date  `json:"date_emission"`
	DateEcheance           civil.Date  `json:"date_echeance"`
	MontantHT              float64     `json:"montant_ht"`
	TauxTVA                float64     `json:"taux_tva"`
	MontantTTC             float64     `json:"montant_ttc"`
	PeriodeDebut           civil.Date  `json:"periode_debut"`
	PeriodeFin             civil.Date  `json:"periode_fin"`
	Statut                 string      `json:"statut"`
	DatePaiement           *civil.Date `json:"date_paiement"`
	MethodePaiement        *string     `json:"methode_paiement"`
	ReferencePaiement      *string     `json:"reference_paiement"`
	AssuranceID            *uuid.UUID  `json:"assurance_id"`
	NumeroDossierAssurance *string     `json:"numero_dossier_assurance"`
	TauxPriseEnCharge      float64     `json:"taux_prise_en_charge"`
	MontantPriseEnCharge   float64     `json:"montant_prise_en_charge"`
	ResteACharge           float64     `json:"reste_a_charge"`
	DocumentFacture        *string     `json:"document_facture"`
	Notes                  *string     `json:"notes"`
	CreatedAt              time.Time   `json:"date_creation"`
	UpdatedAt              time.Time   `json:"date_modification"`

	Patient *patient.Ref `json:"patient,omitempty"`
}

func (inv *Invoice) Validate() error {
	v := apperr.Violations{}
	v.Require("numero_facture", inv.NumeroFacture)
	if inv.PatientID == uuid.Nil {
		v.Add("patient_id", "is required")
	}
	if !ValidStatus(inv.Statut) {
		v.Add("statut", "must be one of en attente, payée, annulée")
	}
	if inv.DateEcheance.Before(inv.DateEmission) {
		v.Add("date_echeance", "must not be before date_emission")
	}
	if inv.PeriodeFin.Before(inv.PeriodeDebut) {
		v.Add("periode_fin", "must not be before periode_debut")
	}
	if inv.MontantHT < 0 {
		v.Add("montant_ht", "must not be negative")
	}
	if inv.TauxTVA < 0 {
		v.Add("taux_tva", "must not be negative")
	}
	if inv.TauxPriseEnCharge < 0 || inv.TauxPriseEnCharge > 100 {
		v.Add("taux_prise_en_charge", "must be between 0 and 100")
	}
	if inv.MontantPriseEnCharge < 0 || inv.MontantPriseEnCharge > inv.MontantTTC+0.005 {
		v.Add("montant_prise_en_charge", "must be between 0 and montant_ttc")
	}
	return v.Err()
}

func (inv *Invoice) IsPaid() bool {
	return inv.Statut == StatusPaid
}

// IsOverdue reports whether a pending invoice is past its due date.
func (inv *Invoice) IsOverdue(today civil.Date) bool {
	return inv.Statut == StatusPending && today.After(inv.DateEcheance)
}

// ttcOf applies the VAT rate to a pre-tax amount, rounded to the cent.
func ttcOf(ht, vat float64) float64 {
	return round2(ht * (1 + vat/100))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// splitCoverage derives the insurer share and the patient remainder. An
// explicit insurer amount wins over the rate.
func (inv *Invoice) splitCoverage(explicitAmount *float64) {
	switch {
	case explicitAmount != nil:
		inv.MontantPriseEnCharge = *explicitAmount
	case inv.AssuranceID != nil:
		inv.MontantPriseEnCharge = round2(inv.MontantTTC * inv.TauxPriseEnCharge / 100)
	default:
		inv.MontantPriseEnCharge = 0
	}
	inv.ResteACharge = round2(inv.MontantTTC - inv.MontantPriseEnCharge)
}

// Item is one invoice line.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	FactureID      uuid.UUID  `json:"facture_id"`
	Description    string     `json:"description"`
	Quantite       float64    `json:"quantite"`
	PrixUnitaire   float64    `json:"prix_unitaire"`
	MontantTotal   float64    `json:"montant_total"`
	EquipementID   *uuid.UUID `json:"equipement_id"`
	InterventionID *uuid.UUID `json:"intervention_id"`
	ServiceID      *uuid.UUID `json:"service_id"`
}

// ItemInput is a line of the items array. Quantite defaults to 1 and
// montant_total to quantite × prix_unitaire.
type ItemInput struct {
	Description    string     `json:"description"`
	Quantite       *float64   `json:"quantite"`
	PrixUnitaire   float64    `json:"prix_unitaire"`
	MontantTotal   *float64   `json:"montant_total"`
	EquipementID   *uuid.UUID `json:"equipement_id"`
	InterventionID *uuid.UUID `json:"intervention_id"`
	ServiceID      *uuid.UUID `json:"service_id"`
}

func (in ItemInput) item() *Item {
	it := &Item{
		Description:    in.Description,
		Quantite:       1,
		PrixUnitaire:   in.PrixUnitaire,
		EquipementID:   in.EquipementID,
		InterventionID: in.InterventionID,
		ServiceID:      in.ServiceID,
	}
	if in.Quantite != nil {
		it.Quantite = *in.Quantite
	}
	it.MontantTotal = round2(it.Quantite * it.PrixUnitaire)
	if in.MontantTotal != nil {
		it.MontantTotal = *in.MontantTotal
	}
	return it
}

func buildItems(in []ItemInput) ([]*Item, error) {
	v := apperr.Violations{}
	items := make([]*Item, 0, len(in))
	for i, ii := range in {
		field := "items[" + strconv.Itoa(i) + "]"
		v.Require(field+".description", ii.Description)
		if ii.Quantite != nil && *ii.Quantite <= 0 {
			v.Add(field+".quantite", "must be positive")
		}
		if ii.PrixUnitaire < 0 {
			v.Add(field+".prix_unitaire", "must not be negative")
		}
		items = append(items, ii.item())
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func sumItems(items []*Item) float64 {
	var total float64
	for _, it := range items {
		total += it.MontantTotal
	}
	return round2(total)
}

// View is the API representation of an invoice.
type View struct {
	*Invoice
	EstPayee    bool    `json:"est_payee"`
	EstEnRetard bool    `json:"est_en_retard"`
	Items       []*Item `json:"items,omitempty"`
}

func newView(inv *Invoice, items []*Item, today civil.Date) *View {
	return &View{
		Invoice:     inv,
		EstPayee:    inv.IsPaid(),
		EstEnRetard: inv.IsOverdue(today),
		Items:       items,
	}
}

// Coverage holds the insurance fields shared by every way of creating an
// invoice.
type Coverage struct {
	AssuranceID            *uuid.UUID `json:"assurance_id"`
	NumeroDossierAssurance *string    `json:"numero_dossier_assurance"`
	TauxPriseEnCharge      *float64   `json:"taux_prise_en_charge"`
	MontantPriseEnCharge   *float64   `json:"montant_prise_en_charge"`
}

// CreateRequest is the POST /invoices payload. Every amount and date not
// given is derived: montant_ht from the items, montant_ttc from the VAT
// rate, the due date from the issue date.
type CreateRequest struct {
	Coverage
	NumeroFacture   *string     `json:"numero_facture"`
	PatientID       uuid.UUID   `json:"patient_id"`
	DateEmission    *civil.Date `json:"date_emission"`
	DateEcheance    *civil.Date `json:"date_echeance"`
	MontantHT       *float64    `json:"montant_ht"`
	TauxTVA         *float64    `json:"taux_tva"`
	MontantTTC      *float64    `json:"montant_ttc"`
	PeriodeDebut    *civil.Date `json:"periode_debut"`
	PeriodeFin      *civil.Date `json:"periode_fin"`
	Statut          *string     `json:"statut"`
	DocumentFacture *string     `json:"document_facture"`
	Notes           *string     `json:"notes"`
	Items           []ItemInput `json:"items"`
}

// Patch updates an invoice. Items, when present, replaces every line.
type Patch struct {
	Coverage
	PatientID         *uuid.UUID   `json:"patient_id"`
	DateEmission      *civil.Date  `json:"date_emission"`
	DateEcheance      *civil.Date  `json:"date_echeance"`
	MontantHT         *float64     `json:"montant_ht"`
	TauxTVA           *float64     `json:"taux_tva"`
	MontantTTC        *float64     `json:"montant_ttc"`
	PeriodeDebut      *civil.Date  `json:"periode_debut"`
	PeriodeFin        *civil.Date  `json:"periode_fin"`
	Statut            *string      `json:"statut"`
	DatePaiement      *civil.Date  `json:"date_paiement"`
	MethodePaiement   *string      `json:"methode_paiement"`
	ReferencePaiement *string      `json:"reference_paiement"`
	DocumentFacture   *string      `json:"document_facture"`
	Notes             *string      `json:"notes"`
	Items             *[]ItemInput `json:"items"`
}

func (p *Patch) apply(inv *Invoice) {
	if p.PatientID != nil {
		inv.PatientID = *p.PatientID
	}
	if p.DateEmission != nil {
		inv.DateEmission = *p.DateEmission
	}
	if p.DateEcheance != nil {
		inv.DateEcheance = *p.DateEcheance
	}
	if p.MontantHT != nil {
		inv.MontantHT = *p.MontantHT
	}
	if p.TauxTVA != nil {
		inv.TauxTVA = *p.TauxTVA
	}
	if p.MontantTTC != nil {
		inv.MontantTTC = *p.MontantTTC
	}
	if p.PeriodeDebut != nil {
		inv.PeriodeDebut = *p.PeriodeDebut
	}
	if p.PeriodeFin != nil {
		inv.PeriodeFin = *p.PeriodeFin
	}
	if p.Statut != nil {
		inv.Statut = *p.Statut
	}
	if p.DatePaiement != nil {
		inv.DatePaiement = p.DatePaiement
	}
	if p.MethodePaiement != nil {
		inv.MethodePaiement = p.MethodePaiement
	}
	if p.ReferencePaiement != nil {
		inv.ReferencePaiement = p.ReferencePaiement
	}
	if p.DocumentFacture != nil {
		inv.DocumentFacture = p.DocumentFacture
	}
	if p.Notes != nil {
		inv.Notes = p.Notes
	}
	if p.AssuranceID != nil {
		inv.AssuranceID = p.AssuranceID
	}
	if p.NumeroDossierAssurance != nil {
		inv.NumeroDossierAssurance = p.NumeroDossierAssurance
	}
	if p.TauxPriseEnCharge != nil {
		inv.TauxPriseEnCharge = *p.TauxPriseEnCharge
	}
}

type PaymentRequest struct {
	DatePaiement      *civil.Date `json:"date_paiement"`
	MethodePaiement   *string     `json:"methode_paiement"`
	ReferencePaiement *string     `json:"reference_paiement"`
}

// GenerateOptions are the caller overrides accepted when an invoice is
// derived from interventions or a rental.
type GenerateOptions struct {
	Coverage
	TauxTVA *float64 `json:"taux_tva"`
	Notes   *string  `json:"notes"`
}

type FromInterventionsRequest struct {
	GenerateOptions
	PatientID       uuid.UUID   `json:"patient_id"`
	InterventionIDs []uuid.UUID `json:"intervention_ids"`
}

type Filter struct {
	PatientID *uuid.UUID
	Statut    *string
	// From and To bound date_emission, both days included.
	From *civil.Date
	To   *civil.Date
}
