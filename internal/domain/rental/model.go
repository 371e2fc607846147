package rental

import (
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

const (
	BillingDaily   = "journalier"
	BillingMonthly = "mensuel"
	BillingFlat    = "forfaitaire"
)

func ValidBillingMode(m string) bool {
	return m == BillingDaily || m == BillingMonthly || m == BillingFlat
}

// Rental is a loan of one equipment unit to a patient. DateFin stays nil
// while the rental is open.
type Rental struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	EquipmentID     uuid.UUID   `json:"equipment_id"`
	DateDebut       civil.Date  `json:"date_debut"`
	DateFin         *civil.Date `json:"date_fin"`
	TarifJournalier float64     `json:"tarif_journalier"`
	Caution         *float64    `json:"caution"`
	CautionVersee   bool        `json:"caution_versee"`
	EtatDepart      *string     `json:"etat_depart"`
	NotesDepart     *string     `json:"notes_depart"`
	EtatRetour      *string     `json:"etat_retour"`
	NotesRetour     *string     `json:"notes_retour"`
	ModeFacturation string      `json:"mode_facturation"`
	FactureID       *uuid.UUID  `json:"facture_id"`
	Actif           bool        `json:"actif"`
	CreatedAt       time.Time   `json:"date_creation"`
	UpdatedAt       time.Time   `json:"date_modification"`
}

func (r *Rental) Validate() error {
	v := apperr.Violations{}
	if r.PatientID == uuid.Nil {
		v.Add("patient_id", "is required")
	}
	if r.EquipmentID == uuid.Nil {
		v.Add("equipment_id", "is required")
	}
	if r.DateDebut.IsZero() {
		v.Add("date_debut", "is required")
	}
	if r.DateFin != nil && r.DateFin.Before(r.DateDebut) {
		v.Add("date_fin", "must not be before date_debut")
	}
	if r.TarifJournalier < 0 {
		v.Add("tarif_journalier", "must not be negative")
	}
	if r.Caution != nil && *r.Caution < 0 {
		v.Add("caution", "must not be negative")
	}
	if !ValidBillingMode(r.ModeFacturation) {
		v.Add("mode_facturation", "must be one of journalier, mensuel, forfaitaire")
	}
	return v.Err()
}

// IsOpen reports whether the equipment is still out.
func (r *Rental) IsOpen() bool {
	return r.DateFin == nil
}

// Days is the number of rented days up to the end date, or up to asOf for
// an open rental. A rental returned the day it started counts one day.
func (r *Rental) Days(asOf civil.Date) int {
	end := asOf
	if r.DateFin != nil {
		end = *r.DateFin
	}
	days := int(end.Sub(r.DateDebut.Time).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// View is a rental with its patient and equipment summaries.
type View struct {
	*Rental
	Patient   *patient.Ref   `json:"patient"`
	Equipment *equipment.Ref `json:"equipment"`
}

// NewRental is the create payload. Billing defaults to journalier.
type NewRental struct {
	PatientID       uuid.UUID   `json:"patient_id"`
	EquipmentID     uuid.UUID   `json:"equipment_id"`
	DateDebut       *civil.Date `json:"date_debut"`
	TarifJournalier float64     `json:"tarif_journalier"`
	Caution         *float64    `json:"caution"`
	CautionVersee   bool        `json:"caution_versee"`
	EtatDepart      *string     `json:"etat_depart"`
	NotesDepart     *string     `json:"notes_depart"`
	ModeFacturation string      `json:"mode_facturation"`
}

func (n NewRental) rental(today civil.Date) *Rental {
	r := &Rental{
		PatientID:       n.PatientID,
		EquipmentID:     n.EquipmentID,
		DateDebut:       today,
		TarifJournalier: n.TarifJournalier,
		Caution:         n.Caution,
		CautionVersee:   n.CautionVersee,
		EtatDepart:      n.EtatDepart,
		NotesDepart:     n.NotesDepart,
		ModeFacturation: n.ModeFacturation,
		Actif:           true,
	}
	if n.DateDebut != nil {
		r.DateDebut = *n.DateDebut
	}
	if r.ModeFacturation == "" {
		r.ModeFacturation = BillingDaily
	}
	return r
}

// Patch edits the terms of a rental. Ending a rental goes through
// Terminate so the equipment is returned to stock.
type Patch struct {
	DateDebut       *civil.Date `json:"date_debut"`
	TarifJournalier *float64    `json:"tarif_journalier"`
	Caution         *float64    `json:"caution"`
	CautionVersee   *bool       `json:"caution_versee"`
	EtatDepart      *string     `json:"etat_depart"`
	NotesDepart     *string     `json:"notes_depart"`
	EtatRetour      *string     `json:"etat_retour"`
	NotesRetour     *string     `json:"notes_retour"`
	ModeFacturation *string     `json:"mode_facturation"`
}

func (p *Patch) Apply(r *Rental) {
	if p.DateDebut != nil {
		r.DateDebut = *p.DateDebut
	}
	if p.TarifJournalier != nil {
		r.TarifJournalier = *p.TarifJournalier
	}
	if p.Caution != nil {
		r.Caution = p.Caution
	}
	if p.CautionVersee != nil {
		r.CautionVersee = *p.CautionVersee
	}
	if p.EtatDepart != nil {
		r.EtatDepart = p.EtatDepart
	}
	if p.NotesDepart != nil {
		r.NotesDepart = p.NotesDepart
	}
	if p.EtatRetour != nil {
		r.EtatRetour = p.EtatRetour
	}
	if p.NotesRetour != nil {
		r.NotesRetour = p.NotesRetour
	}
	if p.ModeFacturation != nil {
		r.ModeFacturation = *p.ModeFacturation
	}
}

type TerminateRequest struct {
	DateFin     *civil.Date `json:"date_fin"`
	EtatRetour  *string     `json:"etat_retour"`
	NotesRetour *string     `json:"notes_retour"`
}

type Filter struct {
	PatientID   *uuid.UUID
	EquipmentID *uuid.UUID
	Actif       *bool
	// Open keeps rentals without date_fin.
	Open bool
}
