package insurance

import (
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// Insurance is a payer: public scheme, private insurer or mutuelle.
type Insurance struct {
	ID               uuid.UUID `json:"id"`
	Nom              string    `json:"nom"`
	Type             *string   `json:"type"`
	Adresse          *string   `json:"adresse"`
	Ville            *string   `json:"ville"`
	CodePostal       *string   `json:"code_postal"`
	Telephone        *string   `json:"telephone"`
	Email            *string   `json:"email"`
	SiteWeb          *string   `json:"site_web"`
	ContactNom       *string   `json:"contact_nom"`
	ContactTelephone *string   `json:"contact_telephone"`
	ContactEmail     *string   `json:"contact_email"`
	DelaiPaiement    int       `json:"delai_paiement"`
	Actif            bool      `json:"actif"`
	Notes            *string   `json:"notes"`
	CreatedAt        time.Time `json:"date_creation"`
	UpdatedAt        time.Time `json:"date_modification"`
}

const defaultPaymentDelay = 30

func (i *Insurance) Validate() error {
	v := apperr.Violations{}
	v.Require("nom", i.Nom)
	if i.DelaiPaiement < 0 {
		v.Add("delai_paiement", "must not be negative")
	}
	return v.Err()
}

type InsurancePatch struct {
	Nom              *string `json:"nom"`
	Type             *string `json:"type"`
	Adresse          *string `json:"adresse"`
	Ville            *string `json:"ville"`
	CodePostal       *string `json:"code_postal"`
	Telephone        *string `json:"telephone"`
	Email            *string `json:"email"`
	SiteWeb          *string `json:"site_web"`
	ContactNom       *string `json:"contact_nom"`
	ContactTelephone *string `json:"contact_telephone"`
	ContactEmail     *string `json:"contact_email"`
	DelaiPaiement    *int    `json:"delai_paiement"`
	Actif            *bool   `json:"actif"`
	Notes            *string `json:"notes"`
}

func (p *InsurancePatch) Apply(i *Insurance) {
	if p.Nom != nil {
		i.Nom = *p.Nom
	}
	setOpt(&i.Type, p.Type)
	setOpt(&i.Adresse, p.Adresse)
	setOpt(&i.Ville, p.Ville)
	setOpt(&i.CodePostal, p.CodePostal)
	setOpt(&i.Telephone, p.Telephone)
	setOpt(&i.Email, p.Email)
	setOpt(&i.SiteWeb, p.SiteWeb)
	setOpt(&i.ContactNom, p.ContactNom)
	setOpt(&i.ContactTelephone, p.ContactTelephone)
	setOpt(&i.ContactEmail, p.ContactEmail)
	setOpt(&i.Notes, p.Notes)
	if p.DelaiPaiement != nil {
		i.DelaiPaiement = *p.DelaiPaiement
	}
	if p.Actif != nil {
		i.Actif = *p.Actif
	}
}

func setOpt(dst **string, src *string) {
	if src != nil {
		*dst = src
	}
}

type InsuranceFilter struct {
	Type  *string
	Actif *bool
}

// Coverage links a patient to an insurer for a period.
type Coverage struct {
	ID             uuid.UUID   `json:"id"`
	PatientID      uuid.UUID   `json:"patient_id"`
	AssuranceID    uuid.UUID   `json:"assurance_id"`
	NumeroAdherent string      `json:"numero_adherent"`
	DateDebut      civil.Date  `json:"date_debut"`
	DateFin        *civil.Date `json:"date_fin"`
	TauxCouverture float64     `json:"taux_couverture"`
	PlafondAnnuel  *float64    `json:"plafond_annuel"`
	Actif          bool        `json:"actif"`
	Notes          *string     `json:"notes"`
	CreatedAt      time.Time   `json:"date_creation"`
	UpdatedAt      time.Time   `json:"date_modification"`
}

// CoversOn reports whether the coverage is active on day.
func (c *Coverage) CoversOn(day civil.Date) bool {
	if !c.Actif || day.Before(c.DateDebut) {
		return false
	}
	return c.DateFin == nil || !day.After(*c.DateFin)
}

func (c *Coverage) Validate() error {
	v := apperr.Violations{}
	if c.PatientID == uuid.Nil {
		v.Add("patient_id", "is required")
	}
	if c.AssuranceID == uuid.Nil {
		v.Add("assurance_id", "is required")
	}
	v.Require("numero_adherent", c.NumeroAdherent)
	if c.DateDebut.IsZero() {
		v.Add("date_debut", "is required")
	}
	if c.DateFin != nil && c.DateFin.Before(c.DateDebut) {
		v.Add("date_fin", "must not be before date_debut")
	}
	if c.TauxCouverture < 0 || c.TauxCouverture > 100 {
		v.Add("taux_couverture", "must be between 0 and 100")
	}
	if c.PlafondAnnuel != nil && *c.PlafondAnnuel < 0 {
		v.Add("plafond_annuel", "must not be negative")
	}
	return v.Err()
}

// CoveragePatch updates the terms of a coverage. The patient and insurer of
// a coverage never change.
type CoveragePatch struct {
	NumeroAdherent *string     `json:"numero_adherent"`
	DateDebut      *civil.Date `json:"date_debut"`
	DateFin        *civil.Date `json:"date_fin"`
	TauxCouverture *float64    `json:"taux_couverture"`
	PlafondAnnuel  *float64    `json:"plafond_annuel"`
	Actif          *bool       `json:"actif"`
	Notes          *string     `json:"notes"`
}

func (p *CoveragePatch) Apply(c *Coverage) {
	if p.NumeroAdherent != nil {
		c.NumeroAdherent = *p.NumeroAdherent
	}
	if p.DateDebut != nil {
		c.DateDebut = *p.DateDebut
	}
	if p.DateFin != nil {
		c.DateFin = p.DateFin
	}
	if p.TauxCouverture != nil {
		c.TauxCouverture = *p.TauxCouverture
	}
	if p.PlafondAnnuel != nil {
		c.PlafondAnnuel = p.PlafondAnnuel
	}
	if p.Actif != nil {
		c.Actif = *p.Actif
	}
	if p.Notes != nil {
		c.Notes = p.Notes
	}
}

type CoverageFilter struct {
	PatientID   *uuid.UUID
	AssuranceID *uuid.UUID
	Actif       *bool
}

// CoverageView is a coverage with its insurer summary.
type CoverageView struct {
	*Coverage
	Assurance *InsuranceRef `json:"assurance,omitempty"`
}

type InsuranceRef struct {
	ID   uuid.UUID `json:"id"`
	Nom  string    `json:"nom"`
	Type *string   `json:"type"`
}

func (i *Insurance) Ref() *InsuranceRef {
	return &InsuranceRef{ID: i.ID, Nom: i.Nom, Type: i.Type}
}
