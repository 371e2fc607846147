package intervention

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/identity"
	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

const (
	StatusPlanned    = "planifiée"
	StatusInProgress = "en cours"
	StatusDone       = "terminée"
	StatusCancelled  = "annulée"
)

// TypeMaintenance interventions reschedule the linked equipment's
// maintenance when completed.
const TypeMaintenance = "maintenance"

var transitions = map[string][]string{
	StatusPlanned:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusCancelled},
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an intervention may move from one status to
// another. Terminée and annulée are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Intervention is a technician visit. Signatures are raw image bytes and
// travel as base64 in JSON.
type Intervention struct {
	ID                  uuid.UUID  `json:"id"`
	TypeIntervention    string     `json:"type_intervention"`
	Statut              string     `json:"statut"`
	DatePlanifiee       time.Time  `json:"date_planifiee"`
	DureeEstimee        *int       `json:"duree_estimee"`
	DateDebut           *time.Time `json:"date_debut"`
	DateFin             *time.Time `json:"date_fin"`
	PatientID           uuid.UUID  `json:"patient_id"`
	EquipementID        *uuid.UUID `json:"equipement_id"`
	TechnicienID        *uuid.UUID `json:"technicien_id"`
	Description         string     `json:"description"`
	ActionsEffectuees   *string    `json:"actions_effectuees"`
	PiecesRemplacees    *string    `json:"pieces_remplacees"`
	Resultat            *string    `json:"resultat"`
	SignaturePatient    []byte     `json:"signature_patient"`
	SignatureTechnicien []byte     `json:"signature_technicien"`
	Facturable          bool       `json:"facturable"`
	Montant             *float64   `json:"montant"`
	FactureID           *uuid.UUID `json:"facture_id"`
	CreatedAt           time.Time  `json:"date_creation"`
	UpdatedAt           time.Time  `json:"date_modification"`
}

func (in *Intervention) Validate() error {
	v := apperr.Violations{}
	v.Require("type_intervention", in.TypeIntervention)
	v.Require("description", in.Description)
	if !ValidStatus(in.Statut) {
		v.Add("statut", "must be one of planifiée, en cours, terminée, annulée")
	}
	if in.DatePlanifiee.IsZero() {
		v.Add("date_planifiee", "is required")
	}
	if in.PatientID == uuid.Nil {
		v.Add("patient_id", "is required")
	}
	if in.DureeEstimee != nil && *in.DureeEstimee < 0 {
		v.Add("duree_estimee", "must not be negative")
	}
	if in.Montant != nil && *in.Montant < 0 {
		v.Add("montant", "must not be negative")
	}
	if in.DateDebut != nil && in.DateFin != nil && in.DateFin.Before(*in.DateDebut) {
		v.Add("date_fin", "must not be before date_debut")
	}
	return v.Err()
}

// Amount is the billed amount, zero when unset.
func (in *Intervention) Amount() float64 {
	if in.Montant == nil {
		return 0
	}
	return *in.Montant
}

// PeriodEnd is the end date when known, else the scheduled date.
func (in *Intervention) PeriodEnd() time.Time {
	if in.DateFin != nil {
		return *in.DateFin
	}
	return in.DatePlanifiee
}

// ServiceLine is a catalog service rendered during an intervention.
type ServiceLine struct {
	ID             uuid.UUID   `json:"id"`
	InterventionID uuid.UUID   `json:"intervention_id"`
	ServiceID      uuid.UUID   `json:"service_id"`
	Quantite       float64     `json:"quantite"`
	DureeReelle    *int        `json:"duree_reelle"`
	Notes          *string     `json:"notes"`
	PrixApplique   *float64    `json:"prix_applique"`
	Facturable     bool        `json:"facturable"`
	Service        *ServiceRef `json:"service,omitempty"`
}

// ServiceRef is the catalog summary joined onto a service line.
type ServiceRef struct {
	ID           uuid.UUID `json:"id"`
	Nom          string    `json:"nom"`
	PrixUnitaire float64   `json:"prix_unitaire"`
	Unite        *string   `json:"unite"`
}

// UnitPrice is the applied price, falling back to the catalog price.
func (l *ServiceLine) UnitPrice() float64 {
	if l.PrixApplique != nil {
		return *l.PrixApplique
	}
	if l.Service != nil {
		return l.Service.PrixUnitaire
	}
	return 0
}

// ServiceInput is one element of the services array on create and update.
type ServiceInput struct {
	ServiceID    uuid.UUID `json:"service_id"`
	Quantite     *float64  `json:"quantite"`
	DureeReelle  *int      `json:"duree_reelle"`
	Notes        *string   `json:"notes"`
	PrixApplique *float64  `json:"prix_applique"`
	Facturable   *bool     `json:"facturable"`
}

func (si ServiceInput) line(interventionID uuid.UUID) *ServiceLine {
	l := &ServiceLine{
		InterventionID: interventionID,
		ServiceID:      si.ServiceID,
		Quantite:       1,
		DureeReelle:    si.DureeReelle,
		Notes:          si.Notes,
		PrixApplique:   si.PrixApplique,
		Facturable:     true,
	}
	if si.Quantite != nil {
		l.Quantite = *si.Quantite
	}
	if si.Facturable != nil {
		l.Facturable = *si.Facturable
	}
	return l
}

func validateServices(in []ServiceInput) error {
	v := apperr.Violations{}
	for i, si := range in {
		field := "services[" + strconv.Itoa(i) + "]"
		if si.ServiceID == uuid.Nil {
			v.Add(field+".service_id", "is required")
		}
		if si.Quantite != nil && *si.Quantite <= 0 {
			v.Add(field+".quantite", "must be positive")
		}
		if si.PrixApplique != nil && *si.PrixApplique < 0 {
			v.Add(field+".prix_applique", "must not be negative")
		}
	}
	return v.Err()
}

// View is the intervention as returned by the API, with compact summaries
// of the linked patient, equipment and technician.
type View struct {
	*Intervention
	Patient    *patient.Ref   `json:"patient"`
	Equipement *equipment.Ref `json:"equipement,omitempty"`
	Technicien *identity.Ref  `json:"technicien,omitempty"`
	Services   []*ServiceLine `json:"services"`
}

// CreateRequest is the POST /interventions payload. New interventions start
// planifiée; the other statuses are reached through start, complete and
// cancel.
type CreateRequest struct {
	TypeIntervention string         `json:"type_intervention"`
	Statut           *string        `json:"statut"`
	DatePlanifiee    time.Time      `json:"date_planifiee"`
	DureeEstimee     *int           `json:"duree_estimee"`
	PatientID        uuid.UUID      `json:"patient_id"`
	EquipementID     *uuid.UUID     `json:"equipement_id"`
	TechnicienID     *uuid.UUID     `json:"technicien_id"`
	Description      string         `json:"description"`
	Facturable       *bool          `json:"facturable"`
	Montant          *float64       `json:"montant"`
	Services         []ServiceInput `json:"services"`
}

func (r CreateRequest) intervention() (*Intervention, error) {
	if r.Statut != nil && *r.Statut != StatusPlanned {
		return nil, apperr.Invalid("statut", "a new intervention must be planifiée")
	}
	in := &Intervention{
		TypeIntervention: r.TypeIntervention,
		Statut:           StatusPlanned,
		DatePlanifiee:    r.DatePlanifiee,
		DureeEstimee:     r.DureeEstimee,
		PatientID:        r.PatientID,
		EquipementID:     r.EquipementID,
		TechnicienID:     r.TechnicienID,
		Description:      r.Description,
		Facturable:       true,
		Montant:          r.Montant,
	}
	if r.Facturable != nil {
		in.Facturable = *r.Facturable
	}
	return in, nil
}

// Patch updates an intervention. Services, when present (even empty),
// replaces every service line.
type Patch struct {
	TypeIntervention    *string         `json:"type_intervention"`
	Statut              *string         `json:"statut"`
	DatePlanifiee       *time.Time      `json:"date_planifiee"`
	DureeEstimee        *int            `json:"duree_estimee"`
	DateDebut           *time.Time      `json:"date_debut"`
	DateFin             *time.Time      `json:"date_fin"`
	EquipementID        *uuid.UUID      `json:"equipement_id"`
	TechnicienID        *uuid.UUID      `json:"technicien_id"`
	Description         *string         `json:"description"`
	ActionsEffectuees   *string         `json:"actions_effectuees"`
	PiecesRemplacees    *string         `json:"pieces_remplacees"`
	Resultat            *string         `json:"resultat"`
	SignaturePatient    []byte          `json:"signature_patient"`
	SignatureTechnicien []byte          `json:"signature_technicien"`
	Facturable          *bool           `json:"facturable"`
	Montant             *float64        `json:"montant"`
	Services            *[]ServiceInput `json:"services"`
}

func (p *Patch) Apply(in *Intervention) {
	if p.TypeIntervention != nil {
		in.TypeIntervention = *p.TypeIntervention
	}
	if p.Statut != nil {
		in.Statut = *p.Statut
	}
	if p.DatePlanifiee != nil {
		in.DatePlanifiee = *p.DatePlanifiee
	}
	if p.DureeEstimee != nil {
		in.DureeEstimee = p.DureeEstimee
	}
	if p.DateDebut != nil {
		in.DateDebut = p.DateDebut
	}
	if p.DateFin != nil {
		in.DateFin = p.DateFin
	}
	if p.EquipementID != nil {
		in.EquipementID = p.EquipementID
	}
	if p.TechnicienID != nil {
		in.TechnicienID = p.TechnicienID
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.ActionsEffectuees != nil {
		in.ActionsEffectuees = p.ActionsEffectuees
	}
	if p.PiecesRemplacees != nil {
		in.PiecesRemplacees = p.PiecesRemplacees
	}
	if p.Resultat != nil {
		in.Resultat = p.Resultat
	}
	if p.SignaturePatient != nil {
		in.SignaturePatient = p.SignaturePatient
	}
	if p.SignatureTechnicien != nil {
		in.SignatureTechnicien = p.SignatureTechnicien
	}
	if p.Facturable != nil {
		in.Facturable = *p.Facturable
	}
	if p.Montant != nil {
		in.Montant = p.Montant
	}
}

// CompleteRequest carries the outcome of a finished visit.
type CompleteRequest struct {
	DateFin             *time.Time `json:"date_fin"`
	ActionsEffectuees   *string    `json:"actions_effectuees"`
	PiecesRemplacees    *string    `json:"pieces_remplacees"`
	Resultat            *string    `json:"resultat"`
	SignaturePatient    []byte     `json:"signature_patient"`
	SignatureTechnicien []byte     `json:"signature_technicien"`
	Montant             *float64   `json:"montant"`
}

// Filter narrows GET /interventions. From and To apply only together and
// bound date_planifiee by calendar day, both ends included.
type Filter struct {
	Type         *string
	Statut       *string
	PatientID    *uuid.UUID
	EquipementID *uuid.UUID
	TechnicienID *uuid.UUID
	From         *civil.Date
	To           *civil.Date
}
