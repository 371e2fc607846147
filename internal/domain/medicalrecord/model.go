package medicalrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// Record is a diagnosis and the treatment prescribed for it.
type Record struct {
	ID                       uuid.UUID                           `json:"id"`
	PatientID                uuid.UUID                           `json:"patient_id"`
	DateDiagnostic           civil.Date                          `json:"date_diagnostic"`
	MedecinPrescripteur      string                              `json:"medecin_prescripteur"`
	Diagnostic               string                              `json:"diagnostic"`
	TraitementType           string                              `json:"traitement_type"`
	TraitementDetails        string                              `json:"traitement_details"`
	DureeTraitement          *int                                `json:"duree_traitement"`
	DateDebutTraitement      civil.Date                          `json:"date_debut_traitement"`
	DateFinTraitement        *civil.Date                         `json:"date_fin_traitement"`
	ParametresTherapeutiques map[string]interface{}              `json:"parametres_therapeutiques"`
	NumeroOrdonnance         *string                             `json:"numero_ordonnance"`
	DocumentOrdonnance       *string                             `json:"document_ordonnance"`
	FrequenceSuivi           *string                             `json:"frequence_suivi"`
	NotesSuivi               *string                             `json:"notes_suivi"`
	ResultatsExamens         map[string][]map[string]interface{} `json:"resultats_examens"`
	DocumentsExamens         []Document                          `json:"documents_examens"`
	Actif                    bool                                `json:"actif"`
	CreatedAt                time.Time                           `json:"date_creation"`
	UpdatedAt                time.Time                           `json:"date_modification"`

	Patient *patient.Ref `json:"patient,omitempty"`
}

// Document is an exam document attached to a record.
type Document struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	DateAjout string `json:"date_ajout"`
}

func (r *Record) Validate() error {
	v := apperr.Violations{}
	if r.PatientID == uuid.Nil {
		v.Add("patient_id", "is required")
	}
	if r.DateDiagnostic.IsZero() {
		v.Add("date_diagnostic", "is required")
	}
	v.Require("medecin_prescripteur", r.MedecinPrescripteur)
	v.Require("diagnostic", r.Diagnostic)
	v.Require("traitement_type", r.TraitementType)
	v.Require("traitement_details", r.TraitementDetails)
	if r.DateDebutTraitement.IsZero() {
		v.Add("date_debut_traitement", "is required")
	}
	if r.DateFinTraitement != nil && r.DateFinTraitement.Before(r.DateDebutTraitement) {
		v.Add("date_fin_traitement", "must not be before date_debut_traitement")
	}
	if r.DureeTraitement != nil && *r.DureeTraitement < 0 {
		v.Add("duree_traitement", "must not be negative")
	}
	return v.Err()
}

// Patch updates the clinical content of a record. Exam results and
// documents are appended through their own endpoints.
type Patch struct {
	DateDiagnostic           *civil.Date             `json:"date_diagnostic"`
	MedecinPrescripteur      *string                 `json:"medecin_prescripteur"`
	Diagnostic               *string                 `json:"diagnostic"`
	TraitementType           *string                 `json:"traitement_type"`
	TraitementDetails        *string                 `json:"traitement_details"`
	DureeTraitement          *int                    `json:"duree_traitement"`
	DateDebutTraitement      *civil.Date             `json:"date_debut_traitement"`
	DateFinTraitement        *civil.Date             `json:"date_fin_traitement"`
	ParametresTherapeutiques *map[string]interface{} `json:"parametres_therapeutiques"`
	NumeroOrdonnance         *string                 `json:"numero_ordonnance"`
	DocumentOrdonnance       *string                 `json:"document_ordonnance"`
	FrequenceSuivi           *string                 `json:"frequence_suivi"`
	NotesSuivi               *string                 `json:"notes_suivi"`
	Actif                    *bool                   `json:"actif"`
}

func (p *Patch) Apply(r *Record) {
	if p.DateDiagnostic != nil {
		r.DateDiagnostic = *p.DateDiagnostic
	}
	if p.MedecinPrescripteur != nil {
		r.MedecinPrescripteur = *p.MedecinPrescripteur
	}
	if p.Diagnostic != nil {
		r.Diagnostic = *p.Diagnostic
	}
	if p.TraitementType != nil {
		r.TraitementType = *p.TraitementType
	}
	if p.TraitementDetails != nil {
		r.TraitementDetails = *p.TraitementDetails
	}
	if p.DureeTraitement != nil {
		r.DureeTraitement = p.DureeTraitement
	}
	if p.DateDebutTraitement != nil {
		r.DateDebutTraitement = *p.DateDebutTraitement
	}
	if p.DateFinTraitement != nil {
		r.DateFinTraitement = p.DateFinTraitement
	}
	if p.ParametresTherapeutiques != nil {
		r.ParametresTherapeutiques = *p.ParametresTherapeutiques
	}
	if p.NumeroOrdonnance != nil {
		r.NumeroOrdonnance = p.NumeroOrdonnance
	}
	if p.DocumentOrdonnance != nil {
		r.DocumentOrdonnance = p.DocumentOrdonnance
	}
	if p.FrequenceSuivi != nil {
		r.FrequenceSuivi = p.FrequenceSuivi
	}
	if p.NotesSuivi != nil {
		r.NotesSuivi = p.NotesSuivi
	}
	if p.Actif != nil {
		r.Actif = *p.Actif
	}
}

type Filter struct {
	PatientID *uuid.UUID
	Actif     *bool
}

// ExamInput is the payload of POST /medical-records/:id/exams. Results are
// grouped by exam date, which defaults to today.
type ExamInput struct {
	Date   *civil.Date            `json:"date"`
	Result map[string]interface{} `json:"resultat"`
}

func (in *ExamInput) Validate() error {
	if len(in.Result) == 0 {
		return apperr.Invalid("resultat", "is required")
	}
	return nil
}

type DocumentInput struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

func (in *DocumentInput) Validate() error {
	v := apperr.Violations{}
	v.Require("path", in.Path)
	v.Require("type", in.Type)
	return v.Err()
}
