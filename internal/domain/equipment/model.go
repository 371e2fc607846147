package equipment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// Equipment statuses.
const (
	StatusNew         = "neuf"
	StatusInService   = "en service"
	StatusMaintenance = "en maintenance"
	StatusAvailable   = "disponible"
	StatusRented      = "en location"
	StatusRetired     = "réformé"
)

var validStatuses = map[string]bool{
	StatusNew: true, StatusInService: true, StatusMaintenance: true,
	StatusAvailable: true, StatusRented: true, StatusRetired: true,
}

func ValidStatus(s string) bool { return validStatuses[s] }

// Maintenance scheduling windows.
const (
	MaintenanceInterval  = 365
	MaintenanceLookahead = 30
)

// Equipment is a serialized medical device owned by the provider.
type Equipment struct {
	ID                       uuid.UUID              `json:"id"`
	NumeroSerie              string                 `json:"numero_serie"`
	Modele                   string                 `json:"modele"`
	TypeEquipement           string                 `json:"type_equipement"`
	Fabricant                string                 `json:"fabricant"`
	Statut                   string                 `json:"statut"`
	DateAcquisition          civil.Date             `json:"date_acquisition"`
	DateDerniereMaintenance  *civil.Date            `json:"date_derniere_maintenance"`
	DateProchaineMaintenance *civil.Date            `json:"date_prochaine_maintenance"`
	Parametres               map[string]interface{} `json:"parametres"`
	PatientID                *uuid.UUID             `json:"patient_id"`
	DateAttribution          *time.Time             `json:"date_attribution"`
	DateFinAttribution       *time.Time             `json:"date_fin_attribution"`
	Notes                    *string                `json:"notes"`
	CreatedAt                time.Time              `json:"date_creation"`
	UpdatedAt                time.Time              `json:"date_modification"`
}

// IsAssigned reports whether the unit is with a patient at now: a patient is
// linked and the assignment has no end or ends after now.
func (e *Equipment) IsAssigned(now time.Time) bool {
	if e.PatientID == nil {
		return false
	}
	return e.DateFinAttribution == nil || e.DateFinAttribution.After(now)
}

// IsMaintenanceDue applies the maintenance-due rule as of today.
func (e *Equipment) IsMaintenanceDue(today civil.Date) bool {
	if e.Statut == StatusRetired {
		return false
	}
	soon, stale := MaintenanceWindow(today)
	if e.DateProchaineMaintenance != nil && !e.DateProchaineMaintenance.After(soon) {
		return true
	}
	return e.DateDerniereMaintenance != nil && !e.DateDerniereMaintenance.After(stale)
}

// MaintenanceWindow returns the bounds of the maintenance-due rule: a unit
// is due when its next maintenance is on or before soon, or its last one on
// or before stale.
func MaintenanceWindow(today civil.Date) (soon, stale civil.Date) {
	return today.AddDays(MaintenanceLookahead), today.AddDays(-MaintenanceInterval)
}

// MarshalJSON adds the computed est_attribue flag.
func (e Equipment) MarshalJSON() ([]byte, error) {
	type plain Equipment
	return json.Marshal(struct {
		plain
		EstAttribue bool `json:"est_attribue"`
	}{plain(e), e.IsAssigned(time.Now())})
}

func (e *Equipment) Validate() error {
	v := apperr.Violations{}
	v.Require("numero_serie", e.NumeroSerie)
	v.Require("modele", e.Modele)
	v.Require("type_equipement", e.TypeEquipement)
	v.Require("fabricant", e.Fabricant)
	if !validStatuses[e.Statut] {
		v.Add("statut", "must be one of neuf, en service, en maintenance, disponible, en location, réformé")
	}
	if e.DateAcquisition.IsZero() {
		v.Add("date_acquisition", "is required")
	}
	return v.Err()
}

// Patch is a partial update. Assignment fields change through Assign and
// Release only.
// CreateRequest is the POST /equipments payload. Patient links are only made
// through assign.
type CreateRequest struct {
	NumeroSerie              string                 `json:"numero_serie"`
	Modele                   string                 `json:"modele"`
	TypeEquipement           string                 `json:"type_equipement"`
	Fabricant                string                 `json:"fabricant"`
	Statut                   string                 `json:"statut"`
	DateAcquisition          civil.Date             `json:"date_acquisition"`
	DateDerniereMaintenance  *civil.Date            `json:"date_derniere_maintenance"`
	DateProchaineMaintenance *civil.Date            `json:"date_prochaine_maintenance"`
	Parametres               map[string]interface{} `json:"parametres"`
	Notes                    *string                `json:"notes"`
}

func (r CreateRequest) Equipment() *Equipment {
	return &Equipment{
		NumeroSerie:              r.NumeroSerie,
		Modele:                   r.Modele,
		TypeEquipement:           r.TypeEquipement,
		Fabricant:                r.Fabricant,
		Statut:                   r.Statut,
		DateAcquisition:          r.DateAcquisition,
		DateDerniereMaintenance:  r.DateDerniereMaintenance,
		DateProchaineMaintenance: r.DateProchaineMaintenance,
		Parametres:               r.Parametres,
		Notes:                    r.Notes,
	}
}

type Patch struct {
	NumeroSerie              *string                 `json:"numero_serie"`
	Modele                   *string                 `json:"modele"`
	TypeEquipement           *string                 `json:"type_equipement"`
	Fabricant                *string                 `json:"fabricant"`
	Statut                   *string                 `json:"statut"`
	DateAcquisition          *civil.Date             `json:"date_acquisition"`
	DateDerniereMaintenance  *civil.Date             `json:"date_derniere_maintenance"`
	DateProchaineMaintenance *civil.Date             `json:"date_prochaine_maintenance"`
	Parametres               *map[string]interface{} `json:"parametres"`
	Notes                    *string                 `json:"notes"`
}

func (p *Patch) Apply(e *Equipment) {
	if p.NumeroSerie != nil {
		e.NumeroSerie = *p.NumeroSerie
	}
	if p.Modele != nil {
		e.Modele = *p.Modele
	}
	if p.TypeEquipement != nil {
		e.TypeEquipement = *p.TypeEquipement
	}
	if p.Fabricant != nil {
		e.Fabricant = *p.Fabricant
	}
	if p.Statut != nil {
		e.Statut = *p.Statut
	}
	if p.DateAcquisition != nil {
		e.DateAcquisition = *p.DateAcquisition
	}
	if p.DateDerniereMaintenance != nil {
		e.DateDerniereMaintenance = p.DateDerniereMaintenance
	}
	if p.DateProchaineMaintenance != nil {
		e.DateProchaineMaintenance = p.DateProchaineMaintenance
	}
	if p.Parametres != nil {
		e.Parametres = *p.Parametres
	}
	if p.Notes != nil {
		e.Notes = p.Notes
	}
}

type Filter struct {
	Type      *string
	Statut    *string
	PatientID *uuid.UUID
}

type AssignRequest struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	DateAttribution *time.Time `json:"date_attribution"`
}

type ReleaseRequest struct {
	DateFinAttribution *time.Time `json:"date_fin_attribution"`
}

// Ref is the compact equipment summary embedded in other resources.
type Ref struct {
	ID             uuid.UUID `json:"id"`
	NumeroSerie    string    `json:"numero_serie"`
	Modele         string    `json:"modele"`
	TypeEquipement string    `json:"type_equipement"`
}

func (e *Equipment) Ref() *Ref {
	return &Ref{ID: e.ID, NumeroSerie: e.NumeroSerie, Modele: e.Modele, TypeEquipement: e.TypeEquipement}
}
