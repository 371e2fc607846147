package patient

import (
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// Patient is a person receiving equipment or care at home.
type Patient struct {
	ID                      uuid.UUID  `json:"id"`
	Nom                     string     `json:"nom"`
	Prenom                  string     `json:"prenom"`
	DateNaissance           civil.Date `json:"date_naissance"`
	Sexe                    string     `json:"sexe"`
	Adresse                 string     `json:"adresse"`
	Ville                   string     `json:"ville"`
	CodePostal              string     `json:"code_postal"`
	Telephone               string     `json:"telephone"`
	Email                   *string    `json:"email"`
	NumeroSecuriteSociale   *string    `json:"numero_securite_sociale"`
	GroupeSanguin           *string    `json:"groupe_sanguin"`
	Allergies               *string    `json:"allergies"`
	Antecedents             *string    `json:"antecedents"`
	MedecinTraitant         *string    `json:"medecin_traitant"`
	MedecinTelephone        *string    `json:"medecin_telephone"`
	ContactUrgenceNom       *string    `json:"contact_urgence_nom"`
	ContactUrgenceTelephone *string    `json:"contact_urgence_telephone"`
	ContactUrgenceRelation  *string    `json:"contact_urgence_relation"`
	Poids                   *float64   `json:"poids"`
	Taille                  *float64   `json:"taille"`
	TensionArterielle       *string    `json:"tension_arterielle"`
	NiveauOxygene           *float64   `json:"niveau_oxygene"`
	Actif                   bool       `json:"actif"`
	CreatedAt               time.Time  `json:"date_creation"`
	UpdatedAt               time.Time  `json:"date_modification"`
}

// FullName is "Prenom Nom".
func (p *Patient) FullName() string {
	return p.Prenom + " " + p.Nom
}

// Validate checks the mandatory identity and contact fields.
func (p *Patient) Validate() error {
	v := apperr.Violations{}
	v.Require("nom", p.Nom)
	v.Require("prenom", p.Prenom)
	if p.DateNaissance.IsZero() {
		v.Add("date_naissance", "is required")
	} else if p.DateNaissance.After(civil.Today()) {
		v.Add("date_naissance", "must not be in the future")
	}
	v.Require("sexe", p.Sexe)
	v.Require("adresse", p.Adresse)
	v.Require("ville", p.Ville)
	v.Require("code_postal", p.CodePostal)
	v.Require("telephone", p.Telephone)
	if p.Email != nil && *p.Email != "" {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			v.Add("email", "invalid format")
		}
	}
	checkPositive(v, "poids", p.Poids)
	checkPositive(v, "taille", p.Taille)
	if p.NiveauOxygene != nil && (*p.NiveauOxygene < 0 || *p.NiveauOxygene > 100) {
		v.Add("niveau_oxygene", "must be between 0 and 100")
	}
	return v.Err()
}

func checkPositive(v apperr.Violations, field string, value *float64) {
	if value != nil && *value < 0 {
		v.Add(field, "must not be negative")
	}
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Nom                     *string     `json:"nom"`
	Prenom                  *string     `json:"prenom"`
	DateNaissance           *civil.Date `json:"date_naissance"`
	Sexe                    *string     `json:"sexe"`
	Adresse                 *string     `json:"adresse"`
	Ville                   *string     `json:"ville"`
	CodePostal              *string     `json:"code_postal"`
	Telephone               *string     `json:"telephone"`
	Email                   *string     `json:"email"`
	NumeroSecuriteSociale   *string     `json:"numero_securite_sociale"`
	GroupeSanguin           *string     `json:"groupe_sanguin"`
	Allergies               *string     `json:"allergies"`
	Antecedents             *string     `json:"antecedents"`
	MedecinTraitant         *string     `json:"medecin_traitant"`
	MedecinTelephone        *string     `json:"medecin_telephone"`
	ContactUrgenceNom       *string     `json:"contact_urgence_nom"`
	ContactUrgenceTelephone *string     `json:"contact_urgence_telephone"`
	ContactUrgenceRelation  *string     `json:"contact_urgence_relation"`
	Poids                   *float64    `json:"poids"`
	Taille                  *float64    `json:"taille"`
	TensionArterielle       *string     `json:"tension_arterielle"`
	NiveauOxygene           *float64    `json:"niveau_oxygene"`
	Actif                   *bool       `json:"actif"`
}

// Apply copies the set fields of the patch onto p.
func (pt *Patch) Apply(p *Patient) {
	setString(&p.Nom, pt.Nom)
	setString(&p.Prenom, pt.Prenom)
	if pt.DateNaissance != nil {
		p.DateNaissance = *pt.DateNaissance
	}
	setString(&p.Sexe, pt.Sexe)
	setString(&p.Adresse, pt.Adresse)
	setString(&p.Ville, pt.Ville)
	setString(&p.CodePostal, pt.CodePostal)
	setString(&p.Telephone, pt.Telephone)
	setOptional(&p.Email, pt.Email)
	setOptional(&p.NumeroSecuriteSociale, pt.NumeroSecuriteSociale)
	setOptional(&p.GroupeSanguin, pt.GroupeSanguin)
	setOptional(&p.Allergies, pt.Allergies)
	setOptional(&p.Antecedents, pt.Antecedents)
	setOptional(&p.MedecinTraitant, pt.MedecinTraitant)
	setOptional(&p.MedecinTelephone, pt.MedecinTelephone)
	setOptional(&p.ContactUrgenceNom, pt.ContactUrgenceNom)
	setOptional(&p.ContactUrgenceTelephone, pt.ContactUrgenceTelephone)
	setOptional(&p.ContactUrgenceRelation, pt.ContactUrgenceRelation)
	if pt.Poids != nil {
		p.Poids = pt.Poids
	}
	if pt.Taille != nil {
		p.Taille = pt.Taille
	}
	setOptional(&p.TensionArterielle, pt.TensionArterielle)
	if pt.NiveauOxygene != nil {
		p.NiveauOxygene = pt.NiveauOxygene
	}
	if pt.Actif != nil {
		p.Actif = *pt.Actif
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// setOptional stores src, mapping an empty string to NULL.
func setOptional(dst **string, src *string) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = nil
		return
	}
	v := *src
	*dst = &v
}

// Filter narrows List. Nil fields are not applied.
type Filter struct {
	Nom    *string
	Prenom *string
	Actif  *bool
	// Query matches nom, prenom, numero_securite_sociale, telephone or email.
	Query *string
}

// Ref is the compact patient summary embedded in other resources.
type Ref struct {
	ID     uuid.UUID `json:"id"`
	Nom    string    `json:"nom"`
	Prenom string    `json:"prenom"`
}

func (p *Patient) Ref() *Ref {
	return &Ref{ID: p.ID, Nom: p.Nom, Prenom: p.Prenom}
}
