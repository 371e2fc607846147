package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperr"
)

// Item is a billable service offered by the provider.
type Item struct {
	ID              uuid.UUID `json:"id"`
	Nom             string    `json:"nom"`
	Type            string    `json:"type"`
	Description     *string   `json:"description"`
	PrixUnitaire    float64   `json:"prix_unitaire"`
	Unite           *string   `json:"unite"`
	DureeStandard   *int      `json:"duree_standard"`
	Facturable      bool      `json:"facturable"`
	CodeFacturation *string   `json:"code_facturation"`
	Actif           bool      `json:"actif"`
	CreatedAt       time.Time `json:"date_creation"`
	UpdatedAt       time.Time `json:"date_modification"`
}

func (i *Item) Validate() error {
	v := apperr.Violations{}
	v.Require("nom", i.Nom)
	v.Require("type", i.Type)
	if i.PrixUnitaire < 0 {
		v.Add("prix_unitaire", "must not be negative")
	}
	if i.DureeStandard != nil && *i.DureeStandard < 0 {
		v.Add("duree_standard", "must not be negative")
	}
	return v.Err()
}

// NewItem is the create payload; facturable and actif default to true.
type NewItem struct {
	Nom             string  `json:"nom"`
	Type            string  `json:"type"`
	Description     *string `json:"description"`
	PrixUnitaire    float64 `json:"prix_unitaire"`
	Unite           *string `json:"unite"`
	DureeStandard   *int    `json:"duree_standard"`
	Facturable      *bool   `json:"facturable"`
	CodeFacturation *string `json:"code_facturation"`
	Actif           *bool   `json:"actif"`
}

func (n NewItem) Item() *Item {
	it := &Item{
		Nom:             n.Nom,
		Type:            n.Type,
		Description:     n.Description,
		PrixUnitaire:    n.PrixUnitaire,
		Unite:           n.Unite,
		DureeStandard:   n.DureeStandard,
		Facturable:      true,
		CodeFacturation: n.CodeFacturation,
		Actif:           true,
	}
	if n.Facturable != nil {
		it.Facturable = *n.Facturable
	}
	if n.Actif != nil {
		it.Actif = *n.Actif
	}
	return it
}

type Patch struct {
	Nom             *string  `json:"nom"`
	Type            *string  `json:"type"`
	Description     *string  `json:"description"`
	PrixUnitaire    *float64 `json:"prix_unitaire"`
	Unite           *string  `json:"unite"`
	DureeStandard   *int     `json:"duree_standard"`
	Facturable      *bool    `json:"facturable"`
	CodeFacturation *string  `json:"code_facturation"`
	Actif           *bool    `json:"actif"`
}

func (p *Patch) Apply(i *Item) {
	if p.Nom != nil {
		i.Nom = *p.Nom
	}
	if p.Type != nil {
		i.Type = *p.Type
	}
	if p.Description != nil {
		i.Description = p.Description
	}
	if p.PrixUnitaire != nil {
		i.PrixUnitaire = *p.PrixUnitaire
	}
	if p.Unite != nil {
		i.Unite = p.Unite
	}
	if p.DureeStandard != nil {
		i.DureeStandard = p.DureeStandard
	}
	if p.Facturable != nil {
		i.Facturable = *p.Facturable
	}
	if p.CodeFacturation != nil {
		i.CodeFacturation = p.CodeFacturation
	}
	if p.Actif != nil {
		i.Actif = *p.Actif
	}
}

type Filter struct {
	Type  *string
	Actif *bool
}

// DefaultItems is the catalog installed by the seed command.
func DefaultItems() []*Item {
	item := func(nom, typ, desc string, prix float64, unite string, duree int) *Item {
		return &Item{
			Nom: nom, Type: typ, Description: &desc, PrixUnitaire: prix,
			Unite: &unite, DureeStandard: &duree, Facturable: true, Actif: true,
		}
	}
	return []*Item{
		item("Installation d'équipement", "Installation", "Installation et configuration d'équipement médical à domicile", 50, "forfait", 60),
		item("Formation patient", "Formation", "Formation du patient à l'utilisation de son équipement", 40, "session", 45),
		item("Entretien préventif", "Entretien", "Maintenance préventive des équipements", 35, "forfait", 30),
		item("Vente d'équipement", "Vente", "Vente de matériel médical", 0, "unité", 0),
		item("Mise à jour logicielle", "Mise à jour", "Mise à jour des logiciels des équipements", 25, "forfait", 20),
		item("Réparation standard", "Réparation", "Réparation d'équipement médical", 60, "heure", 60),
		item("Location d'équipement", "Location", "Location d'équipement médical", 0, "jour", 0),
		item("Évaluation technique à domicile", "Évaluation", "Évaluation des besoins du patient à domicile", 75, "visite", 90),
	}
}
