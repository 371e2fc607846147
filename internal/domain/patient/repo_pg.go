package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, nom, prenom, date_naissance, sexe, adresse, ville, code_postal,
	telephone, email, numero_securite_sociale, groupe_sanguin, allergies, antecedents,
	medecin_traitant, medecin_telephone, contact_urgence_nom, contact_urgence_telephone,
	contact_urgence_relation, poids, taille, tension_arterielle, niveau_oxygene, actif,
	date_creation, date_modification`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Nom, &p.Prenom, &p.DateNaissance, &p.Sexe, &p.Adresse,
		&p.Ville, &p.CodePostal, &p.Telephone, &p.Email, &p.NumeroSecuriteSociale,
		&p.GroupeSanguin, &p.Allergies, &p.Antecedents, &p.MedecinTraitant,
		&p.MedecinTelephone, &p.ContactUrgenceNom, &p.ContactUrgenceTelephone,
		&p.ContactUrgenceRelation, &p.Poids, &p.Taille, &p.TensionArterielle,
		&p.NiveauOxygene, &p.Actif, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, nom, prenom, date_naissance, sexe, adresse, ville, code_postal,
			telephone, email, numero_securite_sociale, groupe_sanguin, allergies, antecedents,
			medecin_traitant, medecin_telephone, contact_urgence_nom, contact_urgence_telephone,
			contact_urgence_relation, poids, taille, tension_arterielle, niveau_oxygene, actif)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING date_creation, date_modification`,
		p.ID, p.Nom, p.Prenom, p.DateNaissance, p.Sexe, p.Adresse, p.Ville, p.CodePostal,
		p.Telephone, p.Email, p.NumeroSecuriteSociale, p.GroupeSanguin, p.Allergies,
		p.Antecedents, p.MedecinTraitant, p.MedecinTelephone, p.ContactUrgenceNom,
		p.ContactUrgenceTelephone, p.ContactUrgenceRelation, p.Poids, p.Taille,
		p.TensionArterielle, p.NiveauOxygene, p.Actif,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "patients_numero_securite_sociale_key") {
		return ErrDuplicateSSN
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET nom=$2, prenom=$3, date_naissance=$4, sexe=$5, adresse=$6, ville=$7,
			code_postal=$8, telephone=$9, email=$10, numero_securite_sociale=$11, groupe_sanguin=$12,
			allergies=$13, antecedents=$14, medecin_traitant=$15, medecin_telephone=$16,
			contact_urgence_nom=$17, contact_urgence_telephone=$18, contact_urgence_relation=$19,
			poids=$20, taille=$21, tension_arterielle=$22, niveau_oxygene=$23, actif=$24,
			date_modification=NOW()
		WHERE id = $1`,
		p.ID, p.Nom, p.Prenom, p.DateNaissance, p.Sexe, p.Adresse, p.Ville, p.CodePostal,
		p.Telephone, p.Email, p.NumeroSecuriteSociale, p.GroupeSanguin, p.Allergies,
		p.Antecedents, p.MedecinTraitant, p.MedecinTelephone, p.ContactUrgenceNom,
		p.ContactUrgenceTelephone, p.ContactUrgenceRelation, p.Poids, p.Taille,
		p.TensionArterielle, p.NiveauOxygene, p.Actif)
	if db.IsUniqueViolation(err, "patients_numero_securite_sociale_key") {
		return ErrDuplicateSSN
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET actif = $2, date_modification = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set patient active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Patient, int, error) {
	var w db.Where
	if f.Nom != nil {
		w.Add("nom ILIKE '%' || $? || '%'", *f.Nom)
	}
	if f.Prenom != nil {
		w.Add("prenom ILIKE '%' || $? || '%'", *f.Prenom)
	}
	if f.Actif != nil {
		w.Add("actif = $?", *f.Actif)
	}
	if f.Query != nil {
		w.Add(`(nom ILIKE '%' || $? || '%' OR prenom ILIKE '%' || $? || '%'
			OR numero_securite_sociale ILIKE '%' || $? || '%'
			OR telephone ILIKE '%' || $? || '%' OR email ILIKE '%' || $? || '%')`, *f.Query)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients`+w.SQL()+` ORDER BY nom, prenom, id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SSNTaken(ctx context.Context, ssn string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE numero_securite_sociale = $1 AND id <> $2)`,
		ssn, exclude).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check social security number: %w", err)
	}
	return taken, nil
}
