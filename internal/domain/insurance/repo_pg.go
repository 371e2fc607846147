package insurance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/pagination"
)

// -- Insurance Repository --

type insuranceRepoPG struct{ pool *pgxpool.Pool }

func NewInsuranceRepoPG(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pool: pool}
}

func (r *insuranceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const insuranceCols = `id, nom, type, adresse, ville, code_postal, telephone, email, site_web,
	contact_nom, contact_telephone, contact_email, delai_paiement, actif, notes,
	date_creation, date_modification`

func scanInsurance(row pgx.Row) (*Insurance, error) {
	var i Insurance
	err := row.Scan(&i.ID, &i.Nom, &i.Type, &i.Adresse, &i.Ville, &i.CodePostal, &i.Telephone,
		&i.Email, &i.SiteWeb, &i.ContactNom, &i.ContactTelephone, &i.ContactEmail,
		&i.DelaiPaiement, &i.Actif, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	return &i, err
}

func (r *insuranceRepoPG) Create(ctx context.Context, i *Insurance) error {
	i.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurances (id, nom, type, adresse, ville, code_postal, telephone, email,
			site_web, contact_nom, contact_telephone, contact_email, delai_paiement, actif, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING date_creation, date_modification`,
		i.ID, i.Nom, i.Type, i.Adresse, i.Ville, i.CodePostal, i.Telephone, i.Email,
		i.SiteWeb, i.ContactNom, i.ContactTelephone, i.ContactEmail, i.DelaiPaiement, i.Actif, i.Notes,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert insurance: %w", err)
	}
	return nil
}

func (r *insuranceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	i, err := scanInsurance(r.conn(ctx).QueryRow(ctx, `SELECT `+insuranceCols+` FROM insurances WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrInsuranceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get insurance: %w", err)
	}
	return i, nil
}

func (r *insuranceRepoPG) Update(ctx context.Context, i *Insurance) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE insurances SET nom=$2, type=$3, adresse=$4, ville=$5, code_postal=$6, telephone=$7,
			email=$8, site_web=$9, contact_nom=$10, contact_telephone=$11, contact_email=$12,
			delai_paiement=$13, actif=$14, notes=$15, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		i.ID, i.Nom, i.Type, i.Adresse, i.Ville, i.CodePostal, i.Telephone, i.Email,
		i.SiteWeb, i.ContactNom, i.ContactTelephone, i.ContactEmail, i.DelaiPaiement, i.Actif, i.Notes,
	).Scan(&i.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrInsuranceNotFound
	}
	if err != nil {
		return fmt.Errorf("update insurance: %w", err)
	}
	return nil
}

func (r *insuranceRepoPG) List(ctx context.Context, f InsuranceFilter, page pagination.Params) ([]*Insurance, int, error) {
	var w db.Where
	if f.Type != nil {
		w.Add("type = $?", *f.Type)
	}
	if f.Actif != nil {
		w.Add("actif = $?", *f.Actif)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM insurances`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count insurances: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+insuranceCols+` FROM insurances`+w.SQL()+` ORDER BY nom, id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list insurances: %w", err)
	}
	defer rows.Close()
	items := []*Insurance{}
	for rows.Next() {
		i, err := scanInsurance(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

// -- Coverage Repository --

type coverageRepoPG struct{ pool *pgxpool.Pool }

func NewCoverageRepoPG(pool *pgxpool.Pool) CoverageRepository {
	return &coverageRepoPG{pool: pool}
}

func (r *coverageRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const coverageCols = `pi.id, pi.patient_id, pi.assurance_id, pi.numero_adherent, pi.date_debut,
	pi.date_fin, pi.taux_couverture, pi.plafond_annuel, pi.actif, pi.notes,
	pi.date_creation, pi.date_modification`

func scanCoverage(row pgx.Row, extra ...interface{}) (*Coverage, error) {
	var c Coverage
	dest := []interface{}{&c.ID, &c.PatientID, &c.AssuranceID, &c.NumeroAdherent, &c.DateDebut,
		&c.DateFin, &c.TauxCouverture, &c.PlafondAnnuel, &c.Actif, &c.Notes, &c.CreatedAt, &c.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return &c, err
}

func (r *coverageRepoPG) Create(ctx context.Context, c *Coverage) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_insurances (id, patient_id, assurance_id, numero_adherent, date_debut,
			date_fin, taux_couverture, plafond_annuel, actif, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING date_creation, date_modification`,
		c.ID, c.PatientID, c.AssuranceID, c.NumeroAdherent, c.DateDebut, c.DateFin,
		c.TauxCouverture, c.PlafondAnnuel, c.Actif, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient insurance: %w", err)
	}
	return nil
}

func (r *coverageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Coverage, error) {
	c, err := scanCoverage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+coverageCols+` FROM patient_insurances pi WHERE pi.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrCoverageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient insurance: %w", err)
	}
	return c, nil
}

func (r *coverageRepoPG) Update(ctx context.Context, c *Coverage) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_insurances SET numero_adherent=$2, date_debut=$3, date_fin=$4,
			taux_couverture=$5, plafond_annuel=$6, actif=$7, notes=$8, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		c.ID, c.NumeroAdherent, c.DateDebut, c.DateFin, c.TauxCouverture, c.PlafondAnnuel,
		c.Actif, c.Notes,
	).Scan(&c.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrCoverageNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient insurance: %w", err)
	}
	return nil
}

func (r *coverageRepoPG) List(ctx context.Context, f CoverageFilter, page pagination.Params) ([]*Coverage, int, error) {
	var w db.Where
	if f.PatientID != nil {
		w.Add("pi.patient_id = $?", *f.PatientID)
	}
	if f.AssuranceID != nil {
		w.Add("pi.assurance_id = $?", *f.AssuranceID)
	}
	if f.Actif != nil {
		w.Add("pi.actif = $?", *f.Actif)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_insurances pi`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient insurances: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+coverageCols+` FROM patient_insurances pi`+w.SQL()+` ORDER BY pi.date_debut DESC, pi.id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient insurances: %w", err)
	}
	defer rows.Close()
	items := []*Coverage{}
	for rows.Next() {
		c, err := scanCoverage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *coverageRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*CoverageView, error) {
	var w db.Where
	w.Add("pi.patient_id = $?", patientID)
	if activeOnly {
		w.AddRaw("pi.actif")
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+coverageCols+`, i.nom, i.type
		FROM patient_insurances pi
		JOIN insurances i ON i.id = pi.assurance_id`+w.SQL()+`
		ORDER BY pi.date_debut DESC, pi.id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list patient coverages: %w", err)
	}
	defer rows.Close()
	items := []*CoverageView{}
	for rows.Next() {
		ref := &InsuranceRef{}
		c, err := scanCoverage(rows, &ref.Nom, &ref.Type)
		if err != nil {
			return nil, err
		}
		ref.ID = c.AssuranceID
		items = append(items, &CoverageView{Coverage: c, Assurance: ref})
	}
	return items, rows.Err()
}
