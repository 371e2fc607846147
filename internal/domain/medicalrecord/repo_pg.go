package medicalrecord

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/patient"
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

const recordCols = `m.id, m.patient_id, m.date_diagnostic, m.medecin_prescripteur, m.diagnostic,
	m.traitement_type, m.traitement_details, m.duree_traitement, m.date_debut_traitement,
	m.date_fin_traitement, m.parametres_therapeutiques, m.numero_ordonnance,
	m.document_ordonnance, m.frequence_suivi, m.notes_suivi, m.resultats_examens,
	m.documents_examens, m.actif, m.date_creation, m.date_modification,
	p.nom, p.prenom`

const recordFrom = ` FROM medical_records m JOIN patients p ON p.id = m.patient_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	ref := &patient.Ref{}
	err := row.Scan(&r.ID, &r.PatientID, &r.DateDiagnostic, &r.MedecinPrescripteur,
		&r.Diagnostic, &r.TraitementType, &r.TraitementDetails, &r.DureeTraitement,
		&r.DateDebutTraitement, &r.DateFinTraitement, &r.ParametresTherapeutiques,
		&r.NumeroOrdonnance, &r.DocumentOrdonnance, &r.FrequenceSuivi, &r.NotesSuivi,
		&r.ResultatsExamens, &r.DocumentsExamens, &r.Actif, &r.CreatedAt, &r.UpdatedAt,
		&ref.Nom, &ref.Prenom)
	ref.ID = r.PatientID
	r.Patient = ref
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	if rec.ResultatsExamens == nil {
		rec.ResultatsExamens = map[string][]map[string]interface{}{}
	}
	if rec.DocumentsExamens == nil {
		rec.DocumentsExamens = []Document{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, date_diagnostic, medecin_prescripteur,
			diagnostic, traitement_type, traitement_details, duree_traitement,
			date_debut_traitement, date_fin_traitement, parametres_therapeutiques,
			numero_ordonnance, document_ordonnance, frequence_suivi, notes_suivi,
			resultats_examens, documents_examens, actif)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING date_creation, date_modification`,
		rec.ID, rec.PatientID, rec.DateDiagnostic, rec.MedecinPrescripteur, rec.Diagnostic,
		rec.TraitementType, rec.TraitementDetails, rec.DureeTraitement, rec.DateDebutTraitement,
		rec.DateFinTraitement, rec.ParametresTherapeutiques, rec.NumeroOrdonnance,
		rec.DocumentOrdonnance, rec.FrequenceSuivi, rec.NotesSuivi, rec.ResultatsExamens,
		rec.DocumentsExamens, rec.Actif,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return patient.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE m.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medical record: %w", err)
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET date_diagnostic=$2, medecin_prescripteur=$3, diagnostic=$4,
			traitement_type=$5, traitement_details=$6, duree_traitement=$7,
			date_debut_traitement=$8, date_fin_traitement=$9, parametres_therapeutiques=$10,
			numero_ordonnance=$11, document_ordonnance=$12, frequence_suivi=$13, notes_suivi=$14,
			actif=$15, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		rec.ID, rec.DateDiagnostic, rec.MedecinPrescripteur, rec.Diagnostic, rec.TraitementType,
		rec.TraitementDetails, rec.DureeTraitement, rec.DateDebutTraitement, rec.DateFinTraitement,
		rec.ParametresTherapeutiques, rec.NumeroOrdonnance, rec.DocumentOrdonnance,
		rec.FrequenceSuivi, rec.NotesSuivi, rec.Actif,
	).Scan(&rec.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update medical record: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Record, int, error) {
	var w db.Where
	if f.PatientID != nil {
		w.Add("m.patient_id = $?", *f.PatientID)
	}
	if f.Actif != nil {
		w.Add("m.actif = $?", *f.Actif)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_records m`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical records: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+recordFrom+w.SQL()+` ORDER BY m.date_creation DESC, m.id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()
	items := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AppendExamResult(ctx context.Context, id uuid.UUID, date string, result map[string]interface{}) (*Record, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET
			resultats_examens = jsonb_set(
				COALESCE(resultats_examens, '{}'::jsonb),
				ARRAY[$2::text],
				COALESCE(resultats_examens -> $2::text, '[]'::jsonb) || jsonb_build_array($3::jsonb)),
			date_modification = NOW()
		WHERE id = $1`, id, date, result)
	if err != nil {
		return nil, fmt.Errorf("append exam result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) AppendDocument(ctx context.Context, id uuid.UUID, doc Document) (*Record, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET
			documents_examens = COALESCE(documents_examens, '[]'::jsonb) || jsonb_build_array($2::jsonb),
			date_modification = NOW()
		WHERE id = $1`, id, doc)
	if err != nil {
		return nil, fmt.Errorf("append exam document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
