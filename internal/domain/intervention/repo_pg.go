package intervention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/identity"
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

const interventionCols = `i.id, i.type_intervention, i.statut, i.date_planifiee, i.duree_estimee,
	i.date_debut, i.date_fin, i.patient_id, i.equipement_id, i.technicien_id, i.description,
	i.actions_effectuees, i.pieces_remplacees, i.resultat, i.signature_patient,
	i.signature_technicien, i.facturable, i.montant, i.facture_id, i.date_creation,
	i.date_modification`

const viewCols = interventionCols + `, p.nom, p.prenom,
	e.numero_serie, e.modele, e.type_equipement, u.nom, u.prenom`

const viewFrom = ` FROM interventions i
	JOIN patients p ON p.id = i.patient_id
	LEFT JOIN equipments e ON e.id = i.equipement_id
	LEFT JOIN users u ON u.id = i.technicien_id`

func interventionDest(in *Intervention) []interface{} {
	return []interface{}{&in.ID, &in.TypeIntervention, &in.Statut, &in.DatePlanifiee,
		&in.DureeEstimee, &in.DateDebut, &in.DateFin, &in.PatientID, &in.EquipementID,
		&in.TechnicienID, &in.Description, &in.ActionsEffectuees, &in.PiecesRemplacees,
		&in.Resultat, &in.SignaturePatient, &in.SignatureTechnicien, &in.Facturable,
		&in.Montant, &in.FactureID, &in.CreatedAt, &in.UpdatedAt}
}

func scanIntervention(row pgx.Row) (*Intervention, error) {
	var in Intervention
	err := row.Scan(interventionDest(&in)...)
	return &in, err
}

func scanView(row pgx.Row) (*View, error) {
	in := &Intervention{}
	var (
		pNom, pPrenom         string
		serial, modele, eType *string
		uNom, uPrenom         *string
	)
	dest := append(interventionDest(in), &pNom, &pPrenom, &serial, &modele, &eType, &uNom, &uPrenom)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	v := &View{
		Intervention: in,
		Patient:      &patient.Ref{ID: in.PatientID, Nom: pNom, Prenom: pPrenom},
		Services:     []*ServiceLine{},
	}
	if in.EquipementID != nil && serial != nil {
		v.Equipement = &equipment.Ref{ID: *in.EquipementID, NumeroSerie: *serial, Modele: deref(modele), TypeEquipement: deref(eType)}
	}
	if in.TechnicienID != nil && uNom != nil {
		v.Technicien = &identity.Ref{ID: *in.TechnicienID, Nom: *uNom, Prenom: deref(uPrenom)}
	}
	return v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collectViews(rows pgx.Rows) ([]*View, error) {
	defer rows.Close()
	items := []*View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, in *Intervention) error {
	in.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO interventions (id, type_intervention, statut, date_planifiee, duree_estimee,
			date_debut, date_fin, patient_id, equipement_id, technicien_id, description,
			actions_effectuees, pieces_remplacees, resultat, signature_patient,
			signature_technicien, facturable, montant, facture_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING date_creation, date_modification`,
		in.ID, in.TypeIntervention, in.Statut, in.DatePlanifiee, in.DureeEstimee,
		in.DateDebut, in.DateFin, in.PatientID, in.EquipementID, in.TechnicienID, in.Description,
		in.ActionsEffectuees, in.PiecesRemplacees, in.Resultat, in.SignaturePatient,
		in.SignatureTechnicien, in.Facturable, in.Montant, in.FactureID,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := scanView(r.conn(ctx).QueryRow(ctx, `SELECT `+viewCols+viewFrom+` WHERE i.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intervention: %w", err)
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, in *Intervention) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE interventions SET type_intervention=$2, statut=$3, date_planifiee=$4,
			duree_estimee=$5, date_debut=$6, date_fin=$7, equipement_id=$8, technicien_id=$9,
			description=$10, actions_effectuees=$11, pieces_remplacees=$12, resultat=$13,
			signature_patient=$14, signature_technicien=$15, facturable=$16, montant=$17,
			facture_id=$18, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		in.ID, in.TypeIntervention, in.Statut, in.DatePlanifiee, in.DureeEstimee, in.DateDebut,
		in.DateFin, in.EquipementID, in.TechnicienID, in.Description, in.ActionsEffectuees,
		in.PiecesRemplacees, in.Resultat, in.SignaturePatient, in.SignatureTechnicien,
		in.Facturable, in.Montant, in.FactureID,
	).Scan(&in.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update intervention: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error) {
	var w db.Where
	if f.Type != nil {
		w.Add("i.type_intervention = $?", *f.Type)
	}
	if f.Statut != nil {
		w.Add("i.statut = $?", *f.Statut)
	}
	if f.PatientID != nil {
		w.Add("i.patient_id = $?", *f.PatientID)
	}
	if f.EquipementID != nil {
		w.Add("i.equipement_id = $?", *f.EquipementID)
	}
	if f.TechnicienID != nil {
		w.Add("i.technicien_id = $?", *f.TechnicienID)
	}
	if f.From != nil && f.To != nil {
		w.Add("i.date_planifiee >= $?", f.From.Time)
		w.Add("i.date_planifiee < $?", f.To.AddDays(1).Time)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM interventions i`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count interventions: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+viewCols+viewFrom+w.SQL()+` ORDER BY i.date_planifiee, i.id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list interventions: %w", err)
	}
	items, err := collectViews(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) Schedule(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]*View, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+viewCols+viewFrom+`
		WHERE i.technicien_id = $1 AND i.date_planifiee >= $2 AND i.date_planifiee < $3
			AND i.statut IN ($4, $5)
		ORDER BY i.date_planifiee`,
		technicianID, from, to, StatusPlanned, StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("technician schedule: %w", err)
	}
	return collectViews(rows)
}

func (r *repoPG) Overdue(ctx context.Context, now time.Time) ([]*View, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+viewCols+viewFrom+`
		WHERE i.statut = $1 AND i.date_planifiee < $2
		ORDER BY i.date_planifiee`, StatusPlanned, now)
	if err != nil {
		return nil, fmt.Errorf("overdue interventions: %w", err)
	}
	return collectViews(rows)
}

func (r *repoPG) ListServices(ctx context.Context, interventionID uuid.UUID) ([]*ServiceLine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT si.id, si.intervention_id, si.service_id, si.quantite, si.duree_reelle, si.notes,
			si.prix_applique, si.facturable, s.nom, s.prix_unitaire, s.unite
		FROM service_interventions si
		JOIN services s ON s.id = si.service_id
		WHERE si.intervention_id = $1
		ORDER BY si.date_creation, si.id`, interventionID)
	if err != nil {
		return nil, fmt.Errorf("list intervention services: %w", err)
	}
	defer rows.Close()
	lines := []*ServiceLine{}
	for rows.Next() {
		l := &ServiceLine{Service: &ServiceRef{}}
		if err := rows.Scan(&l.ID, &l.InterventionID, &l.ServiceID, &l.Quantite, &l.DureeReelle,
			&l.Notes, &l.PrixApplique, &l.Facturable, &l.Service.Nom, &l.Service.PrixUnitaire,
			&l.Service.Unite); err != nil {
			return nil, err
		}
		l.Service.ID = l.ServiceID
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repoPG) ReplaceServices(ctx context.Context, interventionID uuid.UUID, lines []*ServiceLine) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM service_interventions WHERE intervention_id = $1`, interventionID); err != nil {
		return fmt.Errorf("delete intervention services: %w", err)
	}
	for _, l := range lines {
		l.ID = uuid.New()
		l.InterventionID = interventionID
		_, err := q.Exec(ctx, `
			INSERT INTO service_interventions (id, intervention_id, service_id, quantite,
				duree_reelle, notes, prix_applique, facturable)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			l.ID, l.InterventionID, l.ServiceID, l.Quantite, l.DureeReelle, l.Notes,
			l.PrixApplique, l.Facturable)
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownService
		}
		if err != nil {
			return fmt.Errorf("insert intervention service: %w", err)
		}
	}
	return nil
}

func (r *repoPG) ListBillable(ctx context.Context, patientID uuid.UUID, ids []uuid.UUID) ([]*Intervention, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+interventionCols+`
		FROM interventions i
		WHERE i.patient_id = $1 AND i.id = ANY($2) AND i.facturable AND i.statut <> $3
			AND (i.facture_id IS NULL
				OR i.facture_id IN (SELECT id FROM invoices WHERE statut = 'annulée'))
		ORDER BY i.date_planifiee, i.id`, patientID, ids, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("list billable interventions: %w", err)
	}
	defer rows.Close()
	items := []*Intervention{}
	for rows.Next() {
		in, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

func (r *repoPG) SetInvoice(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE interventions SET facture_id = $2, date_modification = NOW()
		WHERE id = ANY($1)`, ids, invoiceID)
	if err != nil {
		return fmt.Errorf("stamp invoiced interventions: %w", err)
	}
	return nil
}
