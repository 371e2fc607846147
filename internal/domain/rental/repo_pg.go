package rental

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/equipment"
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

const rentalCols = `r.id, r.patient_id, r.equipment_id, r.date_debut, r.date_fin,
	r.tarif_journalier, r.caution, r.caution_versee, r.etat_depart, r.notes_depart,
	r.etat_retour, r.notes_retour, r.mode_facturation, r.facture_id, r.actif,
	r.date_creation, r.date_modification,
	p.nom, p.prenom, e.numero_serie, e.modele, e.type_equipement`

const rentalFrom = ` FROM equipment_rentals r
	JOIN patients p ON p.id = r.patient_id
	JOIN equipments e ON e.id = r.equipment_id`

func scanView(row pgx.Row) (*View, error) {
	var rt Rental
	pref := &patient.Ref{}
	eref := &equipment.Ref{}
	err := row.Scan(&rt.ID, &rt.PatientID, &rt.EquipmentID, &rt.DateDebut, &rt.DateFin,
		&rt.TarifJournalier, &rt.Caution, &rt.CautionVersee, &rt.EtatDepart, &rt.NotesDepart,
		&rt.EtatRetour, &rt.NotesRetour, &rt.ModeFacturation, &rt.FactureID, &rt.Actif,
		&rt.CreatedAt, &rt.UpdatedAt,
		&pref.Nom, &pref.Prenom, &eref.NumeroSerie, &eref.Modele, &eref.TypeEquipement)
	if err != nil {
		return nil, err
	}
	pref.ID = rt.PatientID
	eref.ID = rt.EquipmentID
	return &View{Rental: &rt, Patient: pref, Equipment: eref}, nil
}

func (r *repoPG) Create(ctx context.Context, rt *Rental) error {
	rt.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO equipment_rentals (id, patient_id, equipment_id, date_debut, date_fin,
			tarif_journalier, caution, caution_versee, etat_depart, notes_depart, etat_retour,
			notes_retour, mode_facturation, facture_id, actif)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING date_creation, date_modification`,
		rt.ID, rt.PatientID, rt.EquipmentID, rt.DateDebut, rt.DateFin, rt.TarifJournalier,
		rt.Caution, rt.CautionVersee, rt.EtatDepart, rt.NotesDepart, rt.EtatRetour,
		rt.NotesRetour, rt.ModeFacturation, rt.FactureID, rt.Actif,
	).Scan(&rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rental: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := scanView(r.conn(ctx).QueryRow(ctx, `SELECT `+rentalCols+rentalFrom+` WHERE r.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rental: %w", err)
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, rt *Rental) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE equipment_rentals SET date_debut=$2, date_fin=$3, tarif_journalier=$4,
			caution=$5, caution_versee=$6, etat_depart=$7, notes_depart=$8, etat_retour=$9,
			notes_retour=$10, mode_facturation=$11, facture_id=$12, actif=$13,
			date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		rt.ID, rt.DateDebut, rt.DateFin, rt.TarifJournalier, rt.Caution, rt.CautionVersee,
		rt.EtatDepart, rt.NotesDepart, rt.EtatRetour, rt.NotesRetour, rt.ModeFacturation,
		rt.FactureID, rt.Actif,
	).Scan(&rt.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update rental: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*View, int, error) {
	var w db.Where
	if f.PatientID != nil {
		w.Add("r.patient_id = $?", *f.PatientID)
	}
	if f.EquipmentID != nil {
		w.Add("r.equipment_id = $?", *f.EquipmentID)
	}
	if f.Actif != nil {
		w.Add("r.actif = $?", *f.Actif)
	}
	if f.Open {
		w.AddRaw("r.date_fin IS NULL")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM equipment_rentals r`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rentals: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rentalCols+rentalFrom+w.SQL()+` ORDER BY r.date_debut DESC, r.id`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rentals: %w", err)
	}
	defer rows.Close()
	items := []*View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SetInvoice(ctx context.Context, id, invoiceID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE equipment_rentals SET facture_id = $2, date_modification = NOW()
		WHERE id = $1`, id, invoiceID)
	if err != nil {
		return fmt.Errorf("stamp invoiced rental: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
