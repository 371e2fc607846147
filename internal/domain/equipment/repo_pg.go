package equipment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const equipmentCols = `id, numero_serie, modele, type_equipement, fabricant, statut,
	date_acquisition, date_derniere_maintenance, date_prochaine_maintenance, parametres,
	patient_id, date_attribution, date_fin_attribution, notes, date_creation, date_modification`

const serialConstraint = "equipments_numero_serie_key"

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var e Equipment
	err := row.Scan(&e.ID, &e.NumeroSerie, &e.Modele, &e.TypeEquipement, &e.Fabricant,
		&e.Statut, &e.DateAcquisition, &e.DateDerniereMaintenance, &e.DateProchaineMaintenance,
		&e.Parametres, &e.PatientID, &e.DateAttribution, &e.DateFinAttribution, &e.Notes,
		&e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func collect(rows pgx.Rows) ([]*Equipment, error) {
	defer rows.Close()
	items := []*Equipment{}
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, e *Equipment) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO equipments (id, numero_serie, modele, type_equipement, fabricant, statut,
			date_acquisition, date_derniere_maintenance, date_prochaine_maintenance, parametres,
			patient_id, date_attribution, date_fin_attribution, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING date_creation, date_modification`,
		e.ID, e.NumeroSerie, e.Modele, e.TypeEquipement, e.Fabricant, e.Statut,
		e.DateAcquisition, e.DateDerniereMaintenance, e.DateProchaineMaintenance, e.Parametres,
		e.PatientID, e.DateAttribution, e.DateFinAttribution, e.Notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if db.IsUniqueViolation(err, serialConstraint) {
		return ErrDuplicateSerial
	}
	if err != nil {
		return fmt.Errorf("insert equipment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	e, err := scanEquipment(r.conn(ctx).QueryRow(ctx, `SELECT `+equipmentCols+` FROM equipments WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment: %w", err)
	}
	return e, nil
}

func (r *repoPG) Update(ctx context.Context, e *Equipment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE equipments SET numero_serie=$2, modele=$3, type_equipement=$4, fabricant=$5,
			statut=$6, date_acquisition=$7, date_derniere_maintenance=$8,
			date_prochaine_maintenance=$9, parametres=$10, patient_id=$11, date_attribution=$12,
			date_fin_attribution=$13, notes=$14, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		e.ID, e.NumeroSerie, e.Modele, e.TypeEquipement, e.Fabricant, e.Statut,
		e.DateAcquisition, e.DateDerniereMaintenance, e.DateProchaineMaintenance, e.Parametres,
		e.PatientID, e.DateAttribution, e.DateFinAttribution, e.Notes,
	).Scan(&e.UpdatedAt)
	if db.IsUniqueViolation(err, serialConstraint) {
		return ErrDuplicateSerial
	}
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update equipment: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Equipment, int, error) {
	var w db.Where
	if f.Type != nil {
		w.Add("type_equipement = $?", *f.Type)
	}
	if f.Statut != nil {
		w.Add("statut = $?", *f.Statut)
	}
	if f.PatientID != nil {
		w.Add("patient_id = $?", *f.PatientID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM equipments`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count equipments: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+equipmentCols+` FROM equipments`+w.SQL()+` ORDER BY type_equipement, numero_serie`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list equipments: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) SerialTaken(ctx context.Context, serial string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM equipments WHERE numero_serie = $1 AND id <> $2)`,
		serial, exclude).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check serial number: %w", err)
	}
	return taken, nil
}

func (r *repoPG) ListAvailable(ctx context.Context, equipmentType *string) ([]*Equipment, error) {
	var w db.Where
	w.Add("statut = $?", StatusAvailable)
	if equipmentType != nil {
		w.Add("type_equipement = $?", *equipmentType)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+equipmentCols+` FROM equipments`+w.SQL()+` ORDER BY type_equipement, numero_serie`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list available equipments: %w", err)
	}
	return collect(rows)
}

func (r *repoPG) ListMaintenanceDue(ctx context.Context, today civil.Date) ([]*Equipment, error) {
	soon, stale := MaintenanceWindow(today)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+equipmentCols+` FROM equipments
		WHERE statut <> $1
			AND (date_prochaine_maintenance <= $2 OR date_derniere_maintenance <= $3)
		ORDER BY date_prochaine_maintenance ASC NULLS LAST, numero_serie`,
		StatusRetired, soon, stale)
	if err != nil {
		return nil, fmt.Errorf("list maintenance due: %w", err)
	}
	return collect(rows)
}

func (r *repoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE equipments SET statut = $3, date_modification = NOW() WHERE id = $1 AND statut = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("transition equipment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE equipments SET statut = $2, date_modification = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set equipment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetMaintenance(ctx context.Context, id uuid.UUID, last, next civil.Date) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE equipments SET date_derniere_maintenance = $2, date_prochaine_maintenance = $3,
			date_modification = NOW()
		WHERE id = $1`, id, last, next)
	if err != nil {
		return fmt.Errorf("record maintenance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
