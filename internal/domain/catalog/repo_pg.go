package catalog

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

const itemCols = `id, nom, type, description, prix_unitaire, unite, duree_standard, facturable,
	code_facturation, actif, date_creation, date_modification`

const nameConstraint = "services_nom_key"

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Nom, &it.Type, &it.Description, &it.PrixUnitaire, &it.Unite,
		&it.DureeStandard, &it.Facturable, &it.CodeFacturation, &it.Actif, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO services (id, nom, type, description, prix_unitaire, unite, duree_standard,
			facturable, code_facturation, actif)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING date_creation, date_modification`,
		it.ID, it.Nom, it.Type, it.Description, it.PrixUnitaire, it.Unite, it.DureeStandard,
		it.Facturable, it.CodeFacturation, it.Actif,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if db.IsUniqueViolation(err, nameConstraint) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, where string, arg interface{}) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM services WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return it, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *repoPG) GetByName(ctx context.Context, nom string) (*Item, error) {
	return r.get(ctx, "nom = $1", nom)
}

func (r *repoPG) Update(ctx context.Context, it *Item) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE services SET nom=$2, type=$3, description=$4, prix_unitaire=$5, unite=$6,
			duree_standard=$7, facturable=$8, code_facturation=$9, actif=$10, date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		it.ID, it.Nom, it.Type, it.Description, it.PrixUnitaire, it.Unite, it.DureeStandard,
		it.Facturable, it.CodeFacturation, it.Actif,
	).Scan(&it.UpdatedAt)
	if db.IsUniqueViolation(err, nameConstraint) {
		return ErrDuplicateName
	}
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Item, int, error) {
	var w db.Where
	if f.Type != nil {
		w.Add("type = $?", *f.Type)
	}
	if f.Actif != nil {
		w.Add("actif = $?", *f.Actif)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM services`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM services`+w.SQL()+` ORDER BY type, nom`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()
	items := []*Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}
