package dashboard

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/equipment"
	"github.com/oxycare/oxycare/internal/domain/intervention"
	"github.com/oxycare/oxycare/internal/domain/invoicing"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/civil"
)

var dialect = goqu.Dialect("postgres")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) count(ctx context.Context, what string, ds *goqu.SelectDataset) (int, error) {
	query, args, err := countQuery(ds).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s query: %w", what, err)
	}
	var n int
	if err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}

func (r *repoPG) countBy(ctx context.Context, table, column string) (map[string]int, error) {
	query, args, err := countByQuery(table, column).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s by %s query: %w", table, column, err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, column, err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *repoPG) ActivePatients(ctx context.Context) (int, error) {
	return r.count(ctx, "active patients", activePatientsQuery())
}

func (r *repoPG) EquipmentByStatus(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, "equipments", "statut")
}

func (r *repoPG) UpcomingInterventions(ctx context.Context, from, through civil.Date) (int, error) {
	return r.count(ctx, "upcoming interventions", upcomingInterventionsQuery(from, through))
}

func (r *repoPG) InterventionByStatus(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, "interventions", "statut")
}

func (r *repoPG) OverdueInvoices(ctx context.Context, today civil.Date) (int, error) {
	return r.count(ctx, "overdue invoices", overdueInvoicesQuery(today))
}

func (r *repoPG) MaintenanceDue(ctx context.Context, today civil.Date) (int, error) {
	return r.count(ctx, "maintenance due", maintenanceDueQuery(today))
}

func (r *repoPG) ActiveRentals(ctx context.Context) (int, error) {
	return r.count(ctx, "active rentals", activeRentalsQuery())
}

func (r *repoPG) RevenueByDay(ctx context.Context, rg Range) (map[string]float64, error) {
	query, args, err := revenueByDayQuery(rg).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build revenue query: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var day civil.Date
		var total float64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		out[day.String()] = total
	}
	return out, rows.Err()
}

func activePatientsQuery() *goqu.SelectDataset {
	return dialect.From("patients").Where(goqu.Ex{"actif": true})
}

// upcomingInterventionsQuery matches planned visits from midnight of from
// up to midnight of through, both included.
func upcomingInterventionsQuery(from, through civil.Date) *goqu.SelectDataset {
	return dialect.From("interventions").Where(
		goqu.Ex{"statut": intervention.StatusPlanned},
		goqu.C("date_planifiee").Gte(from.Time),
		goqu.C("date_planifiee").Lte(through.Time),
	)
}

func overdueInvoicesQuery(today civil.Date) *goqu.SelectDataset {
	return dialect.From("invoices").Where(
		goqu.Ex{"statut": invoicing.StatusPending},
		goqu.C("date_echeance").Lt(today.Time),
	)
}

func maintenanceDueQuery(today civil.Date) *goqu.SelectDataset {
	soon, stale := equipment.MaintenanceWindow(today)
	return dialect.From("equipments").Where(
		goqu.C("statut").Neq(equipment.StatusRetired),
		goqu.Or(
			goqu.C("date_prochaine_maintenance").Lte(soon.Time),
			goqu.C("date_derniere_maintenance").Lte(stale.Time),
		),
	)
}

func activeRentalsQuery() *goqu.SelectDataset {
	return dialect.From("equipment_rentals").Where(goqu.Ex{"actif": true, "date_fin": nil})
}

func revenueByDayQuery(rg Range) *goqu.SelectDataset {
	return dialect.From("invoices").
		Select(goqu.C("date_emission"), goqu.SUM("montant_ttc")).
		Where(
			goqu.Ex{"statut": invoicing.StatusPaid},
			goqu.C("date_emission").Gte(rg.Start.Time),
			goqu.C("date_emission").Lt(rg.End.Time),
		).
		GroupBy(goqu.C("date_emission")).
		Order(goqu.C("date_emission").Asc())
}

func countQuery(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.Select(goqu.COUNT(goqu.Star()))
}

func countByQuery(table, column string) *goqu.SelectDataset {
	return dialect.From(table).
		Select(goqu.C(column), goqu.COUNT(goqu.Star())).
		GroupBy(goqu.C(column))
}
