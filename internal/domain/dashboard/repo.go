package dashboard

import (
	"context"

	"github.com/oxycare/oxycare/pkg/civil"
)

// Repository runs the aggregate queries behind the dashboard. Every count
// is computed as of the given day.
type Repository interface {
	ActivePatients(ctx context.Context) (int, error)
	EquipmentByStatus(ctx context.Context) (map[string]int, error)
	// UpcomingInterventions counts planned visits scheduled between midnight
	// of from and midnight of through, both included.
	UpcomingInterventions(ctx context.Context, from, through civil.Date) (int, error)
	InterventionByStatus(ctx context.Context) (map[string]int, error)
	OverdueInvoices(ctx context.Context, today civil.Date) (int, error)
	MaintenanceDue(ctx context.Context, today civil.Date) (int, error)
	ActiveRentals(ctx context.Context) (int, error)
	// RevenueByDay sums montant_ttc of paid invoices per issue date in r.
	RevenueByDay(ctx context.Context, r Range) (map[string]float64, error)
}
