package dashboard

import (
	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/pkg/civil"
)

// Stats is the snapshot served by GET /dashboard/stats.
type Stats struct {
	TotalPatients         int            `json:"total_patients"`
	TotalEquipments       int            `json:"total_equipments"`
	EquipmentByStatus     map[string]int `json:"equipment_by_status"`
	UpcomingInterventions int            `json:"upcoming_interventions"`
	InterventionByStatus  map[string]int `json:"intervention_by_status"`
	UnpaidInvoices        int            `json:"unpaid_invoices"`
	MaintenanceDue        int            `json:"maintenance_due"`
	ActiveRentals         int            `json:"active_rentals"`
	CurrentMonthRevenue   float64        `json:"current_month_revenue"`
	AsOf                  civil.Date     `json:"as_of"`
}

const (
	PeriodDay    = "day"
	PeriodMonth  = "month"
	PeriodYear   = "year"
	PeriodCustom = "custom"
	PeriodLast30 = "last_30_days"
)

const defaultWindowDays = 30

// Range is a half-open day interval [Start, End).
type Range struct {
	Start civil.Date
	End   civil.Date
}

// Revenue is the paid turnover over a period.
type Revenue struct {
	Period string             `json:"period"`
	Start  civil.Date         `json:"start"`
	End    civil.Date         `json:"end"`
	Total  float64            `json:"total"`
	ByDay  map[string]float64 `json:"by_day"`
}

// MonthOf returns the calendar month containing day.
func MonthOf(day civil.Date) Range {
	first := day.AddDays(1 - day.Day())
	return Range{Start: first, End: civil.DateOf(first.AddDate(0, 1, 0))}
}

// ResolvePeriod turns a period name into its day range as of today. For
// custom, both start and end are required and end is included. Unknown
// names fall back to the 30 days before today plus today itself.
func ResolvePeriod(period string, start, end *civil.Date, today civil.Date) (string, Range, error) {
	switch period {
	case PeriodDay:
		return period, Range{Start: today, End: today.AddDays(1)}, nil
	case PeriodMonth:
		return period, MonthOf(today), nil
	case PeriodYear:
		first := today.AddDays(1 - today.YearDay())
		return period, Range{Start: first, End: civil.DateOf(first.AddDate(1, 0, 0))}, nil
	case PeriodCustom:
		v := apperr.Violations{}
		if start == nil {
			v.Add("start_date", "is required for a custom period")
		}
		if end == nil {
			v.Add("end_date", "is required for a custom period")
		}
		if start != nil && end != nil && end.Before(*start) {
			v.Add("end_date", "must not be before start_date")
		}
		if err := v.Err(); err != nil {
			return "", Range{}, err
		}
		return period, Range{Start: *start, End: end.AddDays(1)}, nil
	default:
		return PeriodLast30, Range{Start: today.AddDays(-defaultWindowDays), End: today.AddDays(1)}, nil
	}
}
