package dashboard

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/cache"
	"github.com/oxycare/oxycare/pkg/civil"
)

const upcomingWindowDays = 7

type Service struct {
	repo   Repository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewService serves stats from c for ttl. Pass cache.Nop{} to always query.
func NewService(repo Repository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl, logger: logger, now: time.Now}
}

func statsKey(today civil.Date) string {
	return "dashboard:stats:" + today.String()
}

// Stats returns the dashboard snapshot as of today. Cache failures are
// logged and fall through to the database.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	today := civil.DateOf(s.now().UTC())
	key := statsKey(today)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache read failed")
	} else if ok {
		var st Stats
		if err := json.Unmarshal(raw, &st); err == nil {
			return &st, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding malformed dashboard cache entry")
	}

	st, err := s.compute(ctx, today)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(st); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("dashboard cache write failed")
		}
	}
	return st, nil
}

func (s *Service) compute(ctx context.Context, today civil.Date) (*Stats, error) {
	st := &Stats{AsOf: today}
	var err error
	if st.TotalPatients, err = s.repo.ActivePatients(ctx); err != nil {
		return nil, err
	}
	if st.EquipmentByStatus, err = s.repo.EquipmentByStatus(ctx); err != nil {
		return nil, err
	}
	for _, n := range st.EquipmentByStatus {
		st.TotalEquipments += n
	}
	if st.UpcomingInterventions, err = s.repo.UpcomingInterventions(ctx, today, today.AddDays(upcomingWindowDays)); err != nil {
		return nil, err
	}
	if st.InterventionByStatus, err = s.repo.InterventionByStatus(ctx); err != nil {
		return nil, err
	}
	if st.UnpaidInvoices, err = s.repo.OverdueInvoices(ctx, today); err != nil {
		return nil, err
	}
	if st.MaintenanceDue, err = s.repo.MaintenanceDue(ctx, today); err != nil {
		return nil, err
	}
	if st.ActiveRentals, err = s.repo.ActiveRentals(ctx); err != nil {
		return nil, err
	}
	byDay, err := s.repo.RevenueByDay(ctx, MonthOf(today))
	if err != nil {
		return nil, err
	}
	st.CurrentMonthRevenue = sum(byDay)
	return st, nil
}

// Revenue sums paid invoices over the named period.
func (s *Service) Revenue(ctx context.Context, period string, start, end *civil.Date) (*Revenue, error) {
	today := civil.DateOf(s.now().UTC())
	name, rg, err := ResolvePeriod(period, start, end, today)
	if err != nil {
		return nil, err
	}
	byDay, err := s.repo.RevenueByDay(ctx, rg)
	if err != nil {
		return nil, err
	}
	return &Revenue{
		Period: name,
		Start:  rg.Start,
		End:    rg.End,
		Total:  sum(byDay),
		ByDay:  byDay,
	}, nil
}

func sum(byDay map[string]float64) float64 {
	var total float64
	for _, v := range byDay {
		total += v
	}
	return math.Round(total*100) / 100
}
