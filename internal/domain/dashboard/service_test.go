package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxycare/oxycare/internal/platform/cache"
	"github.com/oxycare/oxycare/pkg/civil"
)

// stubRepo serves fixed aggregates and filters revenue by range.
type stubRepo struct {
	revenue  map[string]float64
	calls    int
	upcoming [2]civil.Date
	err      error
}

func (s *stubRepo) ActivePatients(context.Context) (int, error) {
	s.calls++
	return 12, s.err
}

func (s *stubRepo) EquipmentByStatus(context.Context) (map[string]int, error) {
	return map[string]int{"disponible": 4, "en location": 3, "réformé": 1}, nil
}

func (s *stubRepo) UpcomingInterventions(_ context.Context, from, through civil.Date) (int, error) {
	s.upcoming = [2]civil.Date{from, through}
	return 2, nil
}

func (s *stubRepo) InterventionByStatus(context.Context) (map[string]int, error) {
	return map[string]int{"planifiée": 2, "terminée": 5}, nil
}

func (s *stubRepo) OverdueInvoices(context.Context, civil.Date) (int, error) { return 1, nil }
func (s *stubRepo) MaintenanceDue(context.Context, civil.Date) (int, error)  { return 3, nil }
func (s *stubRepo) ActiveRentals(context.Context) (int, error)               { return 3, nil }

func (s *stubRepo) RevenueByDay(_ context.Context, r Range) (map[string]float64, error) {
	out := map[string]float64{}
	for day, v := range s.revenue {
		d, _ := civil.Parse(day)
		if !d.Before(r.Start) && d.Before(r.End) {
			out[day] = v
		}
	}
	return out, nil
}

type memCache map[string][]byte

func (m memCache) Get(_ context.Context, k string) ([]byte, bool, error) {
	v, ok := m[k]
	return v, ok, nil
}

func (m memCache) Set(_ context.Context, k string, v []byte, _ time.Duration) error {
	m[k] = v
	return nil
}

func (m memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

var fixedNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, c cache.Cache) *Service {
	svc := NewService(repo, c, time.Minute, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func sampleRevenue() map[string]float64 {
	return map[string]float64{
		"2024-05-31": 1000,
		"2024-06-01": 120,
		"2024-06-15": 60.5,
		"2024-07-01": 500,
	}
}

func TestStats(t *testing.T) {
	repo := &stubRepo{revenue: sampleRevenue()}
	svc := newTestService(repo, cache.Nop{})

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, st.TotalPatients)
	assert.Equal(t, 8, st.TotalEquipments)
	assert.Equal(t, 2, st.UpcomingInterventions)
	assert.Equal(t, 1, st.UnpaidInvoices)
	assert.Equal(t, 3, st.MaintenanceDue)
	assert.Equal(t, 3, st.ActiveRentals)
	assert.Equal(t, 180.5, st.CurrentMonthRevenue)
	assert.Equal(t, "2024-06-15", repo.upcoming[0].String())
	assert.Equal(t, "2024-06-22", repo.upcoming[1].String())
}

func TestStats_ServedFromCache(t *testing.T) {
	repo := &stubRepo{revenue: sampleRevenue()}
	c := memCache{}
	svc := newTestService(repo, c)

	first, err := svc.Stats(context.Background())
	require.NoError(t, err)
	second, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, first.EquipmentByStatus, second.EquipmentByStatus)
	assert.Equal(t, first.CurrentMonthRevenue, second.CurrentMonthRevenue)
	assert.Equal(t, "2024-06-15", second.AsOf.String())
	assert.Contains(t, c, "dashboard:stats:2024-06-15")
}

func TestStats_RepoError(t *testing.T) {
	repo := &stubRepo{err: errors.New("connection refused")}
	c := memCache{}
	_, err := newTestService(repo, c).Stats(context.Background())
	assert.Error(t, err)
	assert.Empty(t, c)
}

func TestRevenue_Month(t *testing.T) {
	svc := newTestService(&stubRepo{revenue: sampleRevenue()}, cache.Nop{})
	rev, err := svc.Revenue(context.Background(), PeriodMonth, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, PeriodMonth, rev.Period)
	assert.Equal(t, 180.5, rev.Total)
	assert.Equal(t, map[string]float64{"2024-06-01": 120, "2024-06-15": 60.5}, rev.ByDay)
}

func TestRevenue_DefaultWindow(t *testing.T) {
	svc := newTestService(&stubRepo{revenue: sampleRevenue()}, cache.Nop{})
	rev, err := svc.Revenue(context.Background(), "", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, PeriodLast30, rev.Period)
	assert.Equal(t, "2024-05-16", rev.Start.String())
	assert.Equal(t, 1180.5, rev.Total)
}

func TestRevenueHandler(t *testing.T) {
	e := echo.New()
	NewHandler(newTestService(&stubRepo{revenue: sampleRevenue()}, cache.Nop{})).RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/revenue?period=custom&start_date=2024-06-01&end_date=2024-07-01", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total float64            `json:"total"`
		ByDay map[string]float64 `json:"by_day"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 680.5, body.Total)
	assert.Len(t, body.ByDay, 3)
}
