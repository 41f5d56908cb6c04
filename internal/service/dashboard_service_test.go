package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
)

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

// fakeDashboardStore satisfies both dashboard repository interfaces and counts
// every query so tests can assert that rejected requests touch no data.
type fakeDashboardStore struct {
	mu    sync.Mutex
	calls int

	now time.Time

	activeTotal       int
	activeThisMonth   int
	activePrevMonth   int
	admittedThisMonth int
	admittedPrevMonth int
	pending           int
	closed            int
	staff             int
	revenue           models.RevenueSummary
	byClass           []models.GroupCount
	byBatch           []models.GroupCount
	recent            []models.RecentAdmission
	monthly           []models.MonthlyAdmissionStat

	err error
}

func (f *fakeDashboardStore) record() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeDashboardStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDashboardStore) CountByStatuses(_ context.Context, statuses ...models.AdmissionStatus) (int, error) {
	f.record()
	if f.err != nil {
		return 0, f.err
	}
	if len(statuses) == 1 {
		switch statuses[0] {
		case models.AdmissionStatusActive:
			return f.activeTotal, nil
		case models.AdmissionStatusPending:
			return f.pending, nil
		}
	}
	return f.closed, nil
}

func (f *fakeDashboardStore) CountActiveAdmittedBetween(_ context.Context, from, _ *time.Time) (int, error) {
	f.record()
	if f.err != nil {
		return 0, f.err
	}
	if from != nil && from.Month() == f.now.Month() && from.Year() == f.now.Year() {
		return f.activeThisMonth, nil
	}
	return f.activePrevMonth, nil
}

func (f *fakeDashboardStore) CountAdmittedBetween(_ context.Context, from, _ time.Time) (int, error) {
	f.record()
	if f.err != nil {
		return 0, f.err
	}
	if from.Month() == f.now.Month() && from.Year() == f.now.Year() {
		return f.admittedThisMonth, nil
	}
	return f.admittedPrevMonth, nil
}

func (f *fakeDashboardStore) ActiveRevenue(_ context.Context) (*models.RevenueSummary, error) {
	f.record()
	if f.err != nil {
		return nil, f.err
	}
	revenue := f.revenue
	return &revenue, nil
}

func (f *fakeDashboardStore) DistributionByClass(_ context.Context) ([]models.GroupCount, error) {
	f.record()
	return f.byClass, f.err
}

func (f *fakeDashboardStore) DistributionByBatch(_ context.Context) ([]models.GroupCount, error) {
	f.record()
	return f.byBatch, f.err
}

func (f *fakeDashboardStore) Recent(_ context.Context, limit int) ([]models.RecentAdmission, error) {
	f.record()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeDashboardStore) MonthlyStats(_ context.Context, _ time.Time) ([]models.MonthlyAdmissionStat, error) {
	f.record()
	return f.monthly, f.err
}

func (f *fakeDashboardStore) CountActiveByRoles(_ context.Context, _ ...models.UserRole) (int, error) {
	f.record()
	return f.staff, f.err
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
}

func TestDashboardOverview_ComposesReport(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	store := &fakeDashboardStore{
		now:               now,
		activeTotal:       120,
		activeThisMonth:   15,
		activePrevMonth:   10,
		admittedThisMonth: 7,
		admittedPrevMonth: 0,
		pending:           4,
		closed:            9,
		staff:             12,
		revenue:           models.RevenueSummary{Total: 12345.5, Average: 514.4},
		byClass: []models.GroupCount{
			{Key: "10", Count: 40},
			{Key: "11", Count: 40},
			{Key: "12", Count: 40},
		},
		byBatch: []models.GroupCount{
			{Key: "2024", Count: 60},
			{Key: "2025", Count: 60},
		},
		recent: []models.RecentAdmission{
			{Name: "Asha", Class: "10", Batch: "2025", AdmissionDate: now},
			{Name: "Bilal", Class: "11", Batch: "2025", AdmissionDate: now.AddDate(0, 0, -1)},
			{Name: "Citra", Class: "12", Batch: "2024", AdmissionDate: now.AddDate(0, 0, -2)},
		},
		monthly: []models.MonthlyAdmissionStat{
			{Year: 2025, Month: 2, Count: 3, Revenue: 1500.4},
			{Year: 2025, Month: 5, Count: 2, Revenue: 999.6},
		},
	}

	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})
	svc.now = func() time.Time { return now }

	report, cacheHit, err := svc.Overview(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, cacheHit)

	assert.Equal(t, 120, report.Overview.ActiveStudents)
	assert.Equal(t, 15, report.Overview.NewThisMonth)
	assert.Equal(t, 50.0, report.Overview.StudentGrowth)
	assert.Equal(t, 7, report.Overview.AdmissionsThisMonth)
	assert.Equal(t, 100.0, report.Overview.AdmissionGrowth)
	assert.Equal(t, 12, report.Overview.StaffCount)
	assert.Equal(t, 4, report.Overview.PendingAdmissions)
	assert.Equal(t, 9, report.Overview.ClosedAdmissions)

	assert.Equal(t, int64(12346), report.Revenue.MonthlyTotal)
	assert.Equal(t, int64(514), report.Revenue.AveragePerHead)

	assert.Len(t, report.Distributions.ByClass, 3)
	assert.Len(t, report.Distributions.ByBatch, 2)
	assert.Len(t, report.RecentAdmissions, 3)

	require.Len(t, report.MonthlyTrend, 6)
	assert.Equal(t, 2025, report.MonthlyTrend[0].Year)
	assert.Equal(t, 1, report.MonthlyTrend[0].Month)
	assert.Equal(t, 0, report.MonthlyTrend[0].Count)
	assert.Equal(t, 3, report.MonthlyTrend[1].Count)
	assert.Equal(t, int64(1500), report.MonthlyTrend[1].Revenue)
	assert.Equal(t, 0, report.MonthlyTrend[2].Count)
	assert.Equal(t, 2, report.MonthlyTrend[4].Count)
	assert.Equal(t, int64(1000), report.MonthlyTrend[4].Revenue)
	assert.Equal(t, 6, report.MonthlyTrend[5].Month)
	assert.Equal(t, 0, report.MonthlyTrend[5].Count)
}

func TestDashboardOverview_Idempotent(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	store := &fakeDashboardStore{now: now, activeTotal: 10, staff: 2}

	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})
	svc.now = func() time.Time { return now }

	first, _, err := svc.Overview(context.Background(), adminClaims())
	require.NoError(t, err)
	second, _, err := svc.Overview(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDashboardOverview_CacheRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	store := &fakeDashboardStore{now: now, activeTotal: 10, staff: 2}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)

	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Cache:      cacheSvc,
		Logger:     zap.NewNop(),
	})
	svc.now = func() time.Time { return now }

	first, hit, err := svc.Overview(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, hit)
	queriesAfterFirst := store.callCount()

	cached, hit, err := svc.Overview(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, cached)
	assert.Equal(t, queriesAfterFirst, store.callCount())
}

func TestDashboardOverview_Unauthenticated(t *testing.T) {
	store := &fakeDashboardStore{now: time.Now()}
	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})

	_, _, err := svc.Overview(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.callCount())
}

func TestDashboardOverview_AggregationFailure(t *testing.T) {
	store := &fakeDashboardStore{now: time.Now(), err: assert.AnError}
	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})

	_, _, err := svc.Overview(context.Background(), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAggregation.Code, appErrors.FromError(err).Code)
}

func TestDashboardQuickStats(t *testing.T) {
	store := &fakeDashboardStore{now: time.Now(), activeTotal: 80, pending: 5, staff: 11}
	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})

	stats, hit, err := svc.QuickStats(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 80, stats.ActiveAdmissions)
	assert.Equal(t, 5, stats.PendingAdmissions)
	assert.Equal(t, 11, stats.StaffCount)
}

func TestDashboardQuickStats_Unauthenticated(t *testing.T) {
	store := &fakeDashboardStore{now: time.Now()}
	svc := NewDashboardService(DashboardServiceParams{
		Admissions: store,
		Users:      store,
		Logger:     zap.NewNop(),
	})

	_, _, err := svc.QuickStats(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.callCount())
}

func TestGrowthRate(t *testing.T) {
	cases := []struct {
		name     string
		current  int
		previous int
		want     float64
	}{
		{"both zero", 0, 0, 0},
		{"from zero", 7, 0, 100},
		{"increase", 15, 10, 50},
		{"decrease", 10, 15, -33.3},
		{"sharp drop", 1, 3, -66.7},
		{"to zero", 0, 4, -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, growthRate(tc.current, tc.previous))
		})
	}
}

func TestBuildTrendZeroFills(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{Logger: zap.NewNop()})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	trend := svc.buildTrend(start, nil)
	require.Len(t, trend, 6)
	for i, point := range trend {
		assert.Equal(t, 2025, point.Year)
		assert.Equal(t, i+1, point.Month)
		assert.Equal(t, 0, point.Count)
		assert.Equal(t, int64(0), point.Revenue)
	}
}

func TestBuildTrendCrossesYearBoundary(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{Logger: zap.NewNop()})
	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	trend := svc.buildTrend(start, []models.MonthlyAdmissionStat{
		{Year: 2024, Month: 12, Count: 4, Revenue: 800},
		{Year: 2025, Month: 1, Count: 1, Revenue: 200},
	})
	require.Len(t, trend, 6)
	assert.Equal(t, 2024, trend[0].Year)
	assert.Equal(t, 10, trend[0].Month)
	assert.Equal(t, 4, trend[2].Count)
	assert.Equal(t, 2025, trend[3].Year)
	assert.Equal(t, 1, trend[3].Month)
	assert.Equal(t, 1, trend[3].Count)
	assert.Equal(t, 2025, trend[5].Year)
	assert.Equal(t, 3, trend[5].Month)
}
