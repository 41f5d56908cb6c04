package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schoolhub-dev/schoolhub-api/internal/dto"
	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
)

type dashboardAdmissionRepository interface {
	CountByStatuses(ctx context.Context, statuses ...models.AdmissionStatus) (int, error)
	CountActiveAdmittedBetween(ctx context.Context, from, to *time.Time) (int, error)
	CountAdmittedBetween(ctx context.Context, from, to time.Time) (int, error)
	ActiveRevenue(ctx context.Context) (*models.RevenueSummary, error)
	DistributionByClass(ctx context.Context) ([]models.GroupCount, error)
	DistributionByBatch(ctx context.Context) ([]models.GroupCount, error)
	Recent(ctx context.Context, limit int) ([]models.RecentAdmission, error)
	MonthlyStats(ctx context.Context, from time.Time) ([]models.MonthlyAdmissionStat, error)
}

type dashboardUserRepository interface {
	CountActiveByRoles(ctx context.Context, roles ...models.UserRole) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLimit int
	TrendMonths int
}

// DashboardService computes the aggregated dashboard report from admission
// and user records. It holds no state between calls; every report is derived
// fresh from the stores.
type DashboardService struct {
	admissions dashboardAdmissionRepository
	users      dashboardUserRepository
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Admissions dashboardAdmissionRepository
	Users      dashboardUserRepository
	Cache      *CacheService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.TrendMonths <= 0 {
		cfg.TrendMonths = 6
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		admissions: params.Admissions,
		users:      params.Users,
		cache:      params.Cache,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Overview assembles the full dashboard report. The caller identity is only
// checked for presence; it does not influence the computation. The second
// return value reports cache utilisation.
func (s *DashboardService) Overview(ctx context.Context, claims *models.JWTClaims) (*dto.DashboardOverviewResponse, bool, error) {
	if claims == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}

	const cacheKey = "dash:overview"
	if s.cache != nil {
		var cached dto.DashboardOverviewResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	startOfPrevMonth := startOfMonth.AddDate(0, -1, 0)
	endOfPrevMonth := startOfMonth.Add(-time.Nanosecond)
	trendStart := startOfMonth.AddDate(0, -(s.cfg.TrendMonths - 1), 0)

	var (
		totalActive, activeThisMonth, activePrevMonth int
		admittedThisMonth, admittedPrevMonth          int
		staffCount, pendingCount, closedCount         int
		revenue                                       *models.RevenueSummary
		byClass, byBatch                              []models.GroupCount
		recent                                        []models.RecentAdmission
		monthly                                       []models.MonthlyAdmissionStat
	)

	// The queries are independent reads, so they fan out concurrently and
	// join before assembly. The first failure cancels the rest; the report
	// is all-or-nothing.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totalActive, err = s.admissions.CountByStatuses(gctx, models.AdmissionStatusActive)
		return err
	})
	g.Go(func() (err error) {
		activeThisMonth, err = s.admissions.CountActiveAdmittedBetween(gctx, &startOfMonth, nil)
		return err
	})
	g.Go(func() (err error) {
		activePrevMonth, err = s.admissions.CountActiveAdmittedBetween(gctx, &startOfPrevMonth, &endOfPrevMonth)
		return err
	})
	g.Go(func() (err error) {
		admittedThisMonth, err = s.admissions.CountAdmittedBetween(gctx, startOfMonth, now)
		return err
	})
	g.Go(func() (err error) {
		admittedPrevMonth, err = s.admissions.CountAdmittedBetween(gctx, startOfPrevMonth, endOfPrevMonth)
		return err
	})
	g.Go(func() (err error) {
		staffCount, err = s.users.CountActiveByRoles(gctx, models.StaffRoles...)
		return err
	})
	g.Go(func() (err error) {
		pendingCount, err = s.admissions.CountByStatuses(gctx, models.AdmissionStatusPending)
		return err
	})
	g.Go(func() (err error) {
		closedCount, err = s.admissions.CountByStatuses(gctx, models.ClosedAdmissionStatuses...)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = s.admissions.ActiveRevenue(gctx)
		return err
	})
	g.Go(func() (err error) {
		byClass, err = s.admissions.DistributionByClass(gctx)
		return err
	})
	g.Go(func() (err error) {
		byBatch, err = s.admissions.DistributionByBatch(gctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.admissions.Recent(gctx, s.cfg.RecentLimit)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.admissions.MonthlyStats(gctx, trendStart)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrAggregation.Code, appErrors.ErrAggregation.Status, appErrors.ErrAggregation.Message)
	}

	report := &dto.DashboardOverviewResponse{
		Overview: dto.OverviewSection{
			ActiveStudents:      totalActive,
			NewThisMonth:        activeThisMonth,
			StudentGrowth:       growthRate(activeThisMonth, activePrevMonth),
			AdmissionsThisMonth: admittedThisMonth,
			AdmissionGrowth:     growthRate(admittedThisMonth, admittedPrevMonth),
			StaffCount:          staffCount,
			PendingAdmissions:   pendingCount,
			ClosedAdmissions:    closedCount,
		},
		Revenue: dto.RevenueSection{
			MonthlyTotal:   roundMoney(revenue.Total),
			AveragePerHead: roundMoney(revenue.Average),
		},
		Distributions: dto.DistributionSection{
			ByClass: byClass,
			ByBatch: byBatch,
		},
		RecentAdmissions: recent,
		MonthlyTrend:     s.buildTrend(trendStart, monthly),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return report, false, nil
}

// QuickStats returns the reduced dashboard variant: active admissions,
// pending admissions and staff count.
func (s *DashboardService) QuickStats(ctx context.Context, claims *models.JWTClaims) (*dto.QuickStatsResponse, bool, error) {
	if claims == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}

	const cacheKey = "dash:quick-stats"
	if s.cache != nil {
		var cached dto.QuickStatsResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	var active, pending, staff int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = s.admissions.CountByStatuses(gctx, models.AdmissionStatusActive)
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.admissions.CountByStatuses(gctx, models.AdmissionStatusPending)
		return err
	})
	g.Go(func() (err error) {
		staff, err = s.users.CountActiveByRoles(gctx, models.StaffRoles...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrAggregation.Code, appErrors.ErrAggregation.Status, appErrors.ErrAggregation.Message)
	}

	stats := &dto.QuickStatsResponse{
		ActiveAdmissions:  active,
		PendingAdmissions: pending,
		StaffCount:        staff,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return stats, false, nil
}

// buildTrend converts sparse monthly stats into a fixed-length, gap-free
// series from oldest to newest, ending with the current month.
func (s *DashboardService) buildTrend(start time.Time, stats []models.MonthlyAdmissionStat) []dto.MonthlyTrendPoint {
	type monthKey struct {
		year  int
		month int
	}
	byMonth := make(map[monthKey]models.MonthlyAdmissionStat, len(stats))
	for _, stat := range stats {
		byMonth[monthKey{stat.Year, stat.Month}] = stat
	}

	trend := make([]dto.MonthlyTrendPoint, 0, s.cfg.TrendMonths)
	cursor := start
	for i := 0; i < s.cfg.TrendMonths; i++ {
		point := dto.MonthlyTrendPoint{
			Year:  cursor.Year(),
			Month: int(cursor.Month()),
		}
		if stat, ok := byMonth[monthKey{point.Year, point.Month}]; ok {
			point.Count = stat.Count
			point.Revenue = roundMoney(stat.Revenue)
		}
		trend = append(trend, point)
		cursor = cursor.AddDate(0, 1, 0)
	}
	return trend
}

// growthRate computes the month-over-month percentage change rounded to one
// decimal. Zero over zero is flat; anything over zero counts as full growth.
func growthRate(current, previous int) float64 {
	switch {
	case previous == 0 && current == 0:
		return 0
	case previous == 0:
		return 100
	default:
		rate := (float64(current-previous) / float64(previous)) * 100
		return math.Round(rate*10) / 10
	}
}

func roundMoney(v float64) int64 {
	return int64(math.Round(v))
}
