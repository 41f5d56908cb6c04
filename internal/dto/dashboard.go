package dto

import "github.com/schoolhub-dev/schoolhub-api/internal/models"

// DashboardOverviewResponse is the composite dashboard report. It is computed
// fresh on every request and never persisted.
type DashboardOverviewResponse struct {
	Overview         OverviewSection          `json:"overview"`
	Revenue          RevenueSection           `json:"revenue"`
	Distributions    DistributionSection      `json:"distributions"`
	RecentAdmissions []models.RecentAdmission `json:"recentAdmissions"`
	MonthlyTrend     []MonthlyTrendPoint      `json:"monthlyTrend"`
}

// OverviewSection carries headline counts and month-over-month growth.
type OverviewSection struct {
	ActiveStudents      int     `json:"activeStudents"`
	NewThisMonth        int     `json:"newThisMonth"`
	StudentGrowth       float64 `json:"studentGrowth"`
	AdmissionsThisMonth int     `json:"admissionsThisMonth"`
	AdmissionGrowth     float64 `json:"admissionGrowth"`
	StaffCount          int     `json:"staffCount"`
	PendingAdmissions   int     `json:"pendingAdmissions"`
	ClosedAdmissions    int     `json:"closedAdmissions"`
}

// RevenueSection summarises monthly fee income over active admissions.
// Figures are rounded to the nearest whole unit.
type RevenueSection struct {
	MonthlyTotal   int64 `json:"monthlyTotal"`
	AveragePerHead int64 `json:"averagePerHead"`
}

// DistributionSection groups active admissions by categorical fields.
// Buckets are sorted ascending by key.
type DistributionSection struct {
	ByClass []models.GroupCount `json:"byClass"`
	ByBatch []models.GroupCount `json:"byBatch"`
}

// MonthlyTrendPoint is one calendar month in the fixed-length trend series.
// Months with no admissions are zero-filled rather than omitted so the series
// can be charted directly.
type MonthlyTrendPoint struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"`
	Count   int   `json:"count"`
	Revenue int64 `json:"revenue"`
}

// QuickStatsResponse is the reduced dashboard variant.
type QuickStatsResponse struct {
	ActiveAdmissions  int `json:"activeAdmissions"`
	PendingAdmissions int `json:"pendingAdmissions"`
	StaffCount        int `json:"staffCount"`
}
