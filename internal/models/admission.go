package models

import "time"

// AdmissionStatus represents the lifecycle of an admission record.
type AdmissionStatus string

// Possible admission statuses. Records are never hard-deleted; inactive and
// completed admissions are retained so historical trends stay accurate.
const (
	AdmissionStatusActive    AdmissionStatus = "active"
	AdmissionStatusPending   AdmissionStatus = "pending"
	AdmissionStatusInactive  AdmissionStatus = "inactive"
	AdmissionStatusCompleted AdmissionStatus = "completed"
)

// ClosedAdmissionStatuses groups the statuses counted as closed on the dashboard.
var ClosedAdmissionStatuses = []AdmissionStatus{AdmissionStatusInactive, AdmissionStatusCompleted}

// Admission captures a student's enrollment with status, fee and
// classification fields.
type Admission struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Class         string          `db:"class" json:"class"`
	Batch         string          `db:"batch" json:"batch"`
	Status        AdmissionStatus `db:"status" json:"status"`
	MonthlyFee    float64         `db:"monthly_fee" json:"monthly_fee"`
	AdmissionDate time.Time       `db:"admission_date" json:"admission_date"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AdmissionFilter provides filters for listing admissions.
type AdmissionFilter struct {
	Status    *AdmissionStatus
	Class     string
	Batch     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GroupCount is a single bucket of a grouped distribution.
type GroupCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// RevenueSummary aggregates monthly fees over active admissions.
type RevenueSummary struct {
	Total   float64 `db:"total"`
	Average float64 `db:"average"`
}

// MonthlyAdmissionStat is one calendar month of admission volume and revenue.
type MonthlyAdmissionStat struct {
	Year    int     `db:"year"`
	Month   int     `db:"month"`
	Count   int     `db:"count"`
	Revenue float64 `db:"revenue"`
}

// RecentAdmission is the bounded projection shown on the dashboard.
type RecentAdmission struct {
	Name          string          `db:"name" json:"name"`
	Class         string          `db:"class" json:"class"`
	Batch         string          `db:"batch" json:"batch"`
	AdmissionDate time.Time       `db:"admission_date" json:"admission_date"`
	Status        AdmissionStatus `db:"status" json:"status"`
}
