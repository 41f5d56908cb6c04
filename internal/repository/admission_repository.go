package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolhub-dev/schoolhub-api/internal/models"
)

// AdmissionRepository handles persistence of admission records.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository creates a new instance of AdmissionRepository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// Create inserts a new admission record.
func (r *AdmissionRepository) Create(ctx context.Context, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if admission.CreatedAt.IsZero() {
		admission.CreatedAt = now
	}
	admission.UpdatedAt = now
	if admission.AdmissionDate.IsZero() {
		admission.AdmissionDate = now
	}

	const query = `INSERT INTO admissions (id, name, class, batch, status, monthly_fee, admission_date, created_at, updated_at) VALUES (:id, :name, :class, :batch, :status, :monthly_fee, :admission_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("create admission: %w", err)
	}
	return nil
}

// FindByID returns an admission by identifier.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	const query = `SELECT id, name, class, batch, status, monthly_fee, admission_date, created_at, updated_at FROM admissions WHERE id = $1 LIMIT 1`
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admission by id: %w", err)
	}
	return &admission, nil
}

// List returns admissions based on filters with total count.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	baseQuery := `FROM admissions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":           true,
		"class":          true,
		"batch":          true,
		"admission_date": true,
		"created_at":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "admission_date"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, class, batch, status, monthly_fee, admission_date, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var admissions []models.Admission
	if err := r.db.SelectContext(ctx, &admissions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}

	return admissions, total, nil
}

// UpdateStatus changes the status of an admission. Admissions are never
// deleted; status transitions are the only mutation after intake.
func (r *AdmissionRepository) UpdateStatus(ctx context.Context, id string, status models.AdmissionStatus) error {
	const query = `UPDATE admissions SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update admission status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatuses counts admissions whose status is in the provided set.
func (r *AdmissionRepository) CountByStatuses(ctx context.Context, statuses ...models.AdmissionStatus) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM admissions WHERE status IN (?)`, statuses)
	if err != nil {
		return 0, fmt.Errorf("build status count query: %w", err)
	}
	query = r.db.Rebind(query)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count admissions by status: %w", err)
	}
	return count, nil
}

// CountActiveAdmittedBetween counts active admissions admitted inside the
// window. A nil bound leaves that side of the window open.
func (r *AdmissionRepository) CountActiveAdmittedBetween(ctx context.Context, from, to *time.Time) (int, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COUNT(*) FROM admissions WHERE status = $1`)
	args := []interface{}{models.AdmissionStatusActive}
	if from != nil {
		args = append(args, *from)
		builder.WriteString(fmt.Sprintf(" AND admission_date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		builder.WriteString(fmt.Sprintf(" AND admission_date <= $%d", len(args)))
	}

	var count int
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count active admissions in window: %w", err)
	}
	return count, nil
}

// CountAdmittedBetween counts admissions of any status admitted inside the window.
func (r *AdmissionRepository) CountAdmittedBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM admissions WHERE admission_date >= $1 AND admission_date <= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, fmt.Errorf("count admissions in window: %w", err)
	}
	return count, nil
}

// ActiveRevenue sums and averages monthly fees over active admissions.
func (r *AdmissionRepository) ActiveRevenue(ctx context.Context) (*models.RevenueSummary, error) {
	const query = `SELECT COALESCE(SUM(monthly_fee), 0) AS total, COALESCE(AVG(monthly_fee), 0) AS average FROM admissions WHERE status = $1`
	var summary models.RevenueSummary
	if err := r.db.GetContext(ctx, &summary, query, models.AdmissionStatusActive); err != nil {
		return nil, fmt.Errorf("aggregate active revenue: %w", err)
	}
	return &summary, nil
}

// DistributionByClass groups active admissions by class, ascending by key.
func (r *AdmissionRepository) DistributionByClass(ctx context.Context) ([]models.GroupCount, error) {
	const query = `SELECT class AS key, COUNT(*) AS count FROM admissions WHERE status = $1 GROUP BY class ORDER BY class ASC`
	var groups []models.GroupCount
	if err := r.db.SelectContext(ctx, &groups, query, models.AdmissionStatusActive); err != nil {
		return nil, fmt.Errorf("group admissions by class: %w", err)
	}
	return groups, nil
}

// DistributionByBatch groups active admissions by batch, ascending by key.
func (r *AdmissionRepository) DistributionByBatch(ctx context.Context) ([]models.GroupCount, error) {
	const query = `SELECT batch AS key, COUNT(*) AS count FROM admissions WHERE status = $1 GROUP BY batch ORDER BY batch ASC`
	var groups []models.GroupCount
	if err := r.db.SelectContext(ctx, &groups, query, models.AdmissionStatusActive); err != nil {
		return nil, fmt.Errorf("group admissions by batch: %w", err)
	}
	return groups, nil
}

// Recent returns the most recently admitted records, newest first, projected
// to the fields shown on the dashboard.
func (r *AdmissionRepository) Recent(ctx context.Context, limit int) ([]models.RecentAdmission, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT name, class, batch, admission_date, status FROM admissions ORDER BY admission_date DESC LIMIT $1`
	var recent []models.RecentAdmission
	if err := r.db.SelectContext(ctx, &recent, query, limit); err != nil {
		return nil, fmt.Errorf("list recent admissions: %w", err)
	}
	return recent, nil
}

// MonthlyStats aggregates admission counts and fee totals per calendar month
// starting at from. Months without admissions are absent from the result; the
// service layer zero-fills the series.
func (r *AdmissionRepository) MonthlyStats(ctx context.Context, from time.Time) ([]models.MonthlyAdmissionStat, error) {
	const query = `SELECT EXTRACT(YEAR FROM admission_date)::INT AS year, EXTRACT(MONTH FROM admission_date)::INT AS month, COUNT(*) AS count, COALESCE(SUM(monthly_fee), 0) AS revenue FROM admissions WHERE admission_date >= $1 GROUP BY year, month ORDER BY year ASC, month ASC`
	var stats []models.MonthlyAdmissionStat
	if err := r.db.SelectContext(ctx, &stats, query, from); err != nil {
		return nil, fmt.Errorf("aggregate monthly admission stats: %w", err)
	}
	return stats, nil
}
