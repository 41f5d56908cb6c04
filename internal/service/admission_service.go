package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
	"github.com/schoolhub-dev/schoolhub-api/pkg/export"
)

type admissionRepository interface {
	Create(ctx context.Context, admission *models.Admission) error
	FindByID(ctx context.Context, id string) (*models.Admission, error)
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
	UpdateStatus(ctx context.Context, id string, status models.AdmissionStatus) error
}

type admissionAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateAdmissionRequest represents intake payload for new admissions.
type CreateAdmissionRequest struct {
	Name          string     `json:"name" validate:"required"`
	Class         string     `json:"class" validate:"required"`
	Batch         string     `json:"batch" validate:"required"`
	MonthlyFee    float64    `json:"monthly_fee" validate:"gte=0"`
	AdmissionDate *time.Time `json:"admission_date"`
}

// UpdateAdmissionStatusRequest transitions an admission between statuses.
type UpdateAdmissionStatusRequest struct {
	Status models.AdmissionStatus `json:"status" validate:"required,oneof=active pending inactive completed"`
}

// ExportFormat identifies a supported admission export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult bundles rendered bytes with HTTP metadata.
type ExportResult struct {
	ContentType string
	Filename    string
	Payload     []byte
}

// AdmissionService handles admission intake and lifecycle workflows.
type AdmissionService struct {
	repo      admissionRepository
	auditor   admissionAuditor
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	now       func() time.Time
}

// NewAdmissionService creates an instance of AdmissionService.
func NewAdmissionService(repo admissionRepository, auditor admissionAuditor, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{
		repo:      repo,
		auditor:   auditor,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		now:       time.Now,
	}
}

// Create registers a new admission. New intakes start pending until reviewed.
func (s *AdmissionService) Create(ctx context.Context, req CreateAdmissionRequest, actorID string) (*models.Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}

	admission := &models.Admission{
		Name:       req.Name,
		Class:      req.Class,
		Batch:      req.Batch,
		Status:     models.AdmissionStatusPending,
		MonthlyFee: req.MonthlyFee,
	}
	if req.AdmissionDate != nil {
		admission.AdmissionDate = req.AdmissionDate.UTC()
	} else {
		admission.AdmissionDate = s.now().UTC()
	}

	if err := s.repo.Create(ctx, admission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission")
	}

	s.audit(ctx, actorID, models.AuditActionAdmissionCreate, admission.ID)
	s.invalidateDashboard(ctx)
	return admission, nil
}

// Get returns an admission by ID.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Admission, error) {
	admission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return admission, nil
}

// List returns paginated admissions and pagination metadata.
func (s *AdmissionService) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	admissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return admissions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateStatus transitions an admission to a new status. Records are never
// deleted, so closing an admission is also a status change.
func (s *AdmissionService) UpdateStatus(ctx context.Context, id string, req UpdateAdmissionStatusRequest, actorID string) (*models.Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission status")
	}

	s.audit(ctx, actorID, models.AuditActionAdmissionUpdate, id)
	s.invalidateDashboard(ctx)
	return s.Get(ctx, id)
}

// Export renders the filtered admission list as CSV or PDF.
func (s *AdmissionService) Export(ctx context.Context, filter models.AdmissionFilter, format ExportFormat) (*ExportResult, error) {
	// Export ignores pagination; the full filtered set is rendered.
	filter.Page = 1
	filter.PageSize = 100

	var all []models.Admission
	for {
		batch, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admissions for export")
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Name", "Class", "Batch", "Status", "Monthly Fee", "Admission Date"},
	}
	for _, admission := range all {
		dataset.Rows = append(dataset.Rows, []string{
			admission.Name,
			admission.Class,
			admission.Batch,
			string(admission.Status),
			strconv.FormatFloat(admission.MonthlyFee, 'f', 2, 64),
			admission.AdmissionDate.Format("2006-01-02"),
		})
	}

	stamp := s.now().UTC().Format("20060102")
	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("admissions-%s.csv", stamp),
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Admissions")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("admissions-%s.pdf", stamp),
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// invalidateDashboard drops cached dashboard payloads after a write so the
// next overview request recomputes against current data.
func (s *AdmissionService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *AdmissionService) audit(ctx context.Context, actorID, action, resourceID string) {
	if s.auditor == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "admissions",
		ResourceID: &resourceID,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record admission audit log", zap.String("action", action), zap.Error(err))
	}
}
