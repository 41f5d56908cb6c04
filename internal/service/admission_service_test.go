package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
)

type mockAdmissionRepo struct {
	admissions map[string]*models.Admission
	listResult []models.Admission
	listTotal  int
	listCalls  int
	auditLogs  []*models.AuditLog
}

func (m *mockAdmissionRepo) Create(_ context.Context, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = "adm-1"
	}
	if m.admissions == nil {
		m.admissions = make(map[string]*models.Admission)
	}
	m.admissions[admission.ID] = admission
	return nil
}

func (m *mockAdmissionRepo) FindByID(_ context.Context, id string) (*models.Admission, error) {
	admission, ok := m.admissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return admission, nil
}

func (m *mockAdmissionRepo) List(_ context.Context, _ models.AdmissionFilter) ([]models.Admission, int, error) {
	m.listCalls++
	if m.listCalls > 1 {
		return nil, m.listTotal, nil
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockAdmissionRepo) UpdateStatus(_ context.Context, id string, status models.AdmissionStatus) error {
	admission, ok := m.admissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	admission.Status = status
	return nil
}

func (m *mockAdmissionRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestAdmissionServiceCreateDefaultsToPending(t *testing.T) {
	repo := &mockAdmissionRepo{}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	admission, err := svc.Create(context.Background(), CreateAdmissionRequest{
		Name:       "Asha",
		Class:      "10",
		Batch:      "2025",
		MonthlyFee: 1500,
	}, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusPending, admission.Status)
	assert.Equal(t, now, admission.AdmissionDate)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionAdmissionCreate, repo.auditLogs[0].Action)
}

func TestAdmissionServiceCreateValidation(t *testing.T) {
	repo := &mockAdmissionRepo{}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateAdmissionRequest{Name: "Asha"}, "actor-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.admissions)
}

func TestAdmissionServiceUpdateStatusNotFound(t *testing.T) {
	repo := &mockAdmissionRepo{}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "missing", UpdateAdmissionStatusRequest{Status: models.AdmissionStatusCompleted}, "actor-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAdmissionServiceUpdateStatusInvalidatesDashboardCache(t *testing.T) {
	repo := &mockAdmissionRepo{admissions: map[string]*models.Admission{
		"adm-1": {ID: "adm-1", Name: "Asha", Status: models.AdmissionStatusPending},
	}}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	require.NoError(t, cacheSvc.Set(context.Background(), "dash:overview", map[string]int{"cached": 1}, time.Minute))

	svc := NewAdmissionService(repo, repo, cacheSvc, validator.New(), zap.NewNop())

	updated, err := svc.UpdateStatus(context.Background(), "adm-1", UpdateAdmissionStatusRequest{Status: models.AdmissionStatusActive}, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusActive, updated.Status)

	var cached map[string]int
	hit, err := cacheSvc.Get(context.Background(), "dash:overview", &cached)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAdmissionServiceExportCSV(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	repo := &mockAdmissionRepo{
		listResult: []models.Admission{
			{Name: "Asha", Class: "10", Batch: "2025", Status: models.AdmissionStatusActive, MonthlyFee: 1500.5, AdmissionDate: now},
		},
		listTotal: 1,
	}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return now }

	result, err := svc.Export(context.Background(), models.AdmissionFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "admissions-20250615.csv", result.Filename)

	body := string(result.Payload)
	assert.True(t, strings.HasPrefix(body, "Name,Class,Batch,Status,Monthly Fee,Admission Date"))
	assert.Contains(t, body, "Asha,10,2025,active,1500.50,2025-06-15")
}

func TestAdmissionServiceExportPDF(t *testing.T) {
	repo := &mockAdmissionRepo{
		listResult: []models.Admission{
			{Name: "Asha", Class: "10", Batch: "2025", Status: models.AdmissionStatusActive, MonthlyFee: 1500, AdmissionDate: time.Now()},
		},
		listTotal: 1,
	}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())

	result, err := svc.Export(context.Background(), models.AdmissionFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Payload)
}

func TestAdmissionServiceExportUnsupportedFormat(t *testing.T) {
	repo := &mockAdmissionRepo{}
	svc := NewAdmissionService(repo, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.Export(context.Background(), models.AdmissionFilter{}, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
