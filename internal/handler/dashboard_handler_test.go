package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/schoolhub-dev/schoolhub-api/internal/dto"
	"github.com/schoolhub-dev/schoolhub-api/internal/middleware"
	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
)

type fakeDashboardSrv struct {
	overviewResp *dto.DashboardOverviewResponse
	overviewHit  bool
	statsResp    *dto.QuickStatsResponse
	statsHit     bool
}

func (f *fakeDashboardSrv) Overview(_ context.Context, claims *models.JWTClaims) (*dto.DashboardOverviewResponse, bool, error) {
	if claims == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}
	return f.overviewResp, f.overviewHit, nil
}

func (f *fakeDashboardSrv) QuickStats(_ context.Context, claims *models.JWTClaims) (*dto.QuickStatsResponse, bool, error) {
	if claims == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}
	return f.statsResp, f.statsHit, nil
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}

func TestDashboardHandlerOverviewSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		overviewResp: &dto.DashboardOverviewResponse{
			Overview: dto.OverviewSection{ActiveStudents: 42},
		},
		overviewHit: true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.NotNil(t, envelope.Meta["processing_time_ms"])
	overview := envelope.Data["overview"].(map[string]interface{})
	assert.Equal(t, float64(42), overview["activeStudents"])
}

func TestDashboardHandlerOverviewUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, envelope.Error["code"])
}

func TestDashboardHandlerQuickStatsSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		statsResp: &dto.QuickStatsResponse{ActiveAdmissions: 80, PendingAdmissions: 5, StaffCount: 11},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/quick-stats", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher})

	handler.QuickStats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(80), envelope.Data["activeAdmissions"])
	assert.Equal(t, float64(5), envelope.Data["pendingAdmissions"])
	assert.Equal(t, float64(11), envelope.Data["staffCount"])
}

func TestDashboardHandlerQuickStatsUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/quick-stats", nil)

	handler.QuickStats(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
