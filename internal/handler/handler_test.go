package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/middleware"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/service"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage    `json:"data"`
	Message    string             `json:"message"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type fakeEnrollmentSrv struct {
	created   []dto.CreateEnrollmentRequest
	createErr error
	deleteErr error
	lastList  models.EnrollmentFilter
}

func (f *fakeEnrollmentSrv) List(_ context.Context, filter models.EnrollmentFilter) ([]dto.EnrollmentView, *models.Pagination, error) {
	f.lastList = filter
	return []dto.EnrollmentView{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeEnrollmentSrv) Get(_ context.Context, id string) (*dto.EnrollmentView, error) {
	return &dto.EnrollmentView{ID: id}, nil
}

func (f *fakeEnrollmentSrv) ListForClient(_ context.Context, clientID string) ([]dto.EnrollmentView, error) {
	return []dto.EnrollmentView{}, nil
}

func (f *fakeEnrollmentSrv) Create(_ context.Context, req dto.CreateEnrollmentRequest) (*dto.EnrollmentView, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &dto.EnrollmentView{
		ID:      "e-1",
		Status:  models.EnrollmentStatusActive,
		Program: dto.ProgramSummary{ID: req.ProgramID, Name: "Diabetes Care"},
		Client:  dto.ClientSummary{ID: req.ClientID, FirstName: "Jane"},
	}, nil
}

func (f *fakeEnrollmentSrv) Update(_ context.Context, id string, req dto.UpdateEnrollmentRequest) (*dto.EnrollmentView, error) {
	return &dto.EnrollmentView{ID: id}, nil
}

func (f *fakeEnrollmentSrv) Delete(_ context.Context, id string) error {
	return f.deleteErr
}

type fakeProgramSrv struct{ created int }

func (f *fakeProgramSrv) List(context.Context, models.ProgramFilter) ([]models.HealthProgram, *models.Pagination, error) {
	return nil, models.NewPagination(1, 20, 0), nil
}

func (f *fakeProgramSrv) Get(_ context.Context, id string) (*models.HealthProgram, error) {
	return &models.HealthProgram{ID: id}, nil
}

func (f *fakeProgramSrv) Create(_ context.Context, req dto.CreateProgramRequest) (*models.HealthProgram, error) {
	f.created++
	return &models.HealthProgram{ID: "p-1", Name: req.Name}, nil
}

func (f *fakeProgramSrv) Update(_ context.Context, id string, req dto.UpdateProgramRequest) (*models.HealthProgram, error) {
	return &models.HealthProgram{ID: id}, nil
}

func (f *fakeProgramSrv) Delete(context.Context, string) error { return nil }

type fakeClientSrv struct{ deleted string }

func (f *fakeClientSrv) List(context.Context, models.ClientFilter) ([]models.Client, *models.Pagination, error) {
	return []models.Client{}, models.NewPagination(1, 20, 0), nil
}

func (f *fakeClientSrv) Search(_ context.Context, q string) ([]models.Client, error) {
	if q == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query parameter 'q' is required")
	}
	return []models.Client{{ID: "c-1", FirstName: q}}, nil
}

func (f *fakeClientSrv) Get(_ context.Context, id string) (*dto.ClientProfile, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
}

func (f *fakeClientSrv) Create(_ context.Context, req dto.CreateClientRequest) (*models.Client, error) {
	return &models.Client{ID: "c-1", FirstName: req.FirstName}, nil
}

func (f *fakeClientSrv) Update(_ context.Context, id string, req dto.UpdateClientRequest) (*models.Client, error) {
	return &models.Client{ID: id}, nil
}

func (f *fakeClientSrv) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

type fakeAnalyticsSrv struct{}

func (fakeAnalyticsSrv) Dashboard(context.Context) (*dto.DashboardStats, error) {
	return &dto.DashboardStats{TotalClients: 2}, nil
}

type fakeAuditSrv struct {
	lastFilter models.AuditLogFilter
}

func (f *fakeAuditSrv) List(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.AuditLog{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeAuditSrv) Export(_ context.Context, filter models.AuditLogFilter, format string) (*service.AuditExport, error) {
	f.lastFilter = filter
	return &service.AuditExport{Filename: "audit-logs." + format, ContentType: "text/csv", Data: []byte("Timestamp\n")}, nil
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return &models.AuthResponse{Token: "t", User: models.UserInfo{Email: req.Email, Role: models.RoleStaff}}, nil
}

func (fakeAuthSrv) Login(context.Context, models.LoginRequest) (*models.AuthResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
}

func (fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

type testAPI struct {
	router      *gin.Engine
	enrollments *fakeEnrollmentSrv
	programs    *fakeProgramSrv
	clients     *fakeClientSrv
	audit       *fakeAuditSrv
}

// newTestAPI mounts every route. The role header stands in for a verified token.
func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		router:      gin.New(),
		enrollments: &fakeEnrollmentSrv{},
		programs:    &fakeProgramSrv{},
		clients:     &fakeClientSrv{},
		audit:       &fakeAuditSrv{},
	}
	authenticate := func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.UserRole(role)})
	}
	RegisterRoutes(api.router, "/api", Handlers{
		Auth:        NewAuthHandler(fakeAuthSrv{}),
		Clients:     NewClientHandler(api.clients, api.enrollments),
		Programs:    NewProgramHandler(api.programs),
		Enrollments: NewEnrollmentHandler(api.enrollments),
		Analytics:   NewAnalyticsHandler(fakeAnalyticsSrv{}),
		Audit:       NewAuditHandler(api.audit),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), nil),
	}, RouteGuards{
		Authenticate: authenticate,
		AdminOnly:    middleware.RequireRoles(models.RoleAdmin),
	})
	return api
}

func (a *testAPI) do(method, path, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			_ = json.NewEncoder(&buf).Encode(v)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodPost, "/api/enrollments", "STAFF", map[string]string{
		"clientId":  "7d1c7b9e-2a43-4d4b-9f1a-5b6f0c1e2d3a",
		"programId": "0b8e0f4c-1f6f-4a36-8f0e-6f1b8f3a9c21",
		"startDate": "2024-05-01",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var view dto.EnrollmentView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.Equal(t, "e-1", view.ID)
	assert.Equal(t, "Diabetes Care", view.Program.Name)
	require.Len(t, api.enrollments.created, 1)
	require.NotNil(t, api.enrollments.created[0].StartDate)
	assert.Equal(t, "2024-05-01", api.enrollments.created[0].StartDate.Format("2006-01-02"))
}

func TestEnrollmentHandlerCreateDuplicate(t *testing.T) {
	api := newTestAPI()
	api.enrollments.createErr = appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")

	rec := api.do(http.MethodPost, "/api/enrollments", "STAFF", map[string]string{"clientId": "a", "programId": "b"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_ENROLLMENT", decode(t, rec).Error.Code)
}

func TestEnrollmentHandlerCreateMalformedJSON(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodPost, "/api/enrollments", "STAFF", `{"clientId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)

	rec = api.do(http.MethodPost, "/api/enrollments", "STAFF", `{"clientId":"a","programId":"b","startDate":"01/05/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerDelete(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodDelete, "/api/enrollments/e-1", "STAFF", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enrollment deleted successfully", decode(t, rec).Message)

	api.enrollments.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	rec = api.do(http.MethodDelete, "/api/enrollments/e-1", "STAFF", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollmentHandlerListFilters(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodGet, "/api/enrollments?status=Completed&programId=p-1&page=2&limit=5", "STAFF", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.EnrollmentStatusCompleted, api.enrollments.lastList.Status)
	assert.Equal(t, "p-1", api.enrollments.lastList.ProgramID)
	assert.Equal(t, 2, api.enrollments.lastList.Page)
	assert.Equal(t, 5, decode(t, rec).Pagination.PageSize)
}

func TestProgramMutationsRequireAdmin(t *testing.T) {
	api := newTestAPI()
	payload := map[string]interface{}{"name": "Physio", "description": "rehab"}

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/health-programs", "", payload).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/health-programs", "STAFF", payload).Code)
	assert.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/health-programs", "ADMIN", payload).Code)
	assert.Equal(t, 1, api.programs.created)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/health-programs", "STAFF", nil).Code)
}

func TestClientRoutes(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/api/clients/search?q=jane", "STAFF", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/clients/search", "STAFF", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/clients/c-9", "STAFF", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/clients/c-9/enrollments", "STAFF", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(decode(t, rec).Data))

	rec = api.do(http.MethodDelete, "/api/clients/c-9", "STAFF", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-9", api.clients.deleted)
}

func TestAuditRoutes(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/api/audit-logs?entityType=enrollment&startDate=2024-03-01", "STAFF", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AuditEntityEnrollment, api.audit.lastFilter.EntityType)
	require.NotNil(t, api.audit.lastFilter.StartDate)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/audit-logs?entityType=patient", "STAFF", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/audit-logs?endDate=yesterday", "STAFF", nil).Code)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/audit-logs/export", "STAFF", nil).Code)
	rec = api.do(http.MethodGet, "/api/audit-logs/export?format=csv", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit-logs.csv")
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nurse@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nurse@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/auth/me", "STAFF", nil).Code)
}

func TestOperationalRoutes(t *testing.T) {
	api := newTestAPI()

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/analytics/dashboard", "STAFF", nil).Code)
}
