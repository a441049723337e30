package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/jobalerts/internal/api/handler"
	"github.com/timmy/jobalerts/internal/api/middleware"
	"github.com/timmy/jobalerts/internal/config"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/matching"
	"github.com/timmy/jobalerts/internal/repository"
	"github.com/timmy/jobalerts/internal/scheduler"
	"github.com/timmy/jobalerts/internal/service"
)

const testToken = "s3cret"

type stubCycle struct {
	err   error
	calls int
}

func (s *stubCycle) RunNow(ctx context.Context) (*service.CycleStats, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &service.CycleStats{CycleID: "c1", EmailsSent: 2}, nil
}

type testServer struct {
	engine   *gin.Engine
	cycle    *stubCycle
	accounts *repository.AccountRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	jobs := repository.NewJobRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	accounts := repository.NewAccountRepository(db)
	ledger := repository.NewDeliveryRepository(db)
	subSvc := service.NewSubscriptionService(accounts, subs, ledger, nil)
	expander := matching.NewExpander(matching.DefaultAreaGroups("uk"))
	alerts := service.NewAlertService(service.AlertDeps{
		Jobs:          jobs,
		Subscriptions: subs,
		Ledger:        ledger,
		Expander:      expander,
	}, service.AlertConfig{Region: "uk"})

	cycle := &stubCycle{}
	engine := SetupRouter(Handlers{
		Health:        handler.NewHealthHandler(nil),
		Jobs:          handler.NewJobHandler(jobs, service.NewStatsService(jobs, subs, ledger), expander),
		Subscriptions: handler.NewSubscriptionHandler(subSvc),
		Admin: handler.NewAdminHandler(handler.AdminDeps{
			Cycle:         cycle,
			Resender:      alerts,
			Jobs:          jobs,
			Subscriptions: subSvc,
		}),
	}, RouterConfig{
		Mode:       "test",
		AdminToken: testToken,
		CORS:       middleware.CORSConfig{AllowedOrigins: []string{"https://alerts.example.com"}},
	}, nil)

	return &testServer{engine: engine, cycle: cycle, accounts: accounts}
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func admin() map[string]string {
	return map[string]string{middleware.AdminTokenHeader: testToken}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSubscriptionEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"email":     "Alice@Example.com",
		"locations": []string{"Coventry", "Leeds"},
		"job_type":  "Full Time",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "alice@example.com", sub.Email)
	assert.Equal(t, "Coventry; Leeds", sub.PreferredLocation)

	w = s.do(http.MethodPost, "/api/v1/subscriptions", map[string]string{"email": "nobody"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/subscriptions", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/subscriptions?email=alice@example.com", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Subscriptions []domain.Subscription `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Subscriptions, 1)

	path := "/api/v1/subscriptions/" + itoa(sub.ID)
	w = s.do(http.MethodPut, path, map[string]interface{}{
		"email": "mallory@example.com", "locations": []string{"London"},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, path, map[string]interface{}{
		"email": "alice@example.com", "locations": []string{"London"}, "job_type": "Any",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/v1/subscriptions/abc", map[string]string{"email": "a@b.c"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	account := "/api/v1/accounts/" + itoa(sub.OwnerID)
	owner := "?email=alice@example.com"

	w = s.do(http.MethodGet, account+"/alerts"+owner, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, account+"/deactivate"+owner, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, account+"/reactivate"+owner, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, account+owner, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, account+owner, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountRoutesRequireOwner(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"email": "alice@example.com", "locations": []string{"Leeds"},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	account := "/api/v1/accounts/" + itoa(sub.OwnerID)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"delete without email", http.MethodDelete, account, http.StatusBadRequest},
		{"delete by stranger", http.MethodDelete, account + "?email=mallory@example.com", http.StatusNotFound},
		{"deactivate by stranger", http.MethodPost, account + "/deactivate?email=mallory@example.com", http.StatusNotFound},
		{"reactivate by stranger", http.MethodPost, account + "/reactivate?email=mallory@example.com", http.StatusNotFound},
		{"history by stranger", http.MethodGet, account + "/alerts?email=mallory@example.com", http.StatusNotFound},
		{"history without email", http.MethodGet, account + "/alerts", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, nil, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	acc, err := s.accounts.GetByID(context.Background(), sub.OwnerID)
	require.NoError(t, err)
	assert.True(t, acc.Active)
}

func TestAdminAccountCannotBeDeleted(t *testing.T) {
	s := newTestServer(t)
	acc := &domain.Account{Email: "root@example.com", Role: domain.RoleAdmin, Active: true}
	require.NoError(t, s.accounts.Create(context.Background(), acc))

	w := s.do(http.MethodDelete, "/api/v1/accounts/"+itoa(acc.ID)+"?email=root@example.com", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/admin/cycle", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.cycle.calls)

	w = s.do(http.MethodPost, "/api/v1/admin/cycle", nil, admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"emails_sent":2`)

	w = s.do(http.MethodGet, "/api/v1/admin/cycle", nil, admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_run_status":"success"`)

	s.cycle.err = scheduler.ErrCycleRunning
	w = s.do(http.MethodPost, "/api/v1/admin/cycle", nil, admin())
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/jobs/reset", nil, admin())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":0`)

	w = s.do(http.MethodPost, "/api/v1/admin/deliveries/42/resend", nil, admin())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/subscriptions/42/deactivate", nil, admin())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/snapshots/snapshots/uk/2024/01/01/c1.json", nil, admin())
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAreaGroupsAndStats(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/area-groups", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Leeds / Yorkshire")
	assert.Contains(t, w.Body.String(), "Fixed-term")

	w = s.do(http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"jobs":0`)

	w = s.do(http.MethodGet, "/api/v1/jobs?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodOptions, "/api/v1/subscriptions", nil, map[string]string{"Origin": "https://alerts.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://alerts.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.AdminTokenHeader)

	w = s.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
