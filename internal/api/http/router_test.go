package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/ratelimit"
	"github.com/spec-kit/complaint-service/internal/repository/memory"
	"github.com/spec-kit/complaint-service/internal/service"
)

type fakePinger struct {
	enabled bool
	err     error
}

func (p fakePinger) Enabled() bool                { return p.enabled }
func (p fakePinger) Ping(_ context.Context) error { return p.err }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

type serverOptions struct {
	limiter ratelimit.Limiter
	deps    map[string]handlers.Pinger
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := zap.NewNop()
	hired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	residents := memory.NewResidentRepository(
		domain.Resident{ID: "res-1", Name: "Ann", Active: true},
		domain.Resident{ID: "res-2", Name: "Ben", Active: true},
	)
	staff := memory.NewStaffRepository(
		domain.StaffMember{ID: "staff-a", Name: "Ali", Role: domain.RoleStaff, Active: true, CreatedAt: hired},
		domain.StaffMember{ID: "admin-1", Name: "Ada", Role: domain.RoleAdmin, Active: true, CreatedAt: hired},
	)
	tickets := memory.NewTicketRepository()
	metrics := observability.NewMetrics()

	assignment := service.NewAssignmentService(service.AssignmentDependencies{TicketRepo: tickets, StaffRepo: staff})
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		Assignment: assignment,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second, Diagnostics: true})
	app.Get("/boom", func(*fiber.Ctx) error { panic("kaboom") })

	var rl fiber.Handler
	if opts.limiter != nil {
		rl = RateLimitMiddleware(opts.limiter, logger)
	}
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("complaint-service", "test", opts.deps),
		Tickets:        handlers.NewTicketsHandler(svc),
		Staff:          handlers.NewStaffHandler(service.NewStaffService(assignment)),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewPrincipalResolver(tokens, residents, staff)),
		RateLimit:      rl,
		Metrics:        metrics,
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, id string, subject domain.SubjectType, role domain.Role) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateToken(id, subject, role)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Status int
	Header nethttp.Header
	Body   map[string]any
	Raw    string
}

func (r apiResponse) data() map[string]any {
	data, _ := r.Body["data"].(map[string]any)
	return data
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode, Header: resp.Header, Raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)
	staff := srv.token(t, "staff-a", domain.SubjectTypeStaff, domain.RoleStaff)
	admin := srv.token(t, "admin-1", domain.SubjectTypeStaff, domain.RoleAdmin)

	created := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]any{
		"category":    "PLUMBING",
		"priority":    "HIGH",
		"description": "Water under the sink",
		"location":    "Block A, 4B",
		"media":       []map[string]string{{"url": "https://cdn.example/leak.jpg", "publicId": "leak"}},
	})
	require.Equal(t, nethttp.StatusCreated, created.Status, created.Raw)
	assert.Equal(t, true, created.Body["success"])
	id, _ := created.data()["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "OPEN", created.data()["status"])
	base := "/complaints/" + id

	assigned := srv.do(t, nethttp.MethodPost, base+"/assign", admin, nil)
	require.Equal(t, nethttp.StatusOK, assigned.Status, assigned.Raw)
	assert.Equal(t, "staff-a", assigned.data()["assignedStaff"])

	working := srv.do(t, nethttp.MethodPost, base+"/work-updates", staff, map[string]string{"text": "Replacing the seal"})
	require.Equal(t, nethttp.StatusOK, working.Status, working.Raw)
	assert.Equal(t, "IN_PROGRESS", working.data()["status"])

	resolved := srv.do(t, nethttp.MethodPut, base+"/status", admin, map[string]string{"status": "RESOLVED"})
	require.Equal(t, nethttp.StatusOK, resolved.Status, resolved.Raw)
	assert.Equal(t, "RESOLVED", resolved.data()["status"])

	rated := srv.do(t, nethttp.MethodPost, base+"/rate", resident, map[string]any{"score": 5, "comment": "great"})
	require.Equal(t, nethttp.StatusOK, rated.Status, rated.Raw)
	rating, _ := rated.data()["rating"].(map[string]any)
	assert.Equal(t, float64(5), rating["score"])

	again := srv.do(t, nethttp.MethodPost, base+"/rate", resident, map[string]any{"score": 1})
	assert.Equal(t, nethttp.StatusConflict, again.Status)
	assert.Equal(t, "CONFLICT", again.Body["code"])

	closed := srv.do(t, nethttp.MethodPost, base+"/close", resident, nil)
	require.Equal(t, nethttp.StatusOK, closed.Status, closed.Raw)
	assert.Equal(t, "CLOSED", closed.data()["status"])

	listed := srv.do(t, nethttp.MethodGet, "/complaints?status=closed", resident, nil)
	require.Equal(t, nethttp.StatusOK, listed.Status, listed.Raw)
	items, _ := listed.data()["items"].([]any)
	assert.Len(t, items, 1)

	other := srv.token(t, "res-2", domain.SubjectTypeResident, domain.RoleResident)
	hidden := srv.do(t, nethttp.MethodGet, base, other, nil)
	assert.Equal(t, nethttp.StatusForbidden, hidden.Status)
	assert.Equal(t, "NOT_OWNER", hidden.Body["code"])
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)
	admin := srv.token(t, "admin-1", domain.SubjectTypeStaff, domain.RoleAdmin)

	created := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]string{
		"category": "ELEVATOR", "description": "Stuck on 3", "location": "Lift B",
	})
	require.Equal(t, nethttp.StatusCreated, created.Status, created.Raw)
	base := "/complaints/" + created.data()["id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing token", nethttp.MethodGet, "/complaints", "", nil, nethttp.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", nethttp.MethodGet, "/complaints", "garbage", nil, nethttp.StatusUnauthorized, "UNAUTHORIZED"},
		{"resident on admin route", nethttp.MethodPost, base + "/assign", resident, nil, nethttp.StatusForbidden, "ROLE_FORBIDDEN"},
		{"admin cannot file", nethttp.MethodPost, "/complaints", admin, map[string]string{"category": "OTHER"}, nethttp.StatusForbidden, "ROLE_FORBIDDEN"},
		{"validation", nethttp.MethodPost, "/complaints", resident, map[string]string{"category": "OTHER"}, nethttp.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad page", nethttp.MethodGet, "/complaints?page=0", resident, nil, nethttp.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown complaint", nethttp.MethodGet, "/complaints/nope", admin, nil, nethttp.StatusNotFound, "NOT_FOUND"},
		{"rate too early", nethttp.MethodPost, base + "/rate", resident, map[string]int{"score": 4}, nethttp.StatusConflict, "INVALID_TRANSITION"},
		{"status not settable", nethttp.MethodPut, base + "/status", admin, map[string]string{"status": "REOPENED"}, nethttp.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown route", nethttp.MethodGet, "/nowhere", "", nil, nethttp.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, resp.Status, resp.Raw)
			assert.Equal(t, false, resp.Body["success"])
			assert.Equal(t, tt.code, resp.Body["code"])
			assert.NotEmpty(t, resp.Body["message"])
		})
	}

	t.Run("transition details", func(t *testing.T) {
		resp := srv.do(t, nethttp.MethodPost, base+"/rate", resident, map[string]int{"score": 4})
		details, _ := resp.Body["details"].(map[string]any)
		assert.Equal(t, "OPEN", details["from"])
		assert.Equal(t, "INVALID_STATE_FOR_ACTION", details["reason"])
	})
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	resp := srv.do(t, nethttp.MethodGet, "/boom", "", nil)
	assert.Equal(t, nethttp.StatusInternalServerError, resp.Status)
	assert.Equal(t, "INTERNAL_ERROR", resp.Body["code"])
	diag, _ := resp.Body["diagnostics"].(map[string]any)
	assert.Contains(t, diag["error"], "kaboom")
	assert.NotEmpty(t, diag["stack"])
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, serverOptions{limiter: ratelimit.NewLocalLimiter(2, time.Minute)})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)

	for i := 0; i < 2; i++ {
		resp := srv.do(t, nethttp.MethodGet, "/complaints", resident, nil)
		require.Equal(t, nethttp.StatusOK, resp.Status, resp.Raw)
	}
	limited := srv.do(t, nethttp.MethodGet, "/complaints", resident, nil)
	assert.Equal(t, nethttp.StatusTooManyRequests, limited.Status)
	assert.Equal(t, "RATE_LIMITED", limited.Body["code"])
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))

	other := srv.token(t, "res-2", domain.SubjectTypeResident, domain.RoleResident)
	assert.Equal(t, nethttp.StatusOK, srv.do(t, nethttp.MethodGet, "/complaints", other, nil).Status)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	srv := newTestServer(t, serverOptions{limiter: brokenLimiter{}})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)
	assert.Equal(t, nethttp.StatusOK, srv.do(t, nethttp.MethodGet, "/complaints", resident, nil).Status)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, serverOptions{deps: map[string]handlers.Pinger{
		"postgres": fakePinger{enabled: true},
		"redis":    fakePinger{enabled: false},
	}})

	live := srv.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, live.Status)
	assert.Equal(t, "alive", live.data()["status"])

	ready := srv.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	require.Equal(t, nethttp.StatusOK, ready.Status, ready.Raw)
	deps, _ := ready.data()["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])

	metrics := srv.do(t, nethttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, nethttp.StatusOK, metrics.Status)
	assert.Contains(t, metrics.Raw, "http_requests_total")

	down := newTestServer(t, serverOptions{deps: map[string]handlers.Pinger{
		"postgres": fakePinger{enabled: true, err: errors.New("connection refused")},
	}})
	notReady := down.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, notReady.Status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", notReady.Body["code"])
}

func TestStaffRoster(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)
	admin := srv.token(t, "admin-1", domain.SubjectTypeStaff, domain.RoleAdmin)

	denied := srv.do(t, nethttp.MethodGet, "/staff", resident, nil)
	assert.Equal(t, nethttp.StatusForbidden, denied.Status)
	assert.Equal(t, "ROLE_FORBIDDEN", denied.Body["code"])

	created := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]any{
		"category":    "ELECTRICAL",
		"priority":    "LOW",
		"description": "Hallway light flickers",
		"location":    "Block B, floor 2",
	})
	require.Equal(t, nethttp.StatusCreated, created.Status, created.Raw)
	id, _ := created.data()["id"].(string)
	require.Equal(t, nethttp.StatusOK, srv.do(t, nethttp.MethodPost, "/complaints/"+id+"/assign", admin, nil).Status)

	roster := srv.do(t, nethttp.MethodGet, "/staff", admin, nil)
	require.Equal(t, nethttp.StatusOK, roster.Status, roster.Raw)
	rows, _ := roster.Body["data"].([]any)
	require.Len(t, rows, 1)
	row, _ := rows[0].(map[string]any)
	assert.Equal(t, "staff-a", row["id"])
	assert.Equal(t, float64(1), row["openComplaints"])
}

func TestEnumSpellingsAreNormalized(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	resident := srv.token(t, "res-1", domain.SubjectTypeResident, domain.RoleResident)
	admin := srv.token(t, "admin-1", domain.SubjectTypeStaff, domain.RoleAdmin)

	created := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]any{
		"category":    "Plumbing",
		"priority":    "Medium",
		"description": "Dripping tap",
		"location":    "Block C, 1A",
	})
	require.Equal(t, nethttp.StatusCreated, created.Status, created.Raw)
	assert.Equal(t, "PLUMBING", created.data()["category"])
	assert.Equal(t, "MEDIUM", created.data()["priority"])
	base := "/complaints/" + created.data()["id"].(string)

	common := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]any{
		"category":    "CommonArea",
		"description": "Lobby door sticks",
		"location":    "Lobby",
	})
	require.Equal(t, nethttp.StatusCreated, common.Status, common.Raw)
	assert.Equal(t, "COMMON_AREA", common.data()["category"])

	require.Equal(t, nethttp.StatusOK, srv.do(t, nethttp.MethodPost, base+"/assign", admin, nil).Status)

	started := srv.do(t, nethttp.MethodPut, base+"/status", admin, map[string]string{"status": "InProgress"})
	require.Equal(t, nethttp.StatusOK, started.Status, started.Raw)
	assert.Equal(t, "IN_PROGRESS", started.data()["status"])

	raised := srv.do(t, nethttp.MethodPut, base+"/priority", admin, map[string]string{"priority": "High"})
	require.Equal(t, nethttp.StatusOK, raised.Status, raised.Raw)
	assert.Equal(t, "HIGH", raised.data()["priority"])

	noted := srv.do(t, nethttp.MethodPost, base+"/comments", admin, map[string]string{"text": "Parts ordered", "visibility": "Staff"})
	require.Equal(t, nethttp.StatusOK, noted.Status, noted.Raw)
	comments, _ := noted.data()["comments"].([]any)
	require.NotEmpty(t, comments)
	last, _ := comments[len(comments)-1].(map[string]any)
	assert.Equal(t, "STAFF", last["visibility"])

	byStatus := srv.do(t, nethttp.MethodGet, "/complaints?status=InProgress", admin, nil)
	require.Equal(t, nethttp.StatusOK, byStatus.Status, byStatus.Raw)
	items, _ := byStatus.data()["items"].([]any)
	assert.Len(t, items, 1)

	byCategory := srv.do(t, nethttp.MethodGet, "/complaints?category=CommonArea", admin, nil)
	require.Equal(t, nethttp.StatusOK, byCategory.Status, byCategory.Raw)
	items, _ = byCategory.data()["items"].([]any)
	assert.Len(t, items, 1)

	unknown := srv.do(t, nethttp.MethodPost, "/complaints", resident, map[string]any{
		"category": "Gardening", "description": "Weeds", "location": "Yard",
	})
	assert.Equal(t, nethttp.StatusBadRequest, unknown.Status)
	assert.Equal(t, "VALIDATION_FAILED", unknown.Body["code"])
}
