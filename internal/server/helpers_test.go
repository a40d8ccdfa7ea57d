package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ctfarena/internal/config"
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

// testServer is a fully wired API over an in-memory database and miniredis.
type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis

	admin       *models.User
	member      *models.User
	adminToken  string
	memberToken string
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                  testSecret,
		Port:                       "0",
		Env:                        "test",
		FeatureFlags:               "community_submissions=on,live_feed=on,first_blood=on",
		LeaderboardCacheTTLSeconds: 30,
		ChallengesPerPage:          20,
		PostsPerPage:               15,
		FlagSubmitRateLimit:        10,
		FlagSubmitWindowSeconds:    60,
	}
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithConfig(t, testConfig())
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	db := testutil.OpenSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	ts := &testServer{
		srv:    srv,
		app:    srv.App(),
		db:     db,
		mr:     mr,
		admin:  testutil.CreateUser(t, db, "root", models.RoleAdmin),
		member: testutil.CreateUser(t, db, "alice", models.RoleMember),
	}
	ts.adminToken = tokenFor(t, ts.admin.ID)
	ts.memberToken = tokenFor(t, ts.member.ID)
	return ts
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// String bodies are sent verbatim; anything else is JSON-encoded.
func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	contentType := fiber.MIMEApplicationJSON
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
		if !strings.HasPrefix(strings.TrimSpace(b), "{") {
			contentType = "application/x-yaml"
		}
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp.StatusCode
}

// raw returns the status and body text.
func (ts *testServer) raw(t *testing.T, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func (ts *testServer) challenge(t *testing.T, title string, points int, flag string) *models.Challenge {
	t.Helper()
	return testutil.CreateChallenge(t, ts.db, title, points, flag)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Validation", models.NewValidationError("bad"), http.StatusBadRequest},
		{"Unauthorized", models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"Denied", models.NewAuthorizationDeniedError("approve"), http.StatusForbidden},
		{"Not Found", models.NewNotFoundError("Challenge", 1), http.StatusNotFound},
		{"Not Available", models.NewNotAvailableError("closed"), http.StatusConflict},
		{"Invalid Transition", models.NewInvalidTransitionError(models.SubmissionStatusApproved, models.SubmissionStatusRejected), http.StatusConflict},
		{"Conflict", models.NewConflictError("taken"), http.StatusConflict},
		{"Internal", models.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"Wrapped", fmt.Errorf("entry 2: %w", models.NewValidationError("bad")), http.StatusBadRequest},
		{"Plain Error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestRespondError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return respondError(c, errors.New("pq: connection refused to 10.0.0.3"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), models.CodeInternal)
	assert.NotContains(t, string(body), "10.0.0.3")
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"submissionId", "submission ID"},
		{"challengeFileId", "challenge file ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParseID(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		path     string
		expected int
	}{
		{"/items/7", http.StatusOK},
		{"/items/0", http.StatusBadRequest},
		{"/items/-3", http.StatusBadRequest},
		{"/items/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestPageQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		page, perPage := pageQuery(c, 15)
		return c.JSON(fiber.Map{"page": page, "per_page": perPage})
	})

	tests := []struct {
		query   string
		page    int
		perPage int
	}{
		{"", 1, 15},
		{"?page=3", 3, 15},
		{"?page=2&per_page=5", 2, 5},
		{"?per_page=0", 1, 15},
		{"?per_page=-4", 1, 15},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			var out struct {
				Page    int `json:"page"`
				PerPage int `json:"per_page"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.page, out.Page)
			assert.Equal(t, tt.perPage, out.PerPage)
		})
	}
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	var live map[string]any
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["redis"])

	ts.mr.Close()
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "unhealthy", ready.Checks["redis"])
}
