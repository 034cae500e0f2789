package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/middleware"
	"tally/internal/services"
	"tally/internal/validator"
)

const testUserID = "0190a1b2-0000-7000-8000-000000000001"

// --- mock audit service ---

type auditCall struct {
	userID, action, resourceType, resourceID string
	changes                                  map[string]interface{}
}

type mockAuditService struct {
	mu    sync.Mutex
	calls []auditCall
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, changes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, auditCall{userID: userID, action: action, resourceType: resourceType, resourceID: resourceID, changes: changes})
}

func (m *mockAuditService) last(t *testing.T) auditCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("expected an audit entry")
	}
	return m.calls[len(m.calls)-1]
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// --- tests ---

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "app_error", err: apperrors.ErrBudgetNotFound, status: http.StatusNotFound, code: "BUDGET_NOT_FOUND"},
		{name: "wrapped_app_error", err: apperrors.Wrap(apperrors.ErrPartialFailure, http.ErrHandlerTimeout), status: http.StatusInternalServerError, code: "PARTIAL_FAILURE"},
		{name: "custom_message", err: apperrors.WithMessage(apperrors.ErrInvalidInput, "bad"), status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{name: "plain_error", err: http.ErrAbortHandler, status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { respondWithError(c, tt.err) })

			rec := doRequest(r, http.MethodGet, "/", "")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), tt.code)
		})
	}
}

func TestGetUserID(t *testing.T) {
	r := gin.New()
	handler := func(c *gin.Context) {
		id, err := getUserID(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	}
	r.GET("/anon", handler)
	r.GET("/auth", injectUserID(testUserID), handler)

	if rec := doRequest(r, http.MethodGet, "/anon", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	rec := doRequest(r, http.MethodGet, "/auth", "")
	if rec.Code != http.StatusOK || parseJSON(t, rec)["id"] != testUserID {
		t.Errorf("expected user id, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestParseFlexibleTime(t *testing.T) {
	for _, v := range []string{"2026-03-04", "2026-03-04T09:30:00Z", "2026-03-04T17:30:00+08:00"} {
		got, err := parseFlexibleTime(v)
		if err != nil {
			t.Fatalf("parse %q: %v", v, err)
		}
		if got.Year() != 2026 || got.Month() != 3 || got.Day() != 4 {
			t.Errorf("parse %q: got %v", v, got)
		}
	}
	if _, err := parseFlexibleTime("03/04/2026"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
