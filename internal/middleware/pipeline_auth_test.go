package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

const testPipelineKey = "generator-key"

func setupPipelineRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.POST("/pipeline/budgets/:id/sync", PipelineAuthMiddleware(apiKey), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"source": c.GetString(PipelineSourceKey)})
	})
	return r
}

func pipelineRequest(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pipeline/budgets/b1/sync", http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return body
}

func TestPipelineAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		headers    map[string]string
		wantStatus int
		wantCode   string
		wantSource string
	}{
		{
			name:       "accepts the shared key",
			configured: testPipelineKey,
			headers:    map[string]string{"X-API-Key": testPipelineKey},
			wantStatus: http.StatusOK,
			wantSource: "recurring-generator",
		},
		{
			name:       "records the named caller",
			configured: testPipelineKey,
			headers:    map[string]string{"X-API-Key": testPipelineKey, "X-Pipeline-Source": "nightly-cron"},
			wantStatus: http.StatusOK,
			wantSource: "nightly-cron",
		},
		{
			name:       "rejects a wrong key",
			configured: testPipelineKey,
			headers:    map[string]string{"X-API-Key": "generator"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_API_KEY",
		},
		{
			name:       "rejects a missing key",
			configured: testPipelineKey,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_API_KEY",
		},
		{
			name:       "unconfigured key disables the endpoints",
			configured: "",
			headers:    map[string]string{"X-API-Key": ""},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "PIPELINE_NOT_CONFIGURED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := pipelineRequest(setupPipelineRouter(tt.configured), tt.headers)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := parseBody(t, rec)
			if tt.wantCode != "" {
				errObj, ok := body["error"].(map[string]interface{})
				if !ok {
					t.Fatal("expected error object in response")
				}
				if code, _ := errObj["code"].(string); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
				return
			}
			if source, _ := body["source"].(string); source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
		})
	}
}
