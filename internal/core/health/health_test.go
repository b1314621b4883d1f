package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type staticReporter struct {
	ok     bool
	detail string
}

func (s staticReporter) Readiness() (bool, string) { return s.ok, s.detail }

func TestReadiness_AllComponentsMustBeReady(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ReadinessReporter
		wantCode   int
		wantStatus string
	}{
		{"none", nil, http.StatusOK, "ready"},
		{"all ready", map[string]ReadinessReporter{
			"renderer":     staticReporter{true, "4 workers"},
			"invalidation": staticReporter{true, "partitions [0 1]"},
		}, http.StatusOK, "ready"},
		{"one down", map[string]ReadinessReporter{
			"renderer":     staticReporter{true, ""},
			"invalidation": staticReporter{false, "no partitions assigned"},
		}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Readiness(tc.components)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.wantCode {
				t.Fatalf("status=%d want %d", rr.Code, tc.wantCode)
			}
			var body struct {
				Status     string `json:"status"`
				Components map[string]struct {
					Ready  bool   `json:"ready"`
					Detail string `json:"detail"`
				} `json:"components"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantStatus {
				t.Fatalf("status=%q want %q", body.Status, tc.wantStatus)
			}
			if len(body.Components) != len(tc.components) {
				t.Fatalf("components=%v", body.Components)
			}
		})
	}
}
