package health

import (
	"encoding/json"
	"net/http"
	"sort"
)

type ReadinessReporter interface {
	Readiness() (ready bool, detail string)
}

// Readiness is ready only when every named component is.
func Readiness(components map[string]ReadinessReporter) http.HandlerFunc {
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, _ *http.Request) {
		type component struct {
			Ready  bool   `json:"ready"`
			Detail string `json:"detail,omitempty"`
		}
		type resp struct {
			Status     string               `json:"status"`
			Components map[string]component `json:"components,omitempty"`
		}
		out := resp{Status: "ready", Components: make(map[string]component, len(names))}
		for _, n := range names {
			ok, detail := components[n].Readiness()
			out.Components[n] = component{Ready: ok, Detail: detail}
			if !ok {
				out.Status = "not_ready"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
