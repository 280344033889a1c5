package health

import (
	"encoding/json"
	"net/http"
)

// Status is the probe response body.
type Status struct {
	StatusOK bool   `json:"statusOk"`
	Reason   string `json:"reason,omitempty"`
}

// Handler answers 200 {"statusOk":true} while p passes and 503 with the
// failure reason otherwise. A nil probe always passes.
func Handler(p Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, code := Status{StatusOK: true}, http.StatusOK
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				st, code = Status{Reason: err.Error()}, http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	})
}
