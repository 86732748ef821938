// Package httpapi exposes a small read-only inspection surface over the
// controller's node table, routed with go-chi/chi/v5 the way the teacher's
// REST daemon trees its resources under "/1.0/...".
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canonical/hpc-mesos-bridge/internal/controller"
)

// Router returns a chi.Router serving:
//
//	GET /1.0/nodes            — every hostname's current record
//	GET /1.0/nodes/{hostname} — a single hostname's record
func Router(ctrl *controller.Controller) chi.Router {
	r := chi.NewRouter()

	r.Get("/1.0/nodes", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	})

	r.Get("/1.0/nodes/{hostname}", func(w http.ResponseWriter, req *http.Request) {
		// The table keys records by uppercase hostname; canonicalize the
		// path param the same way so lookups aren't case-sensitive.
		hostname := strings.ToUpper(chi.URLParam(req, "hostname"))

		snapshot := ctrl.Snapshot()
		record, ok := snapshot[hostname]
		if !ok {
			http.Error(w, "node not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, record)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
