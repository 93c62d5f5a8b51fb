package server

import (
	"net/http"
)

// AdmissionHandler is implemented by the pipeline orchestrator's HTTP
// facade: it decides whether to admit r, writing the appropriate response
// itself (2xx passthrough headers, or the taxonomy-mapped rejection).
type AdmissionHandler interface {
	ServeAdmit(http.ResponseWriter, *http.Request)
}

// NewRouter wires the fixed three-route surface named in SPEC_FULL.md's
// cmd/ wiring section: /admit for the pipeline, /healthz for liveness,
// and /metrics for Prometheus scraping. Routing itself is a single flat
// mux, grounded on the pack's lifecycle-owns-routing separation but
// simplified since this domain has no per-endpoint dispatch.
func NewRouter(admission AdmissionHandler, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	if admission != nil {
		mux.HandleFunc("/admit", admission.ServeAdmit)
	} else {
		mux.HandleFunc("/admit", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "pipeline unavailable", http.StatusServiceUnavailable)
		})
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	return mux
}
