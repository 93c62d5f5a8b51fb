package pipeline

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/l0p7/admitgate/internal/admiterr"
)

// admitResponse is the wire body written for both admitted and blocked
// admissions; its shape matches a forward-auth style subrequest consumer
// (a reverse proxy calling /admit before forwarding upstream).
type admitResponse struct {
	RequestID   string   `json:"request_id"`
	UserID      string   `json:"user_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	ThreatScore uint32   `json:"threat_score"`
	Blocked     bool     `json:"blocked"`
	Reason      string   `json:"reason,omitempty"`
}

// ServeAdmit adapts Admit to an HTTP handler: 200 plus the populated
// Security Context on admission, the taxonomy-mapped status plus a safe
// message on rejection (§4.1). It implements internal/server's
// AdmissionHandler interface.
func (p *Pipeline) ServeAdmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sc, err := p.Admit(r.Context(), r)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", sc.RequestID)

	if err != nil {
		status := admiterr.StatusCode(err)
		if rle, ok := err.(admiterr.RateLimitExceeded); ok {
			w.Header().Set("Retry-After", strconv.Itoa(rle.RetryAfter))
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(admitResponse{
			RequestID:   sc.RequestID,
			ThreatScore: sc.ThreatScore,
			Blocked:     true,
			Reason:      p.renderReason(err, sc.RequestID),
		})
		p.Finalize(sc.RequestID, status, time.Since(start))
		return
	}

	w.Header().Set("X-User-Id", sc.UserID)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(admitResponse{
		RequestID:   sc.RequestID,
		UserID:      sc.UserID,
		Roles:       sc.SortedRoles(),
		ThreatScore: sc.ThreatScore,
		Blocked:     false,
	})
	p.Finalize(sc.RequestID, http.StatusOK, time.Since(start))
}
