package adminhttp

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ipmidhcpd/services/dhcpd/internal/dhcp"
)

// LeaseSource is the read side of the lease pool.
type LeaseSource interface {
	Leases() []dhcp.Lease
	Lookup(mac string) (dhcp.Lease, bool)
}

type API struct {
	leases  LeaseSource
	ready   func() bool
	metrics http.Handler
}

// New returns the admin API. ready and metrics may be nil.
func New(leases LeaseSource, ready func() bool, metrics http.Handler) (*API, error) {
	if leases == nil {
		return nil, errors.New("lease source is required")
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &API{leases: leases, ready: ready, metrics: metrics}, nil
}

// Routes constructs the chi router with the probe, metrics and lease endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", a.handleReady)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/leases", a.handleListLeases)
		r.Get("/leases/{mac}", a.handleGetLease)
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready() {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Error(w, "dhcp listener not ready", http.StatusServiceUnavailable)
}

type leaseList struct {
	Leases []dhcp.Lease `json:"leases"`
}

// handleListLeases returns the lease table; ?active=true hides stale entries.
func (a *API) handleListLeases(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("active must be a boolean"))
			return
		}
		activeOnly = b
	}

	out := make([]dhcp.Lease, 0)
	for _, l := range a.leases.Leases() {
		if activeOnly && !l.Active {
			continue
		}
		out = append(out, l)
	}
	respondJSON(w, http.StatusOK, leaseList{Leases: out})
}

func (a *API) handleGetLease(w http.ResponseWriter, r *http.Request) {
	mac := normalizeMAC(chi.URLParam(r, "mac"))
	l, ok := a.leases.Lookup(mac)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("no lease for "+mac))
		return
	}
	respondJSON(w, http.StatusOK, l)
}

// normalizeMAC maps the accepted spellings onto the lower-case colon form
// used as the table key.
func normalizeMAC(raw string) string {
	if hw, err := net.ParseMAC(raw); err == nil {
		return hw.String()
	}
	return strings.ToLower(strings.ReplaceAll(raw, "-", ":"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
