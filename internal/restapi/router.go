package restapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asgard/mavhub/internal/hub"
	"github.com/asgard/mavhub/internal/stats"
)

// BuildInfo is served from GET /info, mirroring the original's
// InfoContent (name/version/sha/build date/authors).
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	SHA       string `json:"sha"`
	BuildDate string `json:"build_date"`
	Authors   string `json:"authors"`
}

type infoResponse struct {
	APIVersion int       `json:"version"`
	Service    BuildInfo `json:"service"`
}

// NewRouter builds the HTTP router serving /info, /stats/*,
// /mavlink/*, /ws/mavlink, and /metrics, grounded on
// internal/api/router.go's chi + middleware + cors wiring.
func NewRouter(h *hub.Hub, rest *Driver, build BuildInfo) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/info", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, infoResponse{APIVersion: 0, Service: build})
	})

	r.Get("/mavlink", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, rest.cache.all())
	})

	r.Get("/mavlink/*", func(w http.ResponseWriter, req *http.Request) {
		path := chi.URLParam(req, "*")
		msg, ok := rest.cache.byName(path)
		if !ok {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	})

	r.Post("/mavlink", func(w http.ResponseWriter, req *http.Request) {
		var body injectRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "malformed body: "+err.Error(), http.StatusBadRequest)
			return
		}
		payload, err := base64.StdEncoding.DecodeString(body.PayloadBase64)
		if err != nil {
			http.Error(w, "malformed payload_base64: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := rest.Inject(body.SystemID, body.ComponentID, body.MessageID, body.Sequence, payload); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/ws/mavlink", func(w http.ResponseWriter, req *http.Request) {
		filter := req.URL.Query().Get("filter")
		serveWebSocket(rest.ws, w, req, filter, func(clientID uuid.UUID, raw []byte) {
			var body injectRequest
			if err := json.Unmarshal(raw, &body); err != nil {
				return
			}
			payload, err := base64.StdEncoding.DecodeString(body.PayloadBase64)
			if err != nil {
				return
			}
			rest.InjectFromWebSocket(clientID, body.SystemID, body.ComponentID, body.MessageID, body.Sequence, payload)
		})
	})

	r.Get("/stats/hub", func(w http.ResponseWriter, req *http.Request) {
		snap, err := h.GetHubStats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/stats/drivers", func(w http.ResponseWriter, req *http.Request) {
		entries, err := h.GetDriversStats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/stats/messages", func(w http.ResponseWriter, req *http.Request) {
		entries, err := h.GetDriversStats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		snapshots := make([]stats.DriverStatsSnapshot, len(entries))
		for i, e := range entries {
			snapshots[i] = e.Stats
		}
		writeJSON(w, http.StatusOK, stats.MessageIDAggregate(snapshots))
	})

	r.Post("/stats/reset", func(w http.ResponseWriter, req *http.Request) {
		if err := h.ResetAllStats(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/drivers", func(w http.ResponseWriter, req *http.Request) {
		drivers, err := h.GetDrivers(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, drivers)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

type injectRequest struct {
	SystemID      uint8  `json:"system_id"`
	ComponentID   uint8  `json:"component_id"`
	MessageID     uint32 `json:"message_id"`
	Sequence      uint8  `json:"seq"`
	PayloadBase64 string `json:"payload_base64"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
