package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewHandler serves the stats and task lists as JSON under /stats and /tasks.
func NewHandler(s *StatsService) http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", handleStats(s, time.Now))
	r.Get("/tasks", handleTasks(s))
	return r
}

func handleStats(s *StatsService, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Stats(r.Context(), now()))
	}
}

func handleTasks(s *StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Tasks(r.Context()))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
