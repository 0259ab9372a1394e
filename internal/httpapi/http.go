package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"drivesafe/internal/assistant"
	"drivesafe/internal/config"
	"drivesafe/internal/events"
	"drivesafe/internal/jobs"
	"drivesafe/internal/journal"
	"drivesafe/internal/metrics"
	"drivesafe/internal/reports"
	"drivesafe/safetytips"
)

// Asker answers driving questions.
type Asker interface {
	Ask(ctx context.Context, query string) (string, error)
}

// History reads persisted jobs.
type History interface {
	ListJobs(ctx context.Context, limit int) ([]jobs.Job, error)
	JobLogs(ctx context.Context, jobID int64) ([]string, error)
	Health(ctx context.Context) error
}

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg       config.Config
	tips      *safetytips.Generator
	runner    *jobs.Runner
	journal   *journal.Journal[reports.Entry]
	history   History
	bus       *events.Bus
	assistant Asker
	rng       func() *rand.Rand
}

// Deps groups the collaborators served over HTTP.
type Deps struct {
	Tips      *safetytips.Generator
	Runner    *jobs.Runner
	Journal   *journal.Journal[reports.Entry]
	History   History
	Bus       *events.Bus
	Assistant Asker
	// Rand supplies the source for the tip of the day; nil uses the clock.
	Rand func() *rand.Rand
}

func NewRouter(cfg config.Config, deps Deps) *Router {
	rng := deps.Rand
	if rng == nil {
		rng = func() *rand.Rand { return nil }
	}
	return &Router{
		cfg:       cfg,
		tips:      deps.Tips,
		runner:    deps.Runner,
		journal:   deps.Journal,
		history:   deps.History,
		bus:       deps.Bus,
		assistant: deps.Assistant,
		rng:       rng,
	}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/tips", r.generateTips)
	mux.HandleFunc("/api/tips/daily", r.dailyTip)
	mux.HandleFunc("/api/alerts/", r.alert)
	mux.HandleFunc("/api/reports", r.reports)
	mux.HandleFunc("/api/assistant", r.ask)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/jobs", r.jobs)
	mux.HandleFunc("/ops/jobs/", r.jobDetail)
	mux.HandleFunc("/ops/history", r.historyList)
	mux.HandleFunc("/ops/metrics", r.metrics)
	mux.HandleFunc("/ops/events", r.events)
	mux.HandleFunc("/ops/health", r.health)
}

func (r *Router) generateTips(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Report  string `json:"report"`
		MaxTips *int   `json:"max_tips"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	maxTips := r.cfg.MaxTips
	if body.MaxTips != nil {
		if *body.MaxTips < 0 {
			http.Error(w, "max_tips must be >= 0", http.StatusBadRequest)
			return
		}
		maxTips = *body.MaxTips
	}
	advice := r.tips.Analyze(body.Report, maxTips)
	metrics.ObserveAdvice(advice.Fallback)
	respondJSON(w, http.StatusOK, advice)
}

func (r *Router) dailyTip(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"tip": r.tips.TipOfTheDay(r.rng())})
}

func (r *Router) alert(w http.ResponseWriter, req *http.Request) {
	kind := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/alerts/"), "/")
	if kind == "" {
		respondJSON(w, http.StatusOK, map[string][]string{"kinds": safetytips.AlertKinds()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"kind": kind, "message": safetytips.AlertMessage(kind)})
}

func (r *Router) reports(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		entries, err := r.journal.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var body reports.Report
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body.ID, body.Source = "", "api"
		report, err := body.Normalize(config.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		job, err := r.runner.Enqueue(req.Context(), report)
		if errors.Is(err, jobs.ErrQueueFull) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusAccepted, job)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) ask(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.assistant == nil {
		http.Error(w, "assistant disabled", http.StatusServiceUnavailable)
		return
	}
	answer, err := r.assistant.Ask(req.Context(), body.Query)
	if err != nil {
		http.Error(w, err.Error(), statusForAskError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"jobs":        r.runner.List(10),
		"queue_depth": r.runner.QueueDepth(),
		"workers":     r.cfg.WorkerCount,
		"max_tips":    r.cfg.MaxTips,
		"categories":  r.tips.Order(),
	})
}

func (r *Router) jobs(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.runner.List(50))
}

func (r *Router) jobDetail(w http.ResponseWriter, req *http.Request) {
	// /ops/jobs/{id} or /ops/jobs/{id}/logs
	path := strings.TrimPrefix(req.URL.Path, "/ops/jobs/")
	wantLogs := strings.HasSuffix(path, "/logs")
	id, err := strconv.ParseInt(strings.TrimSuffix(path, "/logs"), 10, 64)
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, ok := r.runner.Job(id)
	if !ok {
		http.NotFound(w, req)
		return
	}
	if wantLogs {
		respondJSON(w, http.StatusOK, r.runner.Logs(job.ID))
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// historyList serves persisted jobs, including those from earlier runs.
// ?logs={id} returns the stored log lines for one job instead.
func (r *Router) historyList(w http.ResponseWriter, req *http.Request) {
	if r.history == nil {
		http.Error(w, "job history disabled", http.StatusNotFound)
		return
	}
	if raw := req.URL.Query().Get("logs"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		lines, err := r.history.JobLogs(req.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, lines)
		return
	}
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := r.history.ListJobs(req.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, metrics.Snapshot())
}

// events streams job transitions as server-sent events.
func (r *Router) events(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || r.bus == nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sub := r.bus.Subscribe()
	defer r.bus.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-req.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			buf, err := json.Marshal(ev)
			if err != nil {
				log.Printf("encode event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, buf)
			flusher.Flush()
		}
	}
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if _, err := r.journal.List(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if r.history != nil {
		if err := r.history.Health(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusForAskError(err error) int {
	switch {
	case errors.Is(err, assistant.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, assistant.ErrEmptyQuery):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
