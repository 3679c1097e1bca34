// Package health serves liveness, readiness and progress endpoints for a
// running pipeline:
//
//   - /healthz  always 200 while the process serves HTTP.
//   - /readyz   200 only when every registered [Checker] passes.
//   - /statusz  the stage in progress and the stages finished so far.
//
// Responses are JSON objects with a top-level "status" field.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// StageReport describes one finished stage.
type StageReport struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Error   string  `json:"error,omitempty"`
}

// Snapshot is the /statusz body.
type Snapshot struct {
	Status    string        `json:"status"`
	RunID     string        `json:"run_id,omitempty"`
	Current   string        `json:"current,omitempty"`
	Elapsed   float64       `json:"elapsed_seconds,omitempty"`
	Completed []StageReport `json:"completed"`
}

// Progress records which stage is running. It is safe for concurrent use.
type Progress struct {
	mu        sync.Mutex
	runID     string
	current   string
	started   time.Time
	completed []StageReport
	now       func() time.Time
}

// NewProgress returns an idle Progress for runID.
func NewProgress(runID string) *Progress {
	return &Progress{runID: runID, now: time.Now}
}

// Begin marks stage as running.
func (p *Progress) Begin(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = stage
	p.started = p.now()
}

// End marks the running stage as finished with err.
func (p *Progress) End(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return
	}
	r := StageReport{Name: p.current, Seconds: p.now().Sub(p.started).Seconds()}
	if err != nil {
		r.Error = err.Error()
	}
	p.completed = append(p.completed, r)
	p.current = ""
}

// Snapshot returns the current state. Status is "running", "idle" or
// "failed" when the last finished stage returned an error.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Status:    "idle",
		RunID:     p.runID,
		Completed: append([]StageReport{}, p.completed...),
	}
	switch {
	case p.current != "":
		s.Status = "running"
		s.Current = p.current
		s.Elapsed = p.now().Sub(p.started).Seconds()
	case len(p.completed) > 0 && p.completed[len(p.completed)-1].Error != "":
		s.Status = "failed"
	}
	return s
}

// Handler serves the health endpoints. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	progress *Progress
}

// New creates a [Handler]. progress may be nil, in which case /statusz
// reports idle.
func New(progress *Progress, checkers ...Checker) *Handler {
	if progress == nil {
		progress = NewProgress("")
	}
	return &Handler{checkers: append([]Checker(nil), checkers...), progress: progress}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every checker sequentially, each with its own timeout.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true
	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Statusz reports pipeline progress.
func (h *Handler) Statusz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.progress.Snapshot())
}

// Register adds the routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /statusz", h.Statusz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
