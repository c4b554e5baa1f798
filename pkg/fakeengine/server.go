// Package fakeengine serves a scripted stand-in for the routing engine API.
// Tests point the routing client at it; developers can run it locally via ./cmd.
package fakeengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/manthysbr/freeroute/internal/core/domain"
)

// Operation ids, matching the API document.
const (
	OpStatus        = "getSystemStatus"
	OpCreateSession = "createSession"
	OpListSessions  = "listSessions"
	OpGetSession    = "getSession"
	OpEnqueueJob    = "enqueueJob"
	OpListJobs      = "listJobs"
	OpGetJob        = "getJob"
	OpUploadInput   = "uploadInput"
	OpStartJob      = "startJob"
	OpGetOutput     = "getJobOutput"
)

// Config scripts the engine's behaviour
type Config struct {
	Port int

	// States is returned by successive job status polls once the job is started.
	// The last entry repeats. Empty means COMPLETED straight away.
	States []domain.JobState

	// Output is served as the routed result. Nil echoes the uploaded input.
	Output         []byte
	OutputFilename string
	EmptyOutput    bool

	// NotReadyFor makes the first N status probes answer 503.
	NotReadyFor int

	// Failures maps an operation id to the status code it should answer with.
	Failures map[string]int

	// ProfileID, when set, is required on authenticated calls.
	ProfileID string

	Logger *slog.Logger
}

type job struct {
	domain.Job
	started bool
	polls   int
	input   []byte
}

// Server is the fake engine
type Server struct {
	server *http.Server
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	calls    map[string]int
	sessions []domain.Session
	jobs     map[domain.JobID]*job
	order    []domain.JobID
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	s := &Server{
		logger: logger,
		cfg:    cfg,
		calls:  make(map[string]int),
		jobs:   make(map[domain.JobID]*job),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/system/status", s.handleStatus)
	mux.HandleFunc("POST /v1/sessions/create", s.authed(OpCreateSession, s.handleCreateSession))
	mux.HandleFunc("GET /v1/sessions/list", s.authed(OpListSessions, s.handleListSessions))
	mux.HandleFunc("GET /v1/sessions/{sessionId}", s.authed(OpGetSession, s.handleGetSession))
	mux.HandleFunc("POST /v1/jobs/enqueue", s.authed(OpEnqueueJob, s.handleEnqueue))
	mux.HandleFunc("GET /v1/jobs/{jobId}", s.authed(OpGetJob, s.handleGetJob))
	mux.HandleFunc("POST /v1/jobs/{jobId}/input", s.authed(OpUploadInput, s.handleUpload))
	mux.HandleFunc("PUT /v1/jobs/{jobId}/start", s.authed(OpStartJob, s.handleStart))
	// jobs/list/{sessionId} and jobs/{jobId}/output overlap as mux patterns.
	mux.HandleFunc("GET /v1/jobs/{first}/{second}", s.handleJobSubresource)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler exposes the routes, for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured TCP port until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("fake engine listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("fake engine error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Calls returns how many times an operation was invoked.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Input returns the decoded bytes uploaded to the most recent job.
func (s *Server) Input() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil
	}
	return s.jobs[s.order[len(s.order)-1]].input
}

// LastJob returns the most recently enqueued job.
func (s *Server) LastJob() (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return domain.Job{}, false
	}
	return s.jobs[s.order[len(s.order)-1]].Job, true
}

func (s *Server) record(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.calls[op]
}

func (s *Server) authed(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(op)
		if s.cfg.ProfileID != "" && r.Header.Get("Freerouting-Profile-ID") != s.cfg.ProfileID {
			writeError(w, http.StatusUnauthorized, "unknown profile")
			return
		}
		if code, ok := s.cfg.Failures[op]; ok {
			writeError(w, code, "scripted failure of "+op)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	n := s.record(OpStatus)
	if n <= s.cfg.NotReadyFor {
		writeError(w, http.StatusServiceUnavailable, "starting")
		return
	}
	if code, ok := s.cfg.Failures[OpStatus]; ok {
		writeError(w, code, "scripted failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := domain.Session{ID: domain.SessionID(uuid.NewString())}
	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sessions := append([]domain.Session{}, s.sessions...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("sessionId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == id {
			writeJSON(w, http.StatusOK, session)
			return
		}
	}
	writeError(w, http.StatusNotFound, "session not found")
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	j := &job{Job: domain.Job{
		ID:        domain.JobID(uuid.NewString()),
		SessionID: req.SessionID,
		Name:      req.Name,
		Priority:  req.Priority,
		State:     domain.JobStateQueued,
	}}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, j.Job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	sessionID := domain.SessionID(r.PathValue("sessionId"))
	s.mu.Lock()
	var jobs []domain.Job
	for _, id := range s.order {
		if s.jobs[id].SessionID == sessionID {
			jobs = append(jobs, s.jobs[id].Job)
		}
	}
	s.mu.Unlock()
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobSubresource(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "list":
		r.SetPathValue("sessionId", second)
		s.authed(OpListJobs, s.handleListJobs)(w, r)
	case second == "output":
		r.SetPathValue("jobId", first)
		s.authed(OpGetOutput, s.handleOutput)(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[domain.JobID(r.PathValue("jobId"))]
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if j.started {
		j.State = s.stateFor(j.polls)
		j.polls++
	}
	writeJSON(w, http.StatusOK, j.Job)
}

func (s *Server) stateFor(poll int) domain.JobState {
	if len(s.cfg.States) == 0 {
		return domain.JobStateCompleted
	}
	if poll >= len(s.cfg.States) {
		return s.cfg.States[len(s.cfg.States)-1]
	}
	return s.cfg.States[poll]
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filename string `json:"filename"`
		Data     string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data is not base64")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[domain.JobID(r.PathValue("jobId"))]
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	j.input = data
	writeJSON(w, http.StatusOK, j.Job)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[domain.JobID(r.PathValue("jobId"))]
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if j.input == nil {
		writeError(w, http.StatusBadRequest, "no input uploaded")
		return
	}
	j.started = true
	writeJSON(w, http.StatusOK, j.Job)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[domain.JobID(r.PathValue("jobId"))]
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	filename := s.cfg.OutputFilename
	if filename == "" {
		filename = "routed.ses"
	}
	data := ""
	if !s.cfg.EmptyOutput {
		out := s.cfg.Output
		if out == nil {
			out = j.input
		}
		data = base64.StdEncoding.EncodeToString(out)
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": filename, "data": data})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
