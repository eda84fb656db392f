// Package server exposes the coordinator over HTTP for operator tooling
// and notification callbacks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelops/warden/internal/approval"
	"github.com/sentinelops/warden/internal/audit"
	"github.com/sentinelops/warden/internal/coordinator"
	"github.com/sentinelops/warden/internal/decision"
	"github.com/sentinelops/warden/internal/graph"
	"github.com/sentinelops/warden/internal/store"
	"github.com/sentinelops/warden/internal/task"
)

// Server routes HTTP requests to the coordinator and its collaborators.
type Server struct {
	coord     *coordinator.Coordinator
	manager   *task.Manager
	trail     *audit.Trail
	approvals *approval.Workflow
	router    chi.Router
}

// New builds the server and its route table.
func New(coord *coordinator.Coordinator, manager *task.Manager, trail *audit.Trail, approvals *approval.Workflow) *Server {
	s := &Server{
		coord:     coord,
		manager:   manager,
		trail:     trail,
		approvals: approvals,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleSubmit)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Post("/tasks/{taskID}/cancel", s.handleCancelTask)
		r.Post("/tasks/{taskID}/override", s.handleOverride)
		r.Get("/tasks/{taskID}/audit", s.handleAudit)
		r.Get("/approvals", s.handleListApprovals)
		r.Post("/approvals/{requestID}/resolve", s.handleResolveApproval)
		r.Post("/callbacks/notifications", s.handleNotificationCallback)
		r.Get("/stats", s.handleStats)
		r.Get("/healthz", s.handleHealthz)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var report coordinator.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if report.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	outcome, err := s.coord.HandleReport(r.Context(), report)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	tasks := s.manager.List(status)
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.manager.Get(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled via api"
	}

	cancelled, err := s.coord.CancelTask(r.Context(), chi.URLParam(r, "taskID"), req.Reason)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

type overrideRequest struct {
	Risk    decision.RiskLevel    `json:"risk"`
	Urgency decision.UrgencyLevel `json:"urgency"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if err := s.manager.Override(taskID, req.Risk, req.Urgency); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	t, err := s.manager.Get(taskID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, err := s.manager.Get(taskID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	records, err := s.trail.List(taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	open, err := s.approvals.ListOpen()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if open == nil {
		open = []*approval.Request{}
	}
	writeJSON(w, http.StatusOK, open)
}

type resolveRequest struct {
	Approved  bool   `json:"approved"`
	Responder string `json:"responder"`
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Responder == "" {
		req.Responder = "api"
	}

	resolved, err := s.coord.ResolveApproval(r.Context(), chi.URLParam(r, "requestID"), req.Approved, req.Responder)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

type callbackRequest struct {
	MessageID string `json:"message_id"`
	Approved  bool   `json:"approved"`
	Responder string `json:"responder"`
}

// handleNotificationCallback resolves an approval from a notification
// channel reply, keyed by the delivered message ID.
func (s *Server) handleNotificationCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}
	if req.Responder == "" {
		req.Responder = "callback"
	}

	resolved, err := s.coord.ResolveApprovalByMessage(r.Context(), req.MessageID, req.Approved, req.Responder)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Stats())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, approval.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrValidation),
		errors.Is(err, store.ErrUnknownDependency),
		errors.Is(err, graph.ErrUnknownDependency),
		errors.Is(err, graph.ErrCycleDetected):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, approval.ErrAlreadyResolved), errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
