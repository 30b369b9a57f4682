// Package functions exposes the callable functions (forensic audit and letter
// drafting) over HTTP.
package functions

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/clientdesk/internal/audit"
	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/letters"
	"github.com/Veraticus/clientdesk/internal/model"
)

const maxBodyBytes = 10 << 20

// Auditor runs forensic audits.
type Auditor interface {
	Run(ctx context.Context, clientID string, accounts []model.MergedAccount) (*model.AuditResult, error)
}

// LetterDrafter drafts and optionally stores dispute letters.
type LetterDrafter interface {
	Draft(ctx context.Context, req letters.Request) (*model.Letter, error)
	Save(ctx context.Context, clientID string, letter *model.Letter) (string, error)
}

// Server serves the callable functions.
type Server struct {
	auditor Auditor
	drafter LetterDrafter
	logger  *slog.Logger
}

// NewServer creates a server. Either dependency may be nil, in which case its
// route answers 503.
func NewServer(auditor Auditor, drafter LetterDrafter, logger *slog.Logger) *Server {
	return &Server{
		auditor: auditor,
		drafter: drafter,
		logger:  common.LoggerOrDefault(logger),
	}
}

// Routes returns the router mounting every function.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/functions", func(r chi.Router) {
		r.Post("/forensicAudit", s.forensicAudit)
		r.Post("/draftLetter", s.draftLetter)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// A non-nil tlsConfig serves HTTPS with its certificates.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("Functions server listening", "addr", addr, "tls", tlsConfig != nil)

	select {
	case err := <-errCh:
		return fmt.Errorf("functions server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down functions server: %w", err)
		}
		return nil
	}
}

type auditRequest struct {
	ClientID         string                `json:"clientId"`
	SelectedAccounts []model.MergedAccount `json:"selectedAccounts"`
}

func (s *Server) forensicAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "forensic audit is not configured"})
		return
	}

	var req auditRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.auditor.Run(r.Context(), req.ClientID, req.SelectedAccounts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit.Envelope{ForensicAudit: result})
}

type letterRequest struct {
	ClientID         string                `json:"clientId"`
	Bureau           string                `json:"bureau"`
	ReportDate       string                `json:"reportDate"`
	Context          string                `json:"context"`
	SelectedAccounts []model.MergedAccount `json:"selectedAccounts"`
	Round            int                   `json:"round"`
	Save             bool                  `json:"save"`
}

type letterResponse struct {
	ID            string `json:"id,omitempty"`
	EvidenceGuide string `json:"evidenceGuide"`
	LetterBody    string `json:"letterBody"`
}

func (s *Server) draftLetter(w http.ResponseWriter, r *http.Request) {
	if s.drafter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "letter drafting is not configured"})
		return
	}

	var req letterRequest
	if !s.decode(w, r, &req) {
		return
	}

	letter, err := s.drafter.Draft(r.Context(), letters.Request{
		ClientID:   req.ClientID,
		Bureau:     req.Bureau,
		ReportDate: req.ReportDate,
		Round:      req.Round,
		Context:    req.Context,
		Accounts:   req.SelectedAccounts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := letterResponse{EvidenceGuide: letter.EvidenceGuide, LetterBody: letter.LetterBody}
	if req.Save {
		id, err := s.drafter.Save(r.Context(), req.ClientID, letter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.ID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Function failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrMissingConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrInference), errors.Is(err, common.ErrMalformedOutput):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
