// Package callback is the single ingestion point for provider callbacks. It
// does not interpret quotes; it forwards them to the owning workflow run as
// signals, where the collector validates them.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"

	"go-temporal-procurement/procurement/types"
)

const (
	QuoteEventSignal        = "quote-event"
	ConfirmationEventSignal = "confirmation-event"

	maxBodyBytes = 1 << 20
)

// Signaler is the part of client.Client the server needs
type Signaler interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
}

// QuoteURL is the callback URL a quote call session reports to
func QuoteURL(baseURL, workflowID string) string {
	return strings.TrimRight(baseURL, "/") + "/runs/" + url.PathEscape(workflowID) + "/quotes"
}

// ConfirmationURL is the callback URL a confirmation call session reports to
func ConfirmationURL(baseURL, workflowID string) string {
	return strings.TrimRight(baseURL, "/") + "/runs/" + url.PathEscape(workflowID) + "/confirmations"
}

type Server struct {
	signaler Signaler
	logger   *slog.Logger
	timeout  time.Duration
}

func NewServer(signaler Signaler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{signaler: signaler, logger: logger, timeout: 10 * time.Second}
}

// Handler exposes the callback and health endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs/{workflowID}/quotes", s.handleQuote)
	mux.HandleFunc("POST /runs/{workflowID}/confirmations", s.handleConfirmation)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Callback server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("callback server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var event types.QuoteEvent
	if !s.decode(w, r, &event) {
		return
	}
	if event.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	s.forward(w, r, QuoteEventSignal, event.SessionID, event)
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	var event types.ConfirmationEvent
	if !s.decode(w, r, &event) {
		return
	}
	if event.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	s.forward(w, r, ConfirmationEventSignal, event.SessionID, event)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.logger.Warn("Rejected undecodable callback", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, signal, sessionID string, payload any) {
	workflowID := r.PathValue("workflowID")
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	err := s.signaler.SignalWorkflow(ctx, workflowID, "", signal, payload)
	var notFound *serviceerror.NotFound
	switch {
	case err == nil:
		s.logger.Info("Callback forwarded", "workflowID", workflowID, "signal", signal, "session", sessionID)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.As(err, &notFound):
		// the run already finished; the event is late by definition
		s.logger.Warn("Discarded callback for closed run", "workflowID", workflowID, "signal", signal, "session", sessionID)
		writeError(w, http.StatusNotFound, "run not found")
	default:
		s.logger.Error("Failed to signal workflow", "workflowID", workflowID, "signal", signal, "error", err)
		writeError(w, http.StatusBadGateway, "could not deliver event")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
