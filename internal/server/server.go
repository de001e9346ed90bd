// Package server exposes audits over HTTP and streams pipeline progress over
// a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/driven"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
	"github.com/BetterCallFirewall/CertiAudit/internal/storage"
	"github.com/BetterCallFirewall/CertiAudit/internal/websocket"
)

// Auditor is the part of the pipeline the server needs.
type Auditor interface {
	Analyze(ctx context.Context, req driven.AnalyzeRequest) (*models.AuditReport, error)
}

// PipelineFactory builds an auditor for one project type. Errors wrapping
// config.ErrConfiguration are reported to clients as bad requests.
type PipelineFactory func(pt config.ProjectType, events driven.Broadcaster) (Auditor, error)

// AuditRequest is the body of POST /api/audits.
type AuditRequest struct {
	File   string `json:"file"`
	Type   string `json:"type,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Intent string `json:"intent,omitempty"`
	PoC    bool   `json:"poc,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	cfg         *config.Config
	store       *storage.MemoryStorage
	hub         *websocket.Hub
	newPipeline PipelineFactory
	httpServer  *http.Server
}

func NewServer(cfg *config.Config, store *storage.MemoryStorage, hub *websocket.Hub, factory PipelineFactory) *Server {
	s := &Server{
		cfg:         cfg,
		store:       store,
		hub:         hub,
		newPipeline: factory,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/audits", s.handleCreateAudit)
	mux.HandleFunc("GET /api/audits", s.handleListAudits)
	mux.HandleFunc("GET /api/audits/{id}", s.handleGetAudit)
	mux.HandleFunc("DELETE /api/audits/{id}", s.handleDeleteAudit)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	return mux
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("🌐 Starting audit service")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.File == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is required"})
		return
	}

	code, err := os.ReadFile(req.File)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: fmt.Sprintf("cannot read %s: %v", req.File, err)})
		return
	}

	var explicit config.ProjectType
	if req.Type != "" {
		if explicit, err = config.ParseProjectType(req.Type); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	projectType := config.DetectProjectType(req.File, explicit, s.cfg.Project.Type)
	pipeline, err := s.newPipeline(projectType, s.hub)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := pipeline.Analyze(r.Context(), driven.AnalyzeRequest{
		FilePath:     req.File,
		ContractCode: string(code),
		Mode:         mode,
		Intent:       req.Intent,
		GeneratePoC:  req.PoC,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rec := s.store.StoreAudit(&storage.AuditRecord{
		FilePath:    req.File,
		ProjectType: projectType,
		Mode:        mode,
		Report:      report,
	})
	s.hub.Broadcast(driven.MessageAuditReport, rec)
	log.Info().Str("id", rec.ID).Str("file", rec.FilePath).Int("vulnerabilities", len(report.Vulnerabilities)).
		Msg("💾 Stored audit")

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListAudits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetAllAudits())
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.store.GetAudit(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("audit %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.DeleteAudit(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("audit %s not found", id)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, config.ErrConfiguration) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
