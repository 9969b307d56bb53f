package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/llm"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/patients"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/visualization"
)

const (
	serviceName = "Team Bingo - Agentic Mental Health Chat"

	pingTimeout = 2 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
	Reply string `json:"reply,omitempty"`
}

type chatErrorResponse struct {
	Reply    string `json:"reply"`
	IsUrgent bool   `json:"isUrgent"`
	Error    bool   `json:"error"`
}

type GenerateSQLRequest struct {
	Question string `json:"question"`
}

type GenerateSQLResponse struct {
	SQL      string `json:"sql"`
	Question string `json:"question"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Database   string `json:"database"`
	AIProvider string `json:"ai_provider"`
	Timestamp  string `json:"timestamp"`
}

type FilterRequest struct {
	patients.Filters
	Page        int `json:"page"`
	RowsPerPage int `json:"rows_per_page"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// internalError logs err and returns the message safe to show clients.
func (s *Server) internalError(publicMsg string, err error) string {
	s.log.Error("server: request failed", "message", publicMsg, "error", err)
	return publicMsg
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Mensaje vacío",
			Reply: "Por favor, escribe tu mensaje.",
		})
		return
	}

	resp, err := s.cfg.Pipeline.Reply(r.Context(), req)
	if err != nil {
		urgent := s.cfg.Classifier.IsUrgent(req.Message)
		s.log.Error("server: chat reply failed", "error", err, "urgent", urgent)
		writeJSON(w, http.StatusInternalServerError, chatErrorResponse{
			Reply:    pipeline.FallbackReply(urgent),
			IsUrgent: urgent,
			Error:    true,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req GenerateSQLRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Pregunta vacía"})
		return
	}

	sql, err := s.cfg.Pipeline.GenerateSQL(r.Context(), req.Question)
	if err != nil {
		msg := "No se pudo generar la consulta"
		switch {
		case errors.Is(err, pipeline.ErrLLMUnavailable):
			msg = "No hay proveedor de IA configurado"
		case errors.Is(err, pipeline.ErrRejectedSQL):
			msg = "La consulta generada no está permitida"
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.internalError(msg, err)})
		return
	}
	writeJSON(w, http.StatusOK, GenerateSQLResponse{SQL: sql, Question: req.Question})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Service:    serviceName,
		Database:   "not_configured",
		AIProvider: s.cfg.Pipeline.Provider(),
		Timestamp:  s.cfg.Clock.Now().UTC().Format(time.RFC3339),
	}
	if resp.AIProvider == llm.StaticName {
		resp.AIProvider = llm.ProviderNone
	}

	if s.cfg.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.cfg.Store.Ping(ctx); err != nil {
			s.log.Warn("server: database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
		} else {
			resp.Database = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"schema": s.cfg.Pipeline.Schema()})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Base de datos no configurada"})
		return
	}

	limit := store.DefaultRecentConversations
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Parámetro limit inválido"})
			return
		}
		limit = min(n, store.MaxRecentConversations)
	}

	convs, err := s.cfg.Store.RecentConversations(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.internalError("No se pudieron cargar las conversaciones", err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs, "count": len(convs)})
}

func (s *Server) handleFilterPatients(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Patients == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Base de datos no configurada"})
		return
	}

	var req FilterRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Filtros inválidos"})
		return
	}

	page, err := s.cfg.Patients.Filter(r.Context(), req.Filters, req.Page, req.RowsPerPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.internalError("No se pudieron filtrar los pacientes", err)})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Patients == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Base de datos no configurada"})
		return
	}

	opts, err := s.cfg.Patients.Options(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.internalError("No se pudieron cargar las opciones de filtro", err)})
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

type chartFunc[T any] func(ctx context.Context, diagnosis string) (T, error)

// chart serves one visualization for the ?diagnosis= query parameter.
func chart[T any](s *Server, pick func(Visualization) chartFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Visualization == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Base de datos no configurada"})
			return
		}

		diagnosis := strings.TrimSpace(r.URL.Query().Get("diagnosis"))
		if diagnosis == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Diagnóstico requerido"})
			return
		}

		data, err := pick(s.cfg.Visualization)(r.Context(), diagnosis)
		switch {
		case errors.Is(err, visualization.ErrDiagnosisRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Diagnóstico requerido"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.internalError("No se pudo generar el gráfico", err)})
		default:
			writeJSON(w, http.StatusOK, data)
		}
	}
}
