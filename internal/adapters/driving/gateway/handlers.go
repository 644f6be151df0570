package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// sessionParams are the path parameters of session routes.
type sessionParams struct {
	UserID    string `validate:"required,max=128"`
	SessionID string `validate:"required,max=128"`
}

// findingInput is one finding in a fusion request.
type findingInput struct {
	Name       string          `json:"name" validate:"required"`
	Value      float64         `json:"value"`
	Confidence float64         `json:"confidence" validate:"gte=0,lte=1"`
	Category   string          `json:"category,omitempty"`
	Modality   domain.Modality `json:"modality" validate:"oneof=look listen inquiry palpation"`
	Weight     float64         `json:"weight"`
}

// fusionRequest is the body of POST /v1/fusion.
type fusionRequest struct {
	Findings  []findingInput         `json:"findings" validate:"dive"`
	Algorithm domain.FusionAlgorithm `json:"algorithm,omitempty" validate:"omitempty,oneof=weighted attention ensemble cross_modal"`
}

func (r fusionRequest) findings() []domain.ModalityFinding {
	out := make([]domain.ModalityFinding, len(r.Findings))
	for i, f := range r.Findings {
		out[i] = domain.ModalityFinding{
			Name:       f.Name,
			Value:      f.Value,
			Confidence: f.Confidence,
			Category:   f.Category,
			Modality:   f.Modality,
			Weight:     f.Weight,
		}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.ports.Breakers != nil {
		resp.Breakers = make(map[string]string)
		for name, state := range s.ports.Breakers.States() {
			resp.Breakers[name] = state.String()
			if state == resilience.StateOpen {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req domain.DiagnosisRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.ports.Diagnosis.GenerateReport(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/reports/"+report.ID)
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.ports.Diagnosis.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	params, ok := s.session(w, r)
	if !ok {
		return
	}

	progress, err := s.ports.Diagnosis.GetProgress(r.Context(), params.UserID, params.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	params, ok := s.session(w, r)
	if !ok {
		return
	}

	reports, err := s.ports.Diagnosis.ListReports(r.Context(), params.UserID, params.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = []domain.DiagnosisReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleFuse(w http.ResponseWriter, r *http.Request) {
	if s.ports.Fusion == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "fusion service not configured"})
		return
	}

	var req fusionRequest
	if !s.decode(w, r, &req) || !s.check(w, req) {
		return
	}

	result, err := s.ports.Fusion.FuseFindings(r.Context(), req.findings(), req.Algorithm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDifferentiate(w http.ResponseWriter, r *http.Request) {
	if s.ports.Reasoning == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "reasoning service not configured"})
		return
	}

	var evidence domain.ReasoningEvidence
	if !s.decode(w, r, &evidence) {
		return
	}

	result, err := s.ports.Reasoning.DifferentiateSyndromes(r.Context(), evidence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}

// check validates v's struct tags, answering 400 on failure.
func (s *Server) check(w http.ResponseWriter, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		err = errors.New(strings.Join(msgs, "; "))
	}
	writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
	return false
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (sessionParams, bool) {
	params := sessionParams{
		UserID:    chi.URLParam(r, "userID"),
		SessionID: chi.URLParam(r, "sessionID"),
	}
	return params, s.check(w, params)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response: %v", err)
	}
}
