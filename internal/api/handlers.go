package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/evalboard/internal/evaluations"
)

// Response helpers

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError is the only place internal errors become HTTP statuses.
// message is the safe summary used for server errors.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var verr *evaluations.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, evaluations.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error(message,
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   message,
			Details: err.Error(),
		})
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	for name, err := range s.registry.HealthCheckAll(r.Context()) {
		if err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// Evaluation handlers

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"projectId":    s.warehouse.ProjectID,
		"bigqueryView": s.warehouse.TableID,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := s.service.Languages(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch languages.")
		return
	}

	respondJSON(w, http.StatusOK, languages)
}

func (s *Server) handleProductAreas(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("language")
	if err := evaluations.Require("language", language); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	areas, err := s.service.ProductAreas(r.Context(), language)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch product areas.")
		return
	}

	respondJSON(w, http.StatusOK, areas)
}

func (s *Server) handleRegionTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	language, productName := q.Get("language"), q.Get("product_name")
	if err := evaluations.Require("language", language, "product_name", productName); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	tags, err := s.service.RegionTags(r.Context(), language, productName)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch region tags.")
		return
	}

	respondJSON(w, http.StatusOK, tags)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	language, productName, regionTag := q.Get("language"), q.Get("product_name"), q.Get("region_tag")
	if err := evaluations.Require("language", language, "product_name", productName, "region_tag", regionTag); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	detail, err := s.service.Details(r.Context(), language, productName, regionTag)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch details.")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleFetchCode(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("url")
	if err := evaluations.Require("url", link); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	code, err := s.fetcher.Fetch(r.Context(), link)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch code.")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(code)); err != nil {
		slog.Warn("failed to write code response", "error", err)
	}
}
