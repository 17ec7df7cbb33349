package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/internal/store"
)

const defaultFindLimit = 10

type queryRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type findResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k, ok := s.intParam(w, r, "k", s.config.Query.DefaultK)
	if !ok {
		return
	}
	s.logger.Debug("recommendations request", zap.String("id", id), zap.Int("k", k))
	res, err := s.engine.QueryByID(r.Context(), id, k)
	if err != nil {
		s.respondErr(w, "recommendations failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k, ok := s.intParam(w, r, "k", s.config.Query.DefaultK)
	if !ok {
		return
	}
	radius := s.config.Query.Radius
	if v := r.URL.Query().Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			s.respondError(w, http.StatusBadRequest, "radius must be a non-negative number")
			return
		}
		radius = f
	}
	s.logger.Debug("range request", zap.String("id", id), zap.Float64("radius", radius), zap.Int("k", k))
	res, err := s.engine.RangeByID(r.Context(), id, radius, k)
	if err != nil {
		s.respondErr(w, "range query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.K == 0 {
		req.K = s.config.Query.DefaultK
	}
	res, err := s.engine.QueryByVector(r.Context(), req.Vector, req.K)
	if err != nil {
		s.respondErr(w, "vector query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleFindBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := s.intParam(w, r, "limit", defaultFindLimit)
	if !ok {
		return
	}
	hits, err := s.engine.FindBooks(r.Context(), q, limit)
	if err != nil {
		s.respondErr(w, "book lookup failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, findResponse{Count: len(hits), Results: hits})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	report, err := s.rebuilder.Rebuild(r.Context())
	if err != nil {
		s.respondErr(w, "rebuild failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.respondErr(w, "status failed", err)
		return
	}
	resp := map[string]interface{}{
		"index": status,
		"config": map[string]interface{}{
			"store_backend": s.config.Store.Backend,
			"encoding":      s.config.Encoding.Kind,
			"dimensions":    s.config.Encoding.Dimensions,
			"default_k":     s.config.Query.DefaultK,
			"max_k":         s.config.Query.MaxK,
			"radius":        s.config.Query.Radius,
			"data_path":     s.config.Data.Path,
		},
	}
	paths := []string{s.config.Data.KeywordIndexPath}
	if s.config.Store.Backend == store.BackendSQLite {
		paths = append(paths, s.config.Store.SQLitePath)
	}
	if diskBytes, err := store.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam reads an optional positive integer query parameter.
func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDimensionMismatch), errors.Is(err, models.ErrInvalidK):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrStoreConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
