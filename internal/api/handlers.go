package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"adscrub/internal/domain"
)

// handleScanRequest runs one full scan cycle against the requested page and
// returns {adsBlocked, totalScanned}. The request may carry a settings
// override for the cycle.
func (s *Server) handleScanRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	settings := s.config.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	if !req.Force {
		recent, err := s.redisStore.IsRecentlyScanned(r.Context(), req.URL)
		if err != nil {
			s.logger.Error("failed to check scan dedupe", zap.String("url", req.URL), zap.Error(err))
		}
		if recent {
			s.logger.Info("skipping recently scanned URL", zap.String("url", req.URL))
			s.respondWithJSON(w, http.StatusOK, domain.ScanResult{URL: req.URL, Skipped: "recently_scanned"})
			return
		}
	}

	result, err := s.runner.ScanURL(r.Context(), req.URL, settings)
	if err != nil {
		s.logger.Error("scan failed", zap.String("url", req.URL), zap.Error(err))
		s.metrics.IncError("scan_failed")
		s.respondWithError(w, http.StatusBadGateway, "Scan failed: "+err.Error())
		return
	}

	if result.Skipped == "" {
		ttl := time.Duration(s.config.DeduplicationHours) * time.Hour
		if err := s.redisStore.MarkScanned(r.Context(), req.URL, ttl); err != nil {
			s.logger.Error("failed to mark URL as scanned", zap.String("url", req.URL), zap.Error(err))
		}
		if settings.TrackStatistics && result.AdsBlocked > 0 {
			if err := s.redisStore.IncrBlocked(r.Context(), result.Domain, result.AdsBlocked); err != nil {
				s.logger.Error("failed to bump blocked counter", zap.Error(err))
			}
		}
	}

	s.respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatsRequest(w http.ResponseWriter, r *http.Request) {
	domainParam := r.URL.Query().Get("domain")
	if domainParam == "" {
		s.respondWithError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	stats, err := s.pgStore.DomainStats(r.Context(), domainParam)
	if err != nil {
		if err.Error() == "not_found" {
			s.respondWithError(w, http.StatusNotFound, "No scans recorded for domain")
			return
		}
		s.logger.Error("failed to get domain stats", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve stats")
		return
	}

	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	d := chi.URLParam(r, "domain")
	if err := s.redisStore.AddToWhitelist(r.Context(), d); err != nil {
		s.logger.Error("failed to whitelist domain", zap.String("domain", d), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not update whitelist")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"whitelisted": d})
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	d := chi.URLParam(r, "domain")
	if err := s.redisStore.RemoveFromWhitelist(r.Context(), d); err != nil {
		s.logger.Error("failed to remove domain from whitelist", zap.String("domain", d), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not update whitelist")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"removed": d})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	// A down classifier degrades to local heuristics; report it but don't
	// fail the service on it.
	if err := s.classifier.Health(ctx); err != nil {
		healthStatus["classifier"] = "unhealthy"
		s.logger.Warn("health check failed for classifier", zap.Error(err))
	} else {
		healthStatus["classifier"] = "healthy"
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}

	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
