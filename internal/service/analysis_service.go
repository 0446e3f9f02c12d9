// Package service exposes the analysis pipeline over HTTP and fronts it
// with a short-lived response cache.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/sirupsen/logrus"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
)

// AnalysisService runs analyses and caches full responses by content
// signature. Two requests carrying the same aggregates within the TTL share
// one pipeline run and one LLM round-trip.
type AnalysisService struct {
	orchestrator *analysis.Orchestrator
	cache        *ristretto.Cache
	cacheTTL     time.Duration
	log          *logrus.Logger
}

// NewAnalysisService builds the service. A zero ttl disables caching.
func NewAnalysisService(orchestrator *analysis.Orchestrator, cacheTTL time.Duration, cacheMaxCost int64, log *logrus.Logger) (*AnalysisService, error) {
	if log == nil {
		log = logrus.New()
	}
	if cacheMaxCost <= 0 {
		cacheMaxCost = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &AnalysisService{
		orchestrator: orchestrator,
		cache:        cache,
		cacheTTL:     cacheTTL,
		log:          log,
	}, nil
}

// Analyze serves from cache when the content signature matches, otherwise
// runs the pipeline and stores the result.
func (s *AnalysisService) Analyze(ctx context.Context, req analysis.AnalyzeRequest) *analysis.AnalyzeResult {
	key := analysis.CacheKey(analysis.NormalizePeriod(req.Period), req.Transactions, req.MonthlyTotals)
	if s.cacheTTL > 0 {
		if cached, ok := s.cache.Get(key); ok {
			if result, ok := cached.(*analysis.AnalyzeResult); ok {
				s.log.WithFields(logrus.Fields{
					"module":     "analysis_service",
					"cache_key":  key,
					"request_id": req.RequestID,
				}).Info("serving analysis from cache")
				return result
			}
		}
	}

	result := s.orchestrator.Run(ctx, req)
	if s.cacheTTL > 0 && result.Meta.Error == "" {
		s.cache.SetWithTTL(key, result, 1, s.cacheTTL)
	}
	return result
}

// HandleAnalyze is the POST /v1/analyze endpoint.
func (s *AnalysisService) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed", ""))
		return
	}
	start := time.Now()

	var req analysis.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.WithField("module", "analysis_service").WithError(err).Warn("rejecting malformed analyze payload")
		body := errorBody("invalid request payload", err.Error())
		body["elapsed_ms"] = time.Since(start).Milliseconds()
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	result := s.Analyze(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// Close releases the cache resources.
func (s *AnalysisService) Close() {
	s.cache.Close()
}

func errorBody(message, exception string) map[string]any {
	e := map[string]any{"message": message}
	if exception != "" {
		e["exception"] = exception
	}
	return map[string]any{"error": e}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
