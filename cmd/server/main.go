package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
	"github.com/ahmettb/cloud-based-finance-app/internal/config"
	"github.com/ahmettb/cloud-based-finance-app/internal/enrich"
	"github.com/ahmettb/cloud-based-finance-app/internal/service"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	var enricher analysis.Enricher
	if cfg.LLMDisabled {
		log.Info("LLM enrichment disabled, every response uses the fallback narrative")
	} else {
		gen := enrich.NewAnthropicGenerator(cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature)
		enricher = enrich.New(gen, log, cfg.LLMInputTokenPrice, cfg.LLMOutputTokenPrice)
	}

	orchestrator := analysis.NewOrchestrator(analysis.OrchestratorConfig{
		ZThreshold:   cfg.AnomalyZThreshold,
		IQRFactor:    cfg.AnomalyIQRFactor,
		ModelVersion: cfg.LLMModel,
	}, enricher, log)

	svc, err := service.NewAnalysisService(orchestrator, cfg.CacheTTL, cfg.CacheMaxCost, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize analysis service")
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", svc.HandleAnalyze)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
			"X-Request-ID",
		},
		AllowCredentials: true,
	})
	handler := c.Handler(mux)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	log.WithField("port", cfg.Port).Info("starting analysis server")
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
