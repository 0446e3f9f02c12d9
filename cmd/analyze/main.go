// Command analyze runs the analysis pipeline once over a JSON payload file
// and prints the result, for local inspection without a server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
	"github.com/ahmettb/cloud-based-finance-app/internal/config"
	"github.com/ahmettb/cloud-based-finance-app/internal/enrich"
)

func main() {
	var skipLLM bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "analyze <payload.json>",
		Short: "Run the financial analysis pipeline over a payload file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			log := logrus.New()
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.JSONFormatter{})
			if level, err := logrus.ParseLevel(logLevel); err == nil {
				log.SetLevel(level)
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			var req analysis.AnalyzeRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parsing payload: %w", err)
			}
			if skipLLM {
				req.SkipLLM = true
			}

			var enricher analysis.Enricher
			if !cfg.LLMDisabled && !req.SkipLLM {
				gen := enrich.NewAnthropicGenerator(cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature)
				enricher = enrich.New(gen, log, cfg.LLMInputTokenPrice, cfg.LLMOutputTokenPrice)
			}

			orchestrator := analysis.NewOrchestrator(analysis.OrchestratorConfig{
				ZThreshold:   cfg.AnomalyZThreshold,
				IQRFactor:    cfg.AnomalyIQRFactor,
				ModelVersion: cfg.LLMModel,
			}, enricher, log)

			result := orchestrator.Run(context.Background(), req)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "skip the LLM enrichment stage")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
