package enrich

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
)

const (
	maxCardTitleLen   = 70
	maxCardSummaryLen = 180
	maxActionLen      = 100
	maxCardActions    = 3
)

// modelCoach is the coach object the model returns.
type modelCoach struct {
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	FocusAreas []string `json:"focus_areas"`
}

// cardEnrichment is one rewritten card; id selects the target card and is
// never trusted beyond lookup.
type cardEnrichment struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
}

// modelOutput is the full JSON envelope the model must return.
type modelOutput struct {
	Coach           *modelCoach      `json:"coach"`
	CardEnrichments []cardEnrichment `json:"card_enrichments"`
}

// Enricher rewrites card copy and produces the coach narrative through a
// TextGenerator. It implements analysis.Enricher.
type Enricher struct {
	gen              TextGenerator
	log              *logrus.Logger
	inputTokenPrice  float64
	outputTokenPrice float64
}

// New builds an enricher. Token prices are USD per token and only feed the
// reported cost estimate.
func New(gen TextGenerator, log *logrus.Logger, inputTokenPrice, outputTokenPrice float64) *Enricher {
	if log == nil {
		log = logrus.New()
	}
	return &Enricher{
		gen:              gen,
		log:              log,
		inputTokenPrice:  inputTokenPrice,
		outputTokenPrice: outputTokenPrice,
	}
}

// Enrich runs one model round-trip. Cards are copied, never mutated in
// place, and only applied when validation passes. A hard model failure
// returns an error; the caller owns the fallback narrative.
func (e *Enricher) Enrich(ctx context.Context, in analysis.EnrichInput) (*analysis.EnrichOutput, error) {
	if len(in.Insights) == 0 {
		return &analysis.EnrichOutput{
			Insights:      in.Insights,
			Observability: analysis.LLMObservability{Status: "skipped", SkipReason: "no_insights"},
		}, nil
	}

	prompt := buildPrompt(in)
	system := systemPrompt(in.Persona)

	fields := logrus.Fields{
		"module":     "llm_enricher",
		"request_id": in.RequestID,
		"user_id":    in.UserID,
		"period":     in.Period,
	}
	e.log.WithFields(fields).WithFields(logrus.Fields{
		"step":         "llm_start",
		"prompt_chars": len(prompt),
	}).Info("LLM enrichment starting")

	start := time.Now()
	gen, err := e.gen.Generate(ctx, system, prompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		e.log.WithFields(fields).WithFields(logrus.Fields{
			"step":       "llm_error",
			"elapsed_ms": elapsed,
		}).WithError(err).Error("LLM enrichment failed")
		return nil, err
	}

	cost := math.Round((float64(gen.InputTokens)*e.inputTokenPrice+
		float64(gen.OutputTokens)*e.outputTokenPrice)*1e6) / 1e6

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"step":       "llm_done",
		"elapsed_ms": elapsed,
		"tokens_in":  gen.InputTokens,
		"tokens_out": gen.OutputTokens,
		"cost_usd":   cost,
	}).Info("LLM enrichment completed")

	out := parseModelJSON(gen.Text)
	validation := validateOutput(out, in.Insights)
	flags := detectHallucination(out, prompt)
	if len(flags) > 0 {
		e.log.WithFields(fields).Warnf("LLM hallucination flags detected: %v", flags)
	}

	obs := analysis.LLMObservability{
		Status:             "success",
		InputTokens:        gen.InputTokens,
		OutputTokens:       gen.OutputTokens,
		ElapsedMS:          elapsed,
		CostUSD:            cost,
		OutputValid:        validation.valid,
		ValidationWarnings: validation.warnings,
		HallucinationFlags: flags,
		RawOutputLength:    len(gen.Text),
	}

	insights := in.Insights
	if validation.valid {
		insights = applyEnrichments(in.Insights, out.CardEnrichments)
	} else {
		e.log.WithFields(fields).Warnf("LLM output validation failed, keeping raw insights: %v", validation.warnings)
	}

	var coach *analysis.Coach
	if out.Coach != nil && out.Coach.Headline != "" {
		coach = &analysis.Coach{
			Headline:   out.Coach.Headline,
			Summary:    out.Coach.Summary,
			FocusAreas: out.Coach.FocusAreas,
		}
	}

	return &analysis.EnrichOutput{
		Insights:      insights,
		Coach:         coach,
		Observability: obs,
	}, nil
}

// applyEnrichments copies the cards and overlays the model rewrites, with
// per-field length caps. ID and Type always stay as computed.
func applyEnrichments(cards []analysis.InsightCard, enrichments []cardEnrichment) []analysis.InsightCard {
	if len(enrichments) == 0 {
		return cards
	}
	byID := make(map[string]cardEnrichment, len(enrichments))
	for _, e := range enrichments {
		if e.ID != "" {
			byID[e.ID] = e
		}
	}
	out := make([]analysis.InsightCard, len(cards))
	copy(out, cards)
	for i := range out {
		e, ok := byID[out[i].ID]
		if !ok {
			continue
		}
		if e.Title != "" {
			out[i].Title = truncateRunes(e.Title, maxCardTitleLen)
		}
		if e.Summary != "" {
			out[i].Summary = truncateRunes(e.Summary, maxCardSummaryLen)
		}
		if len(e.Actions) > 0 {
			actions := e.Actions
			if len(actions) > maxCardActions {
				actions = actions[:maxCardActions]
			}
			capped := make([]string, len(actions))
			for j, a := range actions {
				capped[j] = truncateRunes(a, maxActionLen)
			}
			out[i].Actions = capped
		}
	}
	return out
}

// parseModelJSON extracts the JSON envelope from the raw completion,
// tolerating code fences and surrounding prose. An unparsable completion
// yields an empty envelope, which validation then rejects.
func parseModelJSON(raw string) *modelOutput {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return &out
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			return &out
		}
	}
	return &modelOutput{}
}

func truncateRunes(s string, maxLen int) string {
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen])
	}
	return s
}
