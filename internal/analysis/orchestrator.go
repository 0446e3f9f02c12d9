package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisVersion tags every response; bump it when scoring or card
// semantics change so cached entries from older revisions are ignorable.
const AnalysisVersion = "v8"

const (
	maxInsightCards = 12
	maxNextActions  = 8

	// Inputs below both bounds carry too little signal to justify an LLM
	// round-trip.
	autoSkipTxCount      = 6
	autoSkipMonthlyCount = 2
)

// OrchestratorConfig carries the tunable detection thresholds and the model
// label reported in meta.
type OrchestratorConfig struct {
	ZThreshold   float64
	IQRFactor    float64
	ModelVersion string
}

// Orchestrator runs the full pipeline: detect, forecast, mine, build cards,
// score, enrich and assemble. Every stage is panic-isolated so one failing
// detector degrades its own output only.
type Orchestrator struct {
	detector   *AnomalyDetector
	forecaster *ForecastEngine
	miner      *PatternMiner
	builder    *InsightBuilder
	scorer     *HealthScorer
	enricher   Enricher
	log        *logrus.Logger

	modelVersion string
}

// NewOrchestrator wires the pipeline. A nil enricher disables the LLM stage;
// every response then carries the deterministic fallback narrative.
func NewOrchestrator(cfg OrchestratorConfig, enricher Enricher, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	detector := NewAnomalyDetector()
	if cfg.ZThreshold > 0 {
		detector.ZThreshold = cfg.ZThreshold
	}
	if cfg.IQRFactor > 0 {
		detector.IQRFactor = cfg.IQRFactor
	}
	modelVersion := cfg.ModelVersion
	if modelVersion == "" {
		modelVersion = "deterministic"
	}
	return &Orchestrator{
		detector:     detector,
		forecaster:   NewForecastEngine(),
		miner:        NewPatternMiner(),
		builder:      NewInsightBuilder(detector.ZThreshold),
		scorer:       NewHealthScorer(),
		enricher:     enricher,
		log:          log,
		modelVersion: modelVersion,
	}
}

// Run executes the pipeline for one request. It always returns a complete,
// well-formed result; degraded stages surface through meta and the fallback
// narrative rather than as errors.
func (o *Orchestrator) Run(ctx context.Context, req AnalyzeRequest) *AnalyzeResult {
	start := time.Now()

	period := NormalizePeriod(req.Period)
	persona := req.Persona.Normalize()

	logFields := logrus.Fields{
		"module":     "orchestrator",
		"period":     period,
		"request_id": req.RequestID,
		"user_id":    req.UserID,
	}
	o.log.WithFields(logFields).WithFields(logrus.Fields{
		"tx_count":      len(req.Transactions),
		"monthly_count": len(req.MonthlyTotals),
	}).Info("analysis started")

	stats := InputStats{
		MonthlyCount:     len(req.MonthlyTotals),
		TransactionCount: len(req.Transactions),
		BudgetCount:      len(req.Budgets),
		GoalCount:        len(req.Goals),
	}
	cacheKey := CacheKey(period, req.Transactions, req.MonthlyTotals)

	if len(req.Transactions) == 0 && len(req.MonthlyTotals) == 0 {
		o.log.WithFields(logFields).Warn("no input data, returning placeholder")
		return o.emptyResult(period, cacheKey, stats, start)
	}

	var anomalies []Anomaly
	var forecast *ForecastResult
	var patterns *PatternSet
	o.stage(ctx, "anomaly_detection", logFields, func() {
		anomalies = o.detector.Detect(req.Transactions)
	})
	o.stage(ctx, "forecast", logFields, func() {
		forecast = o.forecaster.Forecast(req.MonthlyTotals)
	})
	o.stage(ctx, "pattern_mining", logFields, func() {
		patterns = o.miner.Mine(req.Transactions, req.MonthlyTotals, period)
	})

	var cards []InsightCard
	o.stage(ctx, "insight_building", logFields, func() {
		cards = append(cards, o.builder.FromAnomalies(anomalies, period)...)
		cards = append(cards, o.builder.FromForecast(forecast, period)...)
		cards = append(cards, o.builder.FromPatterns(patterns, period)...)
		cards = append(cards, o.builder.FromBudgetAlerts(req.Budgets)...)
		cards = append(cards, o.builder.FromFinancialHealth(req.FinancialHealth, req.Goals)...)
	})
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Priority.rank() < cards[j].Priority.rank()
	})

	var health *HealthScore
	o.stage(ctx, "health_scoring", logFields, func() {
		health = o.scorer.Score(req.FinancialHealth, req.Budgets, req.Goals, len(anomalies))
	})

	coach, cards, llmObs := o.enrichStage(ctx, req, period, persona, cards, forecast, patterns, logFields)

	actions := buildNextActions(cards)

	if len(cards) > maxInsightCards {
		cards = cards[:maxInsightCards]
	}
	if cards == nil {
		cards = []InsightCard{}
	}
	if len(anomalies) > 10 {
		anomalies = anomalies[:10]
	}
	if anomalies == nil {
		anomalies = []Anomaly{}
	}

	result := &AnalyzeResult{
		Coach:           coach,
		Insights:        cards,
		Forecast:        forecast,
		Anomalies:       anomalies,
		Patterns:        patterns,
		NextActions:     actions,
		FinancialHealth: req.FinancialHealth,
		HealthScore:     health,
		GoalsSummary: GoalsSummary{
			ActiveCount: len(activeGoals(req.Goals)),
			TotalCount:  len(req.Goals),
		},
		Meta: Meta{
			ModelVersion:      o.modelVersion,
			GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
			AnalysisVersion:   AnalysisVersion,
			Period:            period,
			CacheKey:          cacheKey,
			LLMObservability:  llmObs,
			InputStats:        stats,
			TotalProcessingMS: time.Since(start).Milliseconds(),
		},
	}

	o.log.WithFields(logFields).WithFields(logrus.Fields{
		"elapsed_ms":  result.Meta.TotalProcessingMS,
		"cards":       len(cards),
		"anomalies":   len(anomalies),
		"llm_status":  llmObs.Status,
		"next_action": len(actions),
	}).Info("analysis complete")
	return result
}

// stage runs one pipeline step with panic isolation and per-step timing.
func (o *Orchestrator) stage(ctx context.Context, name string, fields logrus.Fields, fn func()) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(fields).WithFields(logrus.Fields{
				"step":       name,
				"elapsed_ms": time.Since(start).Milliseconds(),
			}).Errorf("stage panicked: %v", r)
			return
		}
		o.log.WithFields(fields).WithFields(logrus.Fields{
			"step":       name,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("stage complete")
	}()
	if ctx.Err() != nil {
		return
	}
	fn()
}

// enrichStage decides whether the LLM runs and degrades to the fallback
// narrative on skip, failure or a nil enricher.
func (o *Orchestrator) enrichStage(ctx context.Context, req AnalyzeRequest, period string, persona Persona,
	cards []InsightCard, forecast *ForecastResult, patterns *PatternSet, fields logrus.Fields) (*Coach, []InsightCard, LLMObservability) {

	autoSkip := len(req.Transactions) < autoSkipTxCount && len(req.MonthlyTotals) < autoSkipMonthlyCount

	switch {
	case o.enricher == nil:
		return fallbackCoach(forecast, cards), cards, LLMObservability{Status: "skipped", SkipReason: "disabled"}
	case req.SkipLLM:
		return fallbackCoach(forecast, cards), cards, LLMObservability{Status: "skipped", SkipReason: "requested"}
	case autoSkip:
		o.log.WithFields(fields).Info("input below enrichment threshold, skipping LLM")
		return fallbackCoach(forecast, cards), cards, LLMObservability{Status: "skipped", SkipReason: "insufficient_data"}
	}

	out, err := o.enricher.Enrich(ctx, EnrichInput{
		Period:    period,
		Persona:   persona,
		Insights:  cards,
		Forecast:  forecast,
		Patterns:  patterns,
		RequestID: req.RequestID,
		UserID:    req.UserID,
	})
	if err != nil || out == nil {
		obs := LLMObservability{Status: "error"}
		if err != nil {
			obs.Error = err.Error()
		}
		if out != nil {
			obs = out.Observability
			obs.Status = "error"
			if err != nil && obs.Error == "" {
				obs.Error = err.Error()
			}
		}
		o.log.WithFields(fields).WithError(err).Warn("enrichment failed, using fallback narrative")
		return fallbackCoach(forecast, cards), cards, obs
	}
	coach := out.Coach
	if coach == nil {
		coach = fallbackCoach(forecast, cards)
	}
	enriched := cards
	if len(out.Insights) > 0 {
		enriched = out.Insights
	}
	return coach, enriched, out.Observability
}

// emptyResult is the short-circuit response for a payload with no
// transactions and no monthly history.
func (o *Orchestrator) emptyResult(period, cacheKey string, stats InputStats, start time.Time) *AnalyzeResult {
	return &AnalyzeResult{
		Coach: &Coach{
			Headline:   "Not enough data yet",
			Summary:    "Add a few transactions and the analysis will build your financial picture.",
			FocusAreas: []string{"Record your spending", "Add your income"},
		},
		Insights:    []InsightCard{},
		Anomalies:   []Anomaly{},
		Patterns:    &PatternSet{},
		NextActions: []NextAction{},
		GoalsSummary: GoalsSummary{
			ActiveCount: 0,
			TotalCount:  0,
		},
		Meta: Meta{
			ModelVersion:      o.modelVersion,
			GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
			AnalysisVersion:   AnalysisVersion,
			Period:            period,
			CacheKey:          cacheKey,
			LLMObservability:  LLMObservability{Status: "skipped", SkipReason: "insufficient_data"},
			InputStats:        stats,
			TotalProcessingMS: time.Since(start).Milliseconds(),
			Error:             "insufficient_data",
		},
	}
}

// fallbackCoach derives a deterministic narrative from the forecast trend
// and the highest-priority cards.
func fallbackCoach(forecast *ForecastResult, cards []InsightCard) *Coach {
	headline := "Your finances are holding steady"
	summary := "Spending looks stable this period. Check the cards below for the details."
	if forecast != nil {
		switch forecast.Trend {
		case TrendUp:
			headline = "Spending is trending up"
			summary = fmt.Sprintf("Next month is projected at %.0f TL. Review the cards below to see where the increase comes from.",
				forecast.NextMonthEstimate)
		case TrendDown:
			headline = "Spending is trending down, keep it up"
			summary = fmt.Sprintf("Next month is projected at %.0f TL. Your current habits are paying off.",
				forecast.NextMonthEstimate)
		}
	}
	var focus []string
	for _, c := range cards {
		if len(focus) >= 3 {
			break
		}
		if c.Priority == SeverityHigh || c.Priority == SeverityMedium {
			focus = append(focus, truncate(c.Title, 60))
		}
	}
	if len(focus) == 0 {
		focus = []string{"Keep your budget on track", "Grow your savings"}
	}
	return &Coach{Headline: headline, Summary: summary, FocusAreas: focus}
}

// buildNextActions extracts up to 8 deduplicated follow-ups from the cards,
// highest priority first. HIGH cards without explicit actions still surface
// as a review task.
func buildNextActions(cards []InsightCard) []NextAction {
	var actions []NextAction
	seen := make(map[string]bool)

	add := func(title string, source string, priority Severity) {
		if len(actions) >= maxNextActions {
			return
		}
		key := truncate(title, 40)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		due := 14
		if priority == SeverityHigh {
			due = 7
		}
		actions = append(actions, NextAction{
			Title:         truncate(title, 100),
			SourceInsight: source,
			Priority:      priority,
			DueInDays:     due,
		})
	}

	for _, c := range cards {
		if len(c.Actions) == 0 {
			if c.Priority == SeverityHigh {
				add(fmt.Sprintf("Review: %s", truncate(c.Title, 80)), c.ID, c.Priority)
			}
			continue
		}
		taken := 0
		for _, a := range c.Actions {
			if taken >= 2 {
				break
			}
			add(a, c.ID, c.Priority)
			taken++
		}
	}

	if len(actions) == 0 {
		actions = []NextAction{
			{Title: "Review this month's spending by category", Priority: SeverityMedium, DueInDays: 14},
			{Title: "Check your budget limits against actuals", Priority: SeverityMedium, DueInDays: 14},
			{Title: "Set or update one savings goal", Priority: SeverityLow, DueInDays: 14},
		}
	}
	return actions
}

// NormalizePeriod defaults an empty period to the current UTC month.
func NormalizePeriod(period string) string {
	if period == "" {
		return time.Now().UTC().Format("2006-01")
	}
	return period
}

// CacheKey derives a deterministic content signature from the analysis
// inputs. Same period and same aggregates produce the same key, so a repeat
// request can be served from cache without re-running the LLM.
func CacheKey(period string, transactions []Transaction, monthlyTotals []MonthlyTotal) string {
	var total float64
	for _, m := range monthlyTotals {
		total += sf(m.Total)
	}
	payload, _ := json.Marshal(map[string]any{
		"period":        period,
		"tx_count":      len(transactions),
		"monthly_count": len(monthlyTotals),
		"total":         round2(total),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}
