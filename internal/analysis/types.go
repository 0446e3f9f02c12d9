// Package analysis implements the stateless financial-analytics engine:
// anomaly detection, forecasting, pattern mining, insight card assembly,
// health scoring and pipeline orchestration. The engine only interprets the
// precomputed aggregates handed to it; it never queries a data store.
package analysis

import "context"

// Severity ranks anomalies, cards and actions.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// rank returns the sort weight of a severity, HIGH first. Unknown values
// sort last, like LOW.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Trend classifies the direction of a monthly spending series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CardType is the closed set of insight card kinds. Renderers can switch on
// it exhaustively; the LLM enrichment step never rewrites it.
type CardType string

const (
	CardAnomaly           CardType = "anomaly_detection"
	CardBudgetForecast    CardType = "budget_forecast"
	CardSpendingSummary   CardType = "spending_summary"
	CardTrendAnalysis     CardType = "trend_analysis"
	CardCategoryBreakdown CardType = "category_breakdown"
	CardMerchantAnalysis  CardType = "merchant_analysis"
	CardFinancialHealth   CardType = "financial_health"
	CardIncomeAnalysis    CardType = "income_analysis"
	CardGoalProgress      CardType = "goal_progress"
)

// Valid reports whether t is one of the known card kinds.
func (t CardType) Valid() bool {
	switch t {
	case CardAnomaly, CardBudgetForecast, CardSpendingSummary,
		CardTrendAnalysis, CardCategoryBreakdown, CardMerchantAnalysis,
		CardFinancialHealth, CardIncomeAnalysis, CardGoalProgress:
		return true
	}
	return false
}

// Persona selects the narrative tone of the coach text.
type Persona string

const (
	PersonaFriendly     Persona = "friendly"
	PersonaProfessional Persona = "professional"
	PersonaStrict       Persona = "strict"
	PersonaHumorous     Persona = "humorous"
)

// Normalize maps unknown persona values to the friendly default.
func (p Persona) Normalize() Persona {
	switch p {
	case PersonaFriendly, PersonaProfessional, PersonaStrict, PersonaHumorous:
		return p
	}
	return PersonaFriendly
}

// Transaction is a single immutable spending record.
type Transaction struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"` // "YYYY-MM-DD" or ISO datetime
	Category string  `json:"category"`
}

// MonthlyTotal is one point of the monthly spending series, with an optional
// per-category breakdown. The engine sorts series by month defensively.
type MonthlyTotal struct {
	Month      string             `json:"month"` // "YYYY-MM"
	Total      float64            `json:"total"`
	Categories map[string]float64 `json:"categories,omitempty"`
}

// Budget is a read-only category budget snapshot.
type Budget struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
	Spent    float64 `json:"spent"`
	Pct      float64 `json:"pct"`
}

// Goal is a read-only savings goal; only active goals count toward scoring.
type Goal struct {
	Title         string  `json:"title"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	Status        string  `json:"status"`
}

// FinancialHealth summarizes the period's income/spend balance.
type FinancialHealth struct {
	PeriodIncome float64 `json:"period_income"`
	PeriodSpent  float64 `json:"period_spent"`
	PeriodNet    float64 `json:"period_net"`
	SavingsRate  float64 `json:"savings_rate"`
}

// AnalyzeRequest is the single input payload assembled by the calling layer.
type AnalyzeRequest struct {
	Period          string             `json:"period"` // "YYYY-MM", default = current month
	Transactions    []Transaction      `json:"transactions"`
	MonthlyTotals   []MonthlyTotal     `json:"monthlyTotals"`
	Budgets         []Budget           `json:"budgets"`
	Goals           []Goal             `json:"goals"`
	FinancialHealth FinancialHealth    `json:"financialHealth"`
	CategoryMap     map[string]string  `json:"categoryMap,omitempty"`
	SkipLLM         bool               `json:"skipLLM"`
	Persona         Persona            `json:"persona"`
	UserID          string             `json:"userId"`
	RequestID       string             `json:"requestId"`
}

// Anomaly is one flagged outlier transaction.
type Anomaly struct {
	Merchant        string   `json:"merchant"`
	Amount          float64  `json:"amount"`
	Date            string   `json:"date"`
	Category        string   `json:"category"`
	ZScore          float64  `json:"z_score"`
	IQRFlag         bool     `json:"iqr_flag"`
	DetectionMethod string   `json:"detection_method"` // '+'-joined detector names
	Severity        Severity `json:"severity"`
}

// ForecastComponents breaks the blended estimate into its parts.
type ForecastComponents struct {
	EMA              float64 `json:"ema"`
	LinearRegression float64 `json:"linear_regression"`
	RSquared         float64 `json:"r_squared"`
}

// Seasonality records a year-over-year deviation for the latest month.
type Seasonality struct {
	SeasonalFactor    float64 `json:"seasonal_factor"`
	SameMonthLastYear float64 `json:"same_month_last_year"`
	Direction         string  `json:"direction"` // "higher" or "lower"
}

// ForecastResult is the next-period spending estimate.
type ForecastResult struct {
	NextMonthEstimate float64             `json:"next_month_estimate"`
	Trend             Trend               `json:"trend"`
	TrendPct          float64             `json:"trend_pct"`
	ConfidenceScore   int                 `json:"confidence_score"`
	Method            string              `json:"method"`
	Components        *ForecastComponents `json:"components,omitempty"`
	Seasonality       *Seasonality        `json:"seasonality,omitempty"`
	CategoryForecasts map[string]float64  `json:"category_forecasts,omitempty"`
}

// VelocityPattern projects month-end spend from the burn rate so far.
type VelocityPattern struct {
	DaysElapsed       int     `json:"days_elapsed"`
	DaysInMonth       int     `json:"days_in_month"`
	ElapsedPct        float64 `json:"elapsed_pct"`
	CurrentTotal      float64 `json:"current_total"`
	DailyAvg          float64 `json:"daily_avg"`
	ProjectedMonthEnd float64 `json:"projected_month_end"`
	OnTrack           bool    `json:"on_track"`
}

// DayShare is one weekday's slice of the distribution.
type DayShare struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// DayDistributionPattern classifies weekday vs weekend spending.
type DayDistributionPattern struct {
	Distribution []DayShare `json:"distribution"`
	WeekendPct   float64    `json:"weekend_pct"`
	PeakDay      string     `json:"peak_day"`
	PeakDayPct   float64    `json:"peak_day_pct"`
	Insight      string     `json:"insight"` // weekend_heavy / weekday_heavy / balanced
}

// CategoryPair is one correlated category pair.
type CategoryPair struct {
	CatA        string  `json:"cat_a"`
	CatB        string  `json:"cat_b"`
	Correlation float64 `json:"correlation"`
	Direction   string  `json:"direction"` // "positive" or "negative"
}

// CorrelationPattern lists category pairs whose monthly series move together.
type CorrelationPattern struct {
	Pairs []CategoryPair `json:"pairs"`
}

// RecurringItem is one subscription-like merchant group.
type RecurringItem struct {
	Merchant    string  `json:"merchant"`
	AvgAmount   float64 `json:"avg_amount"`
	Frequency   int     `json:"frequency"`
	IsMonthly   bool    `json:"is_monthly"`
	MonthlyCost float64 `json:"monthly_cost"`
	YearlyCost  float64 `json:"yearly_cost"`
}

// RecurringPattern aggregates detected recurring payments.
type RecurringPattern struct {
	Items        []RecurringItem `json:"items"`
	TotalMonthly float64         `json:"total_monthly"`
	TotalYearly  float64         `json:"total_yearly"`
}

// CategoryShift is one category whose latest month deviates from its history.
type CategoryShift struct {
	Category    string   `json:"category"`
	Current     float64  `json:"current"`
	PreviousAvg float64  `json:"previous_avg"`
	ChangePct   float64  `json:"change_pct"`
	Direction   string   `json:"direction"` // "up" or "down"
	Severity    Severity `json:"severity"`
}

// CategoryShiftPattern lists sudden category-level moves.
type CategoryShiftPattern struct {
	Shifts []CategoryShift `json:"shifts"`
}

// PatternSet holds whichever detectors produced a result; absent fields mean
// the data was insufficient for that detector.
type PatternSet struct {
	Velocity            *VelocityPattern        `json:"velocity,omitempty"`
	DayDistribution     *DayDistributionPattern `json:"day_distribution,omitempty"`
	CategoryCorrelation *CorrelationPattern     `json:"category_correlation,omitempty"`
	RecurringPayments   *RecurringPattern       `json:"recurring_payments,omitempty"`
	CategoryShifts      *CategoryShiftPattern   `json:"category_shifts,omitempty"`
}

// Count returns how many detectors produced a result.
func (p *PatternSet) Count() int {
	if p == nil {
		return 0
	}
	n := 0
	if p.Velocity != nil {
		n++
	}
	if p.DayDistribution != nil {
		n++
	}
	if p.CategoryCorrelation != nil {
		n++
	}
	if p.RecurringPayments != nil {
		n++
	}
	if p.CategoryShifts != nil {
		n++
	}
	return n
}

// Evidence is one metric backing an insight card.
type Evidence struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
}

// Explanation documents how an anomaly card was detected.
type Explanation struct {
	Reason          string   `json:"reason"`
	DataPoints      []string `json:"data_points"`
	DetectionMethod string   `json:"detection_method"`
}

// InsightCard is a structured, self-contained recommendation. The LLM may
// rewrite Title, Summary and Actions in place but never ID or Type.
type InsightCard struct {
	ID          string       `json:"id"`
	Type        CardType     `json:"type"`
	Priority    Severity     `json:"priority"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Confidence  int          `json:"confidence"` // clamped [10, 98]
	Evidence    []Evidence   `json:"evidence"`
	Actions     []string     `json:"actions"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// HealthBreakdown is the per-dimension contribution to the health score.
type HealthBreakdown struct {
	Savings   int `json:"savings"`
	Budget    int `json:"budget"`
	Trend     int `json:"trend"`
	Goals     int `json:"goals"`
	Anomalies int `json:"anomalies"`
}

// HealthScore is the weighted 0-100 composite.
type HealthScore struct {
	Score     int             `json:"score"`
	Label     string          `json:"label"`
	Breakdown HealthBreakdown `json:"breakdown"`
}

// Coach is the narrative layer of the response.
type Coach struct {
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	FocusAreas []string `json:"focus_areas"`
}

// NextAction is one prioritized follow-up extracted from the cards.
type NextAction struct {
	Title         string   `json:"title"`
	SourceInsight string   `json:"source_insight,omitempty"`
	Priority      Severity `json:"priority"`
	DueInDays     int      `json:"due_in_days"`
}

// GoalsSummary counts the caller's goals.
type GoalsSummary struct {
	ActiveCount int `json:"active_count"`
	TotalCount  int `json:"total_count"`
}

// InputStats echoes the input sizes for observability.
type InputStats struct {
	MonthlyCount     int `json:"monthly_count"`
	TransactionCount int `json:"transaction_count"`
	BudgetCount      int `json:"budget_count"`
	GoalCount        int `json:"goal_count"`
}

// LLMObservability records what happened during the enrichment round-trip.
type LLMObservability struct {
	Status             string   `json:"status"` // success / error / skipped
	InputTokens        int64    `json:"input_tokens,omitempty"`
	OutputTokens       int64    `json:"output_tokens,omitempty"`
	ElapsedMS          int64    `json:"elapsed_ms,omitempty"`
	CostUSD            float64  `json:"cost_usd,omitempty"`
	OutputValid        bool     `json:"output_valid,omitempty"`
	ValidationWarnings []string `json:"validation_warnings,omitempty"`
	HallucinationFlags []string `json:"hallucination_flags,omitempty"`
	RawOutputLength    int      `json:"raw_output_length,omitempty"`
	SkipReason         string   `json:"skip_reason,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// Meta carries versioning, timing and the content-derived cache key.
type Meta struct {
	ModelVersion      string           `json:"model_version"`
	GeneratedAt       string           `json:"generated_at"` // ISO-8601 UTC
	AnalysisVersion   string           `json:"analysis_version"`
	Period            string           `json:"period"`
	CacheKey          string           `json:"cache_key"`
	LLMObservability  LLMObservability `json:"llm_observability"`
	InputStats        InputStats       `json:"input_stats"`
	TotalProcessingMS int64            `json:"total_processing_ms"`
	Error             string           `json:"error,omitempty"`
}

// AnalyzeResult is the complete engine output.
type AnalyzeResult struct {
	Coach           *Coach          `json:"coach"`
	Insights        []InsightCard   `json:"insights"`
	Forecast        *ForecastResult `json:"forecast"`
	Anomalies       []Anomaly       `json:"anomalies"`
	Patterns        *PatternSet     `json:"patterns"`
	NextActions     []NextAction    `json:"next_actions"`
	FinancialHealth FinancialHealth `json:"financial_health"`
	HealthScore     *HealthScore    `json:"health_score"`
	GoalsSummary    GoalsSummary    `json:"goals_summary"`
	Meta            Meta            `json:"meta"`
}

// EnrichInput is everything the enrichment stage may see.
type EnrichInput struct {
	Period    string
	Persona   Persona
	Insights  []InsightCard
	Forecast  *ForecastResult
	Patterns  *PatternSet
	RequestID string
	UserID    string
}

// EnrichOutput carries the (possibly rewritten) cards, the narrative and the
// round-trip observability.
type EnrichOutput struct {
	Insights      []InsightCard
	Coach         *Coach
	Observability LLMObservability
}

// Enricher is the language-model narrative stage. Implementations must be
// failure-isolated: a returned error degrades the pipeline to the fallback
// narrative, it never aborts it.
type Enricher interface {
	Enrich(ctx context.Context, in EnrichInput) (*EnrichOutput, error)
}
