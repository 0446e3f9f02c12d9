package analysis

import (
	"strings"
	"testing"
)

func TestFromAnomalies(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)

	var anomalies []Anomaly
	for i := 0; i < 7; i++ {
		anomalies = append(anomalies, Anomaly{
			Merchant:        "Shop",
			Amount:          1000,
			Date:            "2025-03-01",
			Category:        "food",
			ZScore:          2.5,
			DetectionMethod: "category_zscore",
			Severity:        SeverityMedium,
		})
	}

	cards := b.FromAnomalies(anomalies, "2025-03")
	if len(cards) != 5 {
		t.Fatalf("card count = %d, want 5 (top-5 cap)", len(cards))
	}
	c := cards[0]
	if c.Type != CardAnomaly {
		t.Errorf("type = %s", c.Type)
	}
	if c.Priority != SeverityMedium {
		t.Errorf("priority = %s", c.Priority)
	}
	if c.Explanation == nil || c.Explanation.DetectionMethod != "category_zscore" {
		t.Errorf("explanation missing or wrong: %+v", c.Explanation)
	}
	if len(c.Actions) != 2 {
		t.Errorf("actions = %d, want 2 for z <= 3", len(c.Actions))
	}
	if len(c.Evidence) != 2 {
		t.Errorf("evidence = %d, want 2", len(c.Evidence))
	}
	if !strings.HasPrefix(c.ID, "anomaly_") {
		t.Errorf("id = %q", c.ID)
	}
}

func TestFromAnomaliesExtremeGetsExtraAction(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)
	cards := b.FromAnomalies([]Anomaly{{
		Merchant: "Shop", Amount: 9000, ZScore: 4.2,
		DetectionMethod: "category_zscore+iqr", Severity: SeverityHigh,
	}}, "2025-03")
	if len(cards) != 1 {
		t.Fatalf("card count = %d", len(cards))
	}
	if len(cards[0].Actions) != 3 {
		t.Errorf("actions = %d, want 3 for z > 3", len(cards[0].Actions))
	}
}

func TestFromForecast(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)

	if got := b.FromForecast(nil, "2025-03"); got != nil {
		t.Fatal("nil forecast must produce no card")
	}
	if got := b.FromForecast(&ForecastResult{NextMonthEstimate: 0}, "2025-03"); got != nil {
		t.Fatal("zero estimate must produce no card")
	}

	up := b.FromForecast(&ForecastResult{
		NextMonthEstimate: 5000, Trend: TrendUp, ConfidenceScore: 80,
	}, "2025-03")
	if len(up) != 1 {
		t.Fatalf("card count = %d", len(up))
	}
	if up[0].Priority != SeverityHigh {
		t.Errorf("rising trend priority = %s, want HIGH", up[0].Priority)
	}
	if up[0].Confidence != 80 {
		t.Errorf("confidence = %d, want the forecast's own 80", up[0].Confidence)
	}

	down := b.FromForecast(&ForecastResult{
		NextMonthEstimate: 3000, Trend: TrendDown, ConfidenceScore: 60,
	}, "2025-03")
	if down[0].Priority != SeverityMedium {
		t.Errorf("falling trend priority = %s, want MEDIUM", down[0].Priority)
	}
}

func TestFromPatterns(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)

	patterns := &PatternSet{
		Velocity: &VelocityPattern{
			DaysElapsed: 10, DaysInMonth: 31, ElapsedPct: 32.3,
			CurrentTotal: 5000, DailyAvg: 500, ProjectedMonthEnd: 6200,
		},
		DayDistribution: &DayDistributionPattern{
			Insight: "weekend_heavy", PeakDay: "Saturday", WeekendPct: 55,
		},
		CategoryShifts: &CategoryShiftPattern{Shifts: []CategoryShift{
			{Category: "food", Current: 220, PreviousAvg: 100, ChangePct: 120, Direction: "up", Severity: SeverityHigh},
			{Category: "fun", Current: 60, PreviousAvg: 100, ChangePct: -40, Direction: "down", Severity: SeverityMedium},
		}},
		RecurringPayments: &RecurringPattern{
			Items:        []RecurringItem{{Merchant: "Netflix", MonthlyCost: 100, YearlyCost: 1200}},
			TotalMonthly: 600,
			TotalYearly:  7200,
		},
	}

	cards := b.FromPatterns(patterns, "2025-03")
	byType := make(map[CardType]int)
	for _, c := range cards {
		byType[c.Type]++
	}
	if byType[CardSpendingSummary] != 1 {
		t.Errorf("velocity cards = %d", byType[CardSpendingSummary])
	}
	if byType[CardTrendAnalysis] != 1 {
		t.Errorf("day distribution cards = %d", byType[CardTrendAnalysis])
	}
	if byType[CardCategoryBreakdown] != 2 {
		t.Errorf("shift cards = %d", byType[CardCategoryBreakdown])
	}
	if byType[CardMerchantAnalysis] != 1 {
		t.Errorf("recurring cards = %d", byType[CardMerchantAnalysis])
	}

	for _, c := range cards {
		if c.Type == CardSpendingSummary && c.Priority != SeverityHigh {
			t.Errorf("early heavy spend should be HIGH, got %s", c.Priority)
		}
		if c.Type == CardMerchantAnalysis && c.Priority != SeverityMedium {
			t.Errorf("recurring total over 500 should be MEDIUM, got %s", c.Priority)
		}
	}
}

func TestFromPatternsBalancedWeekIsSilent(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)
	cards := b.FromPatterns(&PatternSet{
		DayDistribution: &DayDistributionPattern{Insight: "balanced"},
	}, "2025-03")
	if len(cards) != 0 {
		t.Fatalf("balanced distribution must not produce a card, got %d", len(cards))
	}
}

func TestFromBudgetAlerts(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)
	cards := b.FromBudgetAlerts([]Budget{
		{Category: "food", Limit: 1000, Spent: 500, Pct: 50},
		{Category: "fun", Limit: 500, Spent: 430, Pct: 86},
		{Category: "transport", Limit: 400, Spent: 480, Pct: 120},
	})
	if len(cards) != 2 {
		t.Fatalf("card count = %d, want 2", len(cards))
	}
	for _, c := range cards {
		switch {
		case strings.Contains(c.Title, "fun"):
			if c.Priority != SeverityMedium {
				t.Errorf("86%% budget priority = %s, want MEDIUM", c.Priority)
			}
		case strings.Contains(c.Title, "transport"):
			if c.Priority != SeverityHigh {
				t.Errorf("exceeded budget priority = %s, want HIGH", c.Priority)
			}
		default:
			t.Errorf("unexpected card %q", c.Title)
		}
		if c.Confidence != 95 {
			t.Errorf("budget card confidence = %d, want 95", c.Confidence)
		}
	}
}

func TestFromFinancialHealthLowSavings(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)
	cards := b.FromFinancialHealth(FinancialHealth{
		PeriodIncome: 10000, PeriodSpent: 9500, PeriodNet: 500, SavingsRate: 5,
	}, nil)

	var tierCard, incomeCard *InsightCard
	for i := range cards {
		switch cards[i].Type {
		case CardFinancialHealth:
			tierCard = &cards[i]
		case CardIncomeAnalysis:
			incomeCard = &cards[i]
		}
	}
	if tierCard == nil || tierCard.Priority != SeverityHigh {
		t.Fatalf("savings under 10%% must produce a HIGH health card: %+v", tierCard)
	}
	if incomeCard == nil {
		t.Fatal("income present must produce the income summary card")
	}
	if incomeCard.Priority != SeverityLow {
		t.Errorf("income card priority = %s, want LOW", incomeCard.Priority)
	}
}

func TestFromFinancialHealthNoIncome(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)
	cards := b.FromFinancialHealth(FinancialHealth{PeriodSpent: 4000}, nil)
	if len(cards) != 1 {
		t.Fatalf("card count = %d, want 1", len(cards))
	}
	if cards[0].Priority != SeverityMedium {
		t.Errorf("missing income card priority = %s, want MEDIUM", cards[0].Priority)
	}
	if cards[0].Type != CardFinancialHealth {
		t.Errorf("type = %s", cards[0].Type)
	}
}

func TestGoalProgressCard(t *testing.T) {
	b := NewInsightBuilder(DefaultZThreshold)

	goals := []Goal{
		{Title: "Vacation", TargetAmount: 10000, CurrentAmount: 3000, Status: "active"},
		{Title: "Laptop", TargetAmount: 5000, CurrentAmount: 2500, Status: "active"},
		{Title: "Done", TargetAmount: 1000, CurrentAmount: 1000, Status: "completed"},
	}
	cards := b.FromFinancialHealth(FinancialHealth{}, goals)
	var goalCard *InsightCard
	for i := range cards {
		if cards[i].Type == CardGoalProgress {
			goalCard = &cards[i]
		}
	}
	if goalCard == nil {
		t.Fatal("active goals must produce a progress card")
	}
	// Average of 30% and 50% progress stays under 70.
	if goalCard.Priority != SeverityMedium {
		t.Errorf("priority = %s, want MEDIUM below 70%% progress", goalCard.Priority)
	}

	if cards := b.FromFinancialHealth(FinancialHealth{}, nil); len(cards) != 0 {
		t.Fatalf("no goals and no money flow must produce no cards, got %d", len(cards))
	}
}
