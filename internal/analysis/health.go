package analysis

// HealthScorer computes the weighted 0-100 composite score. Dimension
// weights: savings 30, budget 25, trend 20, goals 15, anomalies 10.
type HealthScorer struct{}

// NewHealthScorer returns a health scorer.
func NewHealthScorer() *HealthScorer {
	return &HealthScorer{}
}

// Score combines the period summary, budgets, goals and the anomaly count.
// Missing budgets or goals earn a neutral partial credit instead of zero so
// sparse accounts are not punished for what they never tracked.
func (s *HealthScorer) Score(fh FinancialHealth, budgets []Budget, goals []Goal, anomalyCount int) *HealthScore {
	breakdown := HealthBreakdown{
		Savings:   savingsPoints(sf(fh.SavingsRate)),
		Budget:    budgetPoints(budgets),
		Trend:     trendPoints(sf(fh.PeriodNet)),
		Goals:     goalPoints(goals),
		Anomalies: anomalyPoints(anomalyCount),
	}
	total := clampInt(breakdown.Savings+breakdown.Budget+breakdown.Trend+breakdown.Goals+breakdown.Anomalies, 0, 100)
	return &HealthScore{
		Score:     total,
		Label:     scoreLabel(total),
		Breakdown: breakdown,
	}
}

func savingsPoints(savingsRate float64) int {
	switch {
	case savingsRate >= 20:
		return 30
	case savingsRate >= 10:
		return 20
	case savingsRate >= 0:
		return 10
	default:
		return 0
	}
}

// budgetPoints scales with the share of budgets kept under their limit.
func budgetPoints(budgets []Budget) int {
	if len(budgets) == 0 {
		return 12
	}
	over := 0
	for _, b := range budgets {
		if sf(b.Pct) > 100 {
			over++
		}
	}
	return int(25 * (1 - float64(over)/float64(len(budgets))))
}

func trendPoints(net float64) int {
	switch {
	case net > 0:
		return 20
	case net >= -500:
		return 10
	default:
		return 0
	}
}

// goalPoints averages progress across active goals, capping each at 100%.
// Active goals without a valid target score a neutral 50%.
func goalPoints(goals []Goal) int {
	active := activeGoals(goals)
	if len(active) == 0 {
		return 8
	}
	var progress []float64
	for _, g := range active {
		target := sf(g.TargetAmount)
		if target > 0 {
			p := sf(g.CurrentAmount) / target
			if p > 1 {
				p = 1
			}
			progress = append(progress, p)
		}
	}
	avg := 0.5
	if len(progress) > 0 {
		avg = mean(progress)
	}
	return int(15 * avg)
}

func anomalyPoints(count int) int {
	switch {
	case count == 0:
		return 10
	case count <= 2:
		return 5
	default:
		return 0
	}
}

func scoreLabel(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Needs Attention"
	}
}
