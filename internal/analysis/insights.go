package analysis

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// InsightBuilder converts detector output, budgets, goals and the health
// summary into structured insight cards. Pure transforms: one method per
// source, no shared state beyond the number printer.
type InsightBuilder struct {
	zThreshold float64
	printer    *message.Printer
}

// NewInsightBuilder returns a builder that annotates anomaly explanations
// with the given z-score threshold.
func NewInsightBuilder(zThreshold float64) *InsightBuilder {
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &InsightBuilder{
		zThreshold: zThreshold,
		printer:    message.NewPrinter(language.English),
	}
}

// FromAnomalies builds one card per anomaly, top 5, confidence scaled by the
// z-score magnitude.
func (b *InsightBuilder) FromAnomalies(anomalies []Anomaly, period string) []InsightCard {
	if len(anomalies) == 0 {
		return nil
	}
	top := anomalies
	if len(top) > 5 {
		top = top[:5]
	}
	cards := make([]InsightCard, 0, len(top))
	for _, a := range top {
		actions := []string{
			fmt.Sprintf("Review the %s charge and decide whether it was necessary.", a.Merchant),
			"Compare it against past transactions of a similar size.",
		}
		if a.ZScore > 3 {
			actions = append(actions, "This transaction deviates strongly from the norm; check for a data-entry error.")
		}
		cards = append(cards, InsightCard{
			ID:       newID("anomaly"),
			Type:     CardAnomaly,
			Priority: a.Severity,
			Title:    fmt.Sprintf("Unusual spending: %s", a.Merchant),
			Summary: fmt.Sprintf("Detected a %.0f TL charge at %s, %.1fx above the usual level (%s).",
				a.Amount, a.Merchant, a.ZScore, a.DetectionMethod),
			Confidence: confidenceScore(10, math.Min(a.ZScore/4, 1.0)),
			Explanation: &Explanation{
				Reason: fmt.Sprintf("Flagged by %s", a.DetectionMethod),
				DataPoints: []string{
					fmt.Sprintf("Amount: %.0f TL", a.Amount),
					fmt.Sprintf("Z-score: %.1f (threshold: %.1f)", a.ZScore, b.zThreshold),
					fmt.Sprintf("Category: %s", a.Category),
				},
				DetectionMethod: a.DetectionMethod,
			},
			Evidence: []Evidence{
				{Metric: "amount", Value: a.Amount, Unit: "TL"},
				{Metric: "z_score", Value: a.ZScore, Unit: ""},
			},
			Actions: actions,
		})
	}
	return cards
}

// FromForecast builds the forecast card; HIGH priority when spending trends
// up. A zero estimate produces no card.
func (b *InsightBuilder) FromForecast(forecast *ForecastResult, period string) []InsightCard {
	if forecast == nil || forecast.NextMonthEstimate <= 0 {
		return nil
	}
	var trendText string
	var actions []string
	switch forecast.Trend {
	case TrendUp:
		trendText = "trending up"
		actions = []string{
			"Revisit your budget limits for this month.",
			"Find the fastest-growing category and cut it back.",
		}
	case TrendDown:
		trendText = "trending down"
		actions = []string{
			"Consider raising your savings target.",
			"Keep your current habits to hold the downward trend.",
		}
	default:
		trendText = "holding steady"
		actions = []string{"Keep your spending balance and stay on top of the budget."}
	}
	priority := SeverityMedium
	if forecast.Trend == TrendUp {
		priority = SeverityHigh
	}
	return []InsightCard{{
		ID:         newID("forecast"),
		Type:       CardBudgetForecast,
		Priority:   priority,
		Title:      fmt.Sprintf("Next month estimate: %.0f TL", forecast.NextMonthEstimate),
		Summary:    fmt.Sprintf("Spending is %s. Confidence score: %d%%.", trendText, forecast.ConfidenceScore),
		Confidence: forecast.ConfidenceScore,
		Evidence: []Evidence{
			{Metric: "estimate", Value: forecast.NextMonthEstimate, Unit: "TL"},
			{Metric: "trend", Value: forecast.TrendPct, Unit: "%"},
		},
		Actions: actions,
	}}
}

// FromPatterns builds cards for velocity, a non-balanced weekday
// distribution, up to 3 category shifts and the recurring-payments
// aggregate.
func (b *InsightBuilder) FromPatterns(patterns *PatternSet, period string) []InsightCard {
	if patterns == nil {
		return nil
	}
	var cards []InsightCard

	if v := patterns.Velocity; v != nil && v.ElapsedPct > 0 {
		priority := SeverityMedium
		if v.ElapsedPct < 50 && v.CurrentTotal > v.ProjectedMonthEnd*0.6 {
			priority = SeverityHigh
		}
		cards = append(cards, InsightCard{
			ID:       newID("velocity"),
			Type:     CardSpendingSummary,
			Priority: priority,
			Title:    fmt.Sprintf("Spending pace: %.0f TL in %d days", v.CurrentTotal, v.DaysElapsed),
			Summary: fmt.Sprintf("%.0f%% of the month has passed. Daily average %.0f TL. Projected month end: %.0f TL.",
				v.ElapsedPct, v.DailyAvg, v.ProjectedMonthEnd),
			Confidence: confidenceScore(v.DaysElapsed, 0.5),
			Evidence: []Evidence{
				{Metric: "daily_avg", Value: v.DailyAvg, Unit: "TL"},
				{Metric: "month_end", Value: v.ProjectedMonthEnd, Unit: "TL"},
			},
			Actions: []string{},
		})
	}

	if dow := patterns.DayDistribution; dow != nil && dow.Insight != "balanced" {
		cards = append(cards, InsightCard{
			ID:         newID("dow"),
			Type:       CardTrendAnalysis,
			Priority:   SeverityLow,
			Title:      fmt.Sprintf("Peak spending day: %s", dow.PeakDay),
			Summary:    fmt.Sprintf("Weekend spending is %.1f%% of your total.", dow.WeekendPct),
			Confidence: confidenceScore(20, 0.3),
			Evidence: []Evidence{
				{Metric: "weekend_pct", Value: dow.WeekendPct, Unit: "%"},
			},
			Actions: []string{},
		})
	}

	if shifts := patterns.CategoryShifts; shifts != nil {
		top := shifts.Shifts
		if len(top) > 3 {
			top = top[:3]
		}
		for _, s := range top {
			cards = append(cards, InsightCard{
				ID:       newID("shift"),
				Type:     CardCategoryBreakdown,
				Priority: s.Severity,
				Title:    fmt.Sprintf("%s spending is %s %.0f%%", s.Category, s.Direction, absFloat(s.ChangePct)),
				Summary: fmt.Sprintf("Previous months averaged %.0f TL, this month is %.0f TL.",
					s.PreviousAvg, s.Current),
				Confidence: confidenceScore(8, absFloat(s.ChangePct)/100),
				Evidence: []Evidence{
					{Metric: "previous_avg", Value: s.PreviousAvg, Unit: "TL"},
					{Metric: "this_month", Value: s.Current, Unit: "TL"},
				},
				Actions: []string{},
			})
		}
	}

	if rec := patterns.RecurringPayments; rec != nil && len(rec.Items) > 0 {
		priority := SeverityLow
		if rec.TotalMonthly > 500 {
			priority = SeverityMedium
		}
		cards = append(cards, InsightCard{
			ID:       newID("recur"),
			Type:     CardMerchantAnalysis,
			Priority: priority,
			Title:    fmt.Sprintf("Detected %d recurring payments", len(rec.Items)),
			Summary: fmt.Sprintf("Monthly total: %.0f TL, yearly: %.0f TL.",
				rec.TotalMonthly, rec.TotalYearly),
			Confidence: confidenceScore(15, 0.6),
			Evidence: []Evidence{
				{Metric: "monthly_total", Value: rec.TotalMonthly, Unit: "TL"},
				{Metric: "yearly_total", Value: rec.TotalYearly, Unit: "TL"},
			},
			Actions: []string{},
		})
	}

	return cards
}

// FromBudgetAlerts builds one card per budget at 80% or more of its limit;
// HIGH once the limit is crossed.
func (b *InsightBuilder) FromBudgetAlerts(budgets []Budget) []InsightCard {
	var cards []InsightCard
	for _, bd := range budgets {
		pct := sf(bd.Pct)
		if pct < 80 {
			continue
		}
		status := "is close to its limit"
		priority := SeverityMedium
		if pct >= 100 {
			status = "has been exceeded"
			priority = SeverityHigh
		}
		cards = append(cards, InsightCard{
			ID:         newID("budget"),
			Type:       CardBudgetForecast,
			Priority:   priority,
			Title:      fmt.Sprintf("The %s budget %s", bd.Category, status),
			Summary:    fmt.Sprintf("%.0f TL / %.0f TL (%.0f%%).", bd.Spent, bd.Limit, pct),
			Confidence: 95,
			Evidence: []Evidence{
				{Metric: "budget", Value: bd.Limit, Unit: "TL"},
				{Metric: "spent", Value: bd.Spent, Unit: "TL"},
			},
			Actions: []string{},
		})
	}
	return cards
}

// FromFinancialHealth builds the savings-rate tier card, the income summary
// when income is present (or a missing-income card when there is spending
// without income), and the goal-progress card for active goals.
func (b *InsightBuilder) FromFinancialHealth(fh FinancialHealth, goals []Goal) []InsightCard {
	var cards []InsightCard

	income := sf(fh.PeriodIncome)
	spent := sf(fh.PeriodSpent)
	net := sf(fh.PeriodNet)
	savingsRate := sf(fh.SavingsRate)

	switch {
	case income > 0 && savingsRate < 10:
		cards = append(cards, InsightCard{
			ID:       newID("health"),
			Type:     CardFinancialHealth,
			Priority: SeverityHigh,
			Title:    "Savings rate is critically low",
			Summary: fmt.Sprintf("This month shows %.0f TL of spending against %.0f TL of income. Savings rate is %.1f%%.",
				spent, income, savingsRate),
			Confidence: 92,
			Evidence: []Evidence{
				{Metric: "income", Value: income, Unit: "TL"},
				{Metric: "spent", Value: spent, Unit: "TL"},
				{Metric: "savings_rate", Value: savingsRate, Unit: "%"},
			},
			Actions: []string{
				"Put a 10% spending cap on your highest category this month.",
				"Audit your subscriptions and cancel at least one.",
			},
		})
	case income > 0 && savingsRate < 15:
		cards = append(cards, InsightCard{
			ID:       newID("health"),
			Type:     CardFinancialHealth,
			Priority: SeverityMedium,
			Title:    "Savings rate has room to improve",
			Summary: fmt.Sprintf("Your savings rate is %.1f%%. Review your spending to reach the ideal 20%%.",
				savingsRate),
			Confidence: 85,
			Evidence: []Evidence{
				{Metric: "income", Value: income, Unit: "TL"},
				{Metric: "spent", Value: spent, Unit: "TL"},
				{Metric: "savings_rate", Value: savingsRate, Unit: "%"},
			},
			Actions: []string{
				"Try trimming your top spending category by 10%.",
				"Create a savings goal and start a regular deposit.",
			},
		})
	case income > 0:
		cards = append(cards, InsightCard{
			ID:       newID("health"),
			Type:     CardFinancialHealth,
			Priority: SeverityLow,
			Title:    "Income and spending are in healthy balance",
			Summary: fmt.Sprintf("Net balance is %.0f TL with a %.1f%% savings rate. This pace supports your savings goals.",
				net, savingsRate),
			Confidence: 85,
			Evidence: []Evidence{
				{Metric: "net", Value: net, Unit: "TL"},
				{Metric: "savings_rate", Value: savingsRate, Unit: "%"},
			},
			Actions: []string{
				"Review your fixed costs once a month to keep this balance.",
			},
		})
	}

	if income > 0 {
		cards = append(cards, InsightCard{
			ID:       newID("income"),
			Type:     CardIncomeAnalysis,
			Priority: SeverityLow,
			Title:    b.printer.Sprintf("Monthly income is %.0f TL", income),
			Summary: b.printer.Sprintf("This month shows %.0f TL of income against %.0f TL of spending. Net balance is %.0f TL.",
				income, spent, net),
			Confidence: 95,
			Evidence: []Evidence{
				{Metric: "income", Value: income, Unit: "TL"},
				{Metric: "spent", Value: spent, Unit: "TL"},
				{Metric: "net", Value: net, Unit: "TL"},
			},
			Actions: []string{
				"Look into additional income sources to diversify.",
				"Route part of your regular income into automatic savings.",
			},
		})
	} else if spent > 0 {
		cards = append(cards, InsightCard{
			ID:       newID("health"),
			Type:     CardFinancialHealth,
			Priority: SeverityMedium,
			Title:    "Income information is missing",
			Summary: fmt.Sprintf("Found %.0f TL of spending this month but no recorded income. Add your income for an accurate analysis.",
				spent),
			Confidence: 90,
			Evidence: []Evidence{
				{Metric: "spent", Value: spent, Unit: "TL"},
			},
			Actions: []string{
				"Add your income records to get the full financial picture.",
			},
		})
	}

	if card := b.goalProgressCard(goals); card != nil {
		cards = append(cards, *card)
	}
	return cards
}

func (b *InsightBuilder) goalProgressCard(goals []Goal) *InsightCard {
	active := activeGoals(goals)
	if len(active) == 0 {
		return nil
	}
	var progress []float64
	for _, g := range active {
		target := sf(g.TargetAmount)
		if target > 0 {
			progress = append(progress, sf(g.CurrentAmount)/target*100)
		}
	}
	if len(progress) == 0 {
		return nil
	}
	avgProgress := mean(progress)
	priority := SeverityLow
	if avgProgress < 70 {
		priority = SeverityMedium
	}
	return &InsightCard{
		ID:         newID("goal"),
		Type:       CardGoalProgress,
		Priority:   priority,
		Title:      fmt.Sprintf("Average goal progress is %.0f%%", avgProgress),
		Summary:    fmt.Sprintf("You have %d active goals. Average progress is %.1f%%.", len(active), avgProgress),
		Confidence: confidenceScore(len(active), math.Min(avgProgress/100, 1)),
		Evidence: []Evidence{
			{Metric: "active_goals", Value: float64(len(active)), Unit: "count"},
			{Metric: "avg_progress", Value: round1(avgProgress), Unit: "%"},
		},
		Actions: []string{
			"Set a weekly milestone for each goal.",
			"Close out completed goals and open a new one.",
		},
	}
}

// activeGoals filters to goals whose status is "active"; a missing status
// counts as active.
func activeGoals(goals []Goal) []Goal {
	var active []Goal
	for _, g := range goals {
		status := g.Status
		if status == "" {
			status = "active"
		}
		if strings.EqualFold(status, "active") {
			active = append(active, g)
		}
	}
	return active
}
