package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const recurringTolerancePct = 0.15

// PatternMiner runs five independent behavioral-pattern detectors. Each
// returns nil when the data is insufficient; that is a normal outcome, not
// an error.
type PatternMiner struct{}

// NewPatternMiner returns a pattern miner.
func NewPatternMiner() *PatternMiner {
	return &PatternMiner{}
}

// Mine runs every detector and collects whatever fired.
func (m *PatternMiner) Mine(transactions []Transaction, monthlyTotals []MonthlyTotal, period string) *PatternSet {
	return &PatternSet{
		Velocity:            m.SpendingVelocity(transactions, period),
		DayDistribution:     m.DayOfWeekDistribution(transactions),
		CategoryCorrelation: m.CategoryCorrelation(monthlyTotals),
		RecurringPayments:   m.RecurringPayments(transactions),
		CategoryShifts:      m.CategoryShifts(monthlyTotals),
	}
}

// SpendingVelocity computes the daily burn rate inside the period and
// projects it to a calendar-accurate month end.
func (m *PatternMiner) SpendingVelocity(transactions []Transaction, period string) *VelocityPattern {
	if len(transactions) == 0 || len(period) < 7 {
		return nil
	}
	year, err1 := strconv.Atoi(period[:4])
	month, err2 := strconv.Atoi(period[5:7])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return nil
	}

	var totalSpent float64
	var days []int
	for _, tx := range transactions {
		if !strings.HasPrefix(tx.Date, period) {
			continue
		}
		totalSpent += sf(tx.Amount)
		day := 1
		if len(tx.Date) >= 10 {
			if d, err := strconv.Atoi(tx.Date[8:10]); err == nil {
				day = d
			}
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil
	}

	latestDay := days[0]
	for _, d := range days[1:] {
		if d > latestDay {
			latestDay = d
		}
	}
	if latestDay < 1 {
		latestDay = 1
	}

	firstOfMonth := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := firstOfMonth.AddDate(0, 1, -1).Day()

	dailyRate := totalSpent / float64(latestDay)
	projected := dailyRate * float64(daysInMonth)
	elapsedPct := float64(latestDay) / float64(daysInMonth) * 100

	// On track when the projection stays within 10% of the naive linear
	// extrapolation of what was already spent.
	naive := totalSpent * (float64(daysInMonth) / float64(latestDay))
	return &VelocityPattern{
		DaysElapsed:       latestDay,
		DaysInMonth:       daysInMonth,
		ElapsedPct:        round1(elapsedPct),
		CurrentTotal:      round2(totalSpent),
		DailyAvg:          round2(dailyRate),
		ProjectedMonthEnd: round2(projected),
		OnTrack:           projected <= naive*1.1,
	}
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayOfWeekDistribution breaks spending down by weekday and classifies the
// weekend share: >40% weekend_heavy, <25% weekday_heavy, else balanced.
func (m *PatternMiner) DayOfWeekDistribution(transactions []Transaction) *DayDistributionPattern {
	if len(transactions) == 0 {
		return nil
	}

	var totals [7]float64
	var counts [7]int
	parsed := false
	for _, tx := range transactions {
		t, ok := safeDate(tx.Date)
		if !ok {
			continue
		}
		parsed = true
		idx := (int(t.Weekday()) + 6) % 7 // Monday-first index
		totals[idx] += sf(tx.Amount)
		counts[idx]++
	}
	if !parsed {
		return nil
	}

	var total float64
	for _, v := range totals {
		total += v
	}
	if total <= 0 {
		return nil
	}

	distribution := make([]DayShare, 7)
	for i := 0; i < 7; i++ {
		distribution[i] = DayShare{
			Day:   weekdayNames[i],
			Total: round2(totals[i]),
			Count: counts[i],
			Pct:   round1(totals[i] / total * 100),
		}
	}

	weekendTotal := totals[5] + totals[6]
	weekendPct := round1(weekendTotal / total * 100)

	peak := distribution[0]
	for _, d := range distribution[1:] {
		if d.Total > peak.Total {
			peak = d
		}
	}

	insight := "balanced"
	if weekendPct > 40 {
		insight = "weekend_heavy"
	} else if weekendPct < 25 {
		insight = "weekday_heavy"
	}

	return &DayDistributionPattern{
		Distribution: distribution,
		WeekendPct:   weekendPct,
		PeakDay:      peak.Day,
		PeakDayPct:   peak.Pct,
		Insight:      insight,
	}
}

// CategoryCorrelation computes pairwise Pearson correlation over category
// series, reporting only |r| > 0.5, top 5 by magnitude. Needs at least 3
// months and 2 categories with nonzero history.
func (m *PatternMiner) CategoryCorrelation(monthlyTotals []MonthlyTotal) *CorrelationPattern {
	if len(monthlyTotals) < 3 {
		return nil
	}
	sorted := sortedTotals(monthlyTotals)

	allCats := make(map[string]bool)
	for _, mt := range sorted {
		for cat := range mt.Categories {
			allCats[cat] = true
		}
	}
	if len(allCats) < 2 {
		return nil
	}

	series := make(map[string][]float64)
	for cat := range allCats {
		s := make([]float64, len(sorted))
		nonzero := false
		for i, mt := range sorted {
			v := sf(mt.Categories[cat])
			s[i] = v
			if v > 0 {
				nonzero = true
			}
		}
		if nonzero {
			series[cat] = s
		}
	}
	if len(series) < 2 {
		return nil
	}

	cats := make([]string, 0, len(series))
	for cat := range series {
		cats = append(cats, cat)
	}
	sort.Strings(cats) // deterministic pair order

	var pairs []CategoryPair
	for i := 0; i < len(cats); i++ {
		for j := i + 1; j < len(cats); j++ {
			r, ok := pearson(series[cats[i]], series[cats[j]])
			if !ok || absFloat(r) <= 0.5 {
				continue
			}
			direction := "negative"
			if r > 0 {
				direction = "positive"
			}
			pairs = append(pairs, CategoryPair{
				CatA:        cats[i],
				CatB:        cats[j],
				Correlation: round2(r),
				Direction:   direction,
			})
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return absFloat(pairs[i].Correlation) > absFloat(pairs[j].Correlation)
	})
	if len(pairs) > 5 {
		pairs = pairs[:5]
	}
	return &CorrelationPattern{Pairs: pairs}
}

// pearson returns the correlation coefficient of two equal-length series;
// ok is false when either series has no variance or fewer than 3 points.
func pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 3 {
		return 0, false
	}
	a, b = a[:n], b[:n]
	aMean, bMean := mean(a), mean(b)
	var num, denA, denB float64
	for k := 0; k < n; k++ {
		da := a[k] - aMean
		db := b[k] - bMean
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA <= 0 || denB <= 0 {
		return 0, false
	}
	return num / (math.Sqrt(denA) * math.Sqrt(denB)), true
}

// RecurringPayments finds subscription-like merchant groups: amounts within
// ±15% of their mean, and either a 20-40 day average payment gap or at least
// 3 occurrences. Top 10 by yearly cost.
func (m *PatternMiner) RecurringPayments(transactions []Transaction) *RecurringPattern {
	if len(transactions) < 4 {
		return nil
	}

	type payment struct {
		amount float64
		date   string
	}
	byMerchant := make(map[string][]payment)
	var order []string
	for _, tx := range transactions {
		merchant := strings.TrimSpace(tx.Merchant)
		if merchant == "" {
			continue
		}
		if _, exists := byMerchant[merchant]; !exists {
			order = append(order, merchant)
		}
		byMerchant[merchant] = append(byMerchant[merchant], payment{amount: sf(tx.Amount), date: tx.Date})
	}

	var items []RecurringItem
	for _, merchant := range order {
		txs := byMerchant[merchant]
		if len(txs) < 2 {
			continue
		}
		amounts := make([]float64, len(txs))
		for i, t := range txs {
			amounts[i] = t.amount
		}
		avgAmt := mean(amounts)
		if avgAmt <= 0 {
			continue
		}
		allSimilar := true
		for _, a := range amounts {
			if absFloat(a-avgAmt)/avgAmt > recurringTolerancePct {
				allSimilar = false
				break
			}
		}
		if !allSimilar {
			continue
		}

		var dates []time.Time
		for _, t := range txs {
			if d, ok := safeDate(t.date); ok {
				dates = append(dates, d)
			}
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		isMonthly := false
		if len(dates) >= 2 {
			var gapSum float64
			for i := 1; i < len(dates); i++ {
				gapSum += dates[i].Sub(dates[i-1]).Hours() / 24
			}
			avgGap := gapSum / float64(len(dates)-1)
			isMonthly = avgGap >= 20 && avgGap <= 40
		}
		if !isMonthly && len(txs) < 3 {
			continue
		}
		items = append(items, RecurringItem{
			Merchant:    merchant,
			AvgAmount:   round2(avgAmt),
			Frequency:   len(txs),
			IsMonthly:   isMonthly,
			MonthlyCost: round2(avgAmt),
			YearlyCost:  round2(avgAmt * 12),
		})
	}
	if len(items) == 0 {
		return nil
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].YearlyCost > items[j].YearlyCost })
	var totalMonthly, totalYearly float64
	for _, it := range items {
		totalMonthly += it.MonthlyCost
		totalYearly += it.YearlyCost
	}
	if len(items) > 10 {
		items = items[:10]
	}
	return &RecurringPattern{
		Items:        items,
		TotalMonthly: round2(totalMonthly),
		TotalYearly:  round2(totalYearly),
	}
}

// CategoryShifts compares the latest month's category value against the mean
// of all prior months, reporting categories with a prior average above 50
// currency units and a change above 25%. HIGH when |change| > 50%, top 6 by
// magnitude.
func (m *PatternMiner) CategoryShifts(monthlyTotals []MonthlyTotal) *CategoryShiftPattern {
	if len(monthlyTotals) < 2 {
		return nil
	}
	sorted := sortedTotals(monthlyTotals)
	current := sorted[len(sorted)-1].Categories
	previous := sorted[:len(sorted)-1]

	allCats := make(map[string]bool)
	for _, mt := range sorted {
		for cat := range mt.Categories {
			allCats[cat] = true
		}
	}
	cats := make([]string, 0, len(allCats))
	for cat := range allCats {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var shifts []CategoryShift
	for _, cat := range cats {
		var prevSum float64
		for _, mt := range previous {
			prevSum += sf(mt.Categories[cat])
		}
		prevAvg := prevSum / float64(len(previous))
		if prevAvg <= 50 {
			continue
		}
		currVal := sf(current[cat])
		changePct := (currVal - prevAvg) / prevAvg * 100
		if absFloat(changePct) <= 25 {
			continue
		}
		direction := "down"
		if changePct > 0 {
			direction = "up"
		}
		severity := SeverityMedium
		if absFloat(changePct) > 50 {
			severity = SeverityHigh
		}
		shifts = append(shifts, CategoryShift{
			Category:    cat,
			Current:     round2(currVal),
			PreviousAvg: round2(prevAvg),
			ChangePct:   round1(changePct),
			Direction:   direction,
			Severity:    severity,
		})
	}
	if len(shifts) == 0 {
		return nil
	}
	sort.SliceStable(shifts, func(i, j int) bool {
		return absFloat(shifts[i].ChangePct) > absFloat(shifts[j].ChangePct)
	})
	if len(shifts) > 6 {
		shifts = shifts[:6]
	}
	return &CategoryShiftPattern{Shifts: shifts}
}
