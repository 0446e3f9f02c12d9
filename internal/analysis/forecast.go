package analysis

import "sort"

const (
	emaAlpha             = 0.35
	seasonalityThreshold = 0.15
)

// regression holds the ordinary-least-squares fit of a series against its
// index, with r² clamped to [0, 1].
type regression struct {
	slope     float64
	intercept float64
	rSquared  float64
}

// ForecastEngine estimates next-month spend by blending an exponential
// moving average with a linear-regression projection.
type ForecastEngine struct{}

// NewForecastEngine returns a forecast engine.
func NewForecastEngine() *ForecastEngine {
	return &ForecastEngine{}
}

// ema computes the exponential moving average, weighting recent values more
// heavily the larger alpha is.
func ema(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	result := values[0]
	for _, v := range values[1:] {
		result = alpha*v + (1-alpha)*result
	}
	return result
}

// linearRegression fits y = slope*x + intercept over x = 0..n-1.
func linearRegression(values []float64) regression {
	n := len(values)
	if n < 2 {
		reg := regression{}
		if n == 1 {
			reg.intercept = values[0]
		}
		return reg
	}
	fn := float64(n)
	xMean := (fn - 1) / 2
	yMean := mean(values)
	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	var slope float64
	if den != 0 {
		slope = num / den
	}
	intercept := yMean - slope*xMean

	var ssRes, ssTot float64
	for i, y := range values {
		pred := slope*float64(i) + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - yMean) * (y - yMean)
	}
	var rSquared float64
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	if rSquared < 0 {
		rSquared = 0
	}
	return regression{slope: slope, intercept: intercept, rSquared: rSquared}
}

// detectSeasonality compares the latest value against the same month one
// year earlier; a >15% deviation from parity is reported.
func detectSeasonality(values []float64) *Seasonality {
	if len(values) < 12 {
		return nil
	}
	current := values[len(values)-1]
	sameMonthPrev := values[len(values)-12]
	if sameMonthPrev <= 0 {
		return nil
	}
	ratio := current / sameMonthPrev
	if absFloat(ratio-1.0) <= seasonalityThreshold {
		return nil
	}
	direction := "lower"
	if ratio > 1 {
		direction = "higher"
	}
	return &Seasonality{
		SeasonalFactor:    round2(ratio),
		SameMonthLastYear: round2(sameMonthPrev),
		Direction:         direction,
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// sortedTotals returns the totals ordered by month key; the input order is
// never trusted.
func sortedTotals(monthlyTotals []MonthlyTotal) []MonthlyTotal {
	out := make([]MonthlyTotal, len(monthlyTotals))
	copy(out, monthlyTotals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Forecast produces the next-month estimate. The blend (0.6 EMA + 0.4
// regression) is clamped into [0.5, 2.0]x the mean of the last up-to-3
// months; the seasonality multiplier applies after that clamp, matching the
// historical behavior, so a strong seasonal swing can move the final figure
// outside the band.
func (e *ForecastEngine) Forecast(monthlyTotals []MonthlyTotal) *ForecastResult {
	if len(monthlyTotals) == 0 {
		return &ForecastResult{Trend: TrendStable, ConfidenceScore: 10, Method: "none"}
	}

	sorted := sortedTotals(monthlyTotals)
	values := make([]float64, len(sorted))
	for i, m := range sorted {
		values[i] = sf(m.Total)
	}
	n := len(values)

	if n < 2 {
		return &ForecastResult{
			NextMonthEstimate: round2(values[0]),
			Trend:             TrendStable,
			ConfidenceScore:   15,
			Method:            "single_value",
		}
	}

	emaEstimate := ema(values, emaAlpha)
	reg := linearRegression(values)
	lrEstimate := reg.slope*float64(n) + reg.intercept // one step past the series

	blended := emaEstimate*0.6 + lrEstimate*0.4

	recent := values
	if n >= 3 {
		recent = values[n-3:]
	}
	recentAvg := mean(recent)
	blended = clampFloat(blended, recentAvg*0.5, recentAvg*2.0)

	var trend Trend
	if n >= 3 {
		direction := values[n-1] - values[n-3]
		switch {
		case direction > recentAvg*0.05:
			trend = TrendUp
		case direction < -recentAvg*0.05:
			trend = TrendDown
		default:
			trend = TrendStable
		}
	} else {
		switch {
		case values[n-1] > values[n-2]:
			trend = TrendUp
		case values[n-1] < values[n-2]:
			trend = TrendDown
		default:
			trend = TrendStable
		}
	}

	var pctChange float64
	if values[n-2] > 0 {
		pctChange = (values[n-1] - values[n-2]) / values[n-2] * 100
	}

	seasonality := detectSeasonality(values)
	if seasonality != nil {
		blended *= (seasonality.SeasonalFactor + 1) / 2
	}

	return &ForecastResult{
		NextMonthEstimate: round2(blended),
		Trend:             trend,
		TrendPct:          round1(pctChange),
		ConfidenceScore:   confidenceScore(n, reg.rSquared),
		Method:            "ema_lr_blend",
		Components: &ForecastComponents{
			EMA:              round2(emaEstimate),
			LinearRegression: round2(lrEstimate),
			RSquared:         round3(reg.rSquared),
		},
		Seasonality:       seasonality,
		CategoryForecasts: e.categoryForecasts(sorted),
	}
}

// categoryForecasts runs an independent EMA per category over the full
// history, for categories with any nonzero value. Only produced when the
// latest month carries a category breakdown.
func (e *ForecastEngine) categoryForecasts(sorted []MonthlyTotal) map[string]float64 {
	if len(sorted) == 0 || len(sorted[len(sorted)-1].Categories) == 0 {
		return nil
	}
	allCats := make(map[string]bool)
	for _, m := range sorted {
		for cat := range m.Categories {
			allCats[cat] = true
		}
	}
	forecasts := make(map[string]float64)
	for cat := range allCats {
		series := make([]float64, len(sorted))
		nonzero := false
		for i, m := range sorted {
			v := sf(m.Categories[cat])
			series[i] = v
			if v > 0 {
				nonzero = true
			}
		}
		if nonzero {
			forecasts[cat] = round2(ema(series, emaAlpha))
		}
	}
	if len(forecasts) == 0 {
		return nil
	}
	return forecasts
}
