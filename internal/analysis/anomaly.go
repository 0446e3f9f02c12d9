package analysis

import (
	"fmt"
	"sort"
)

// Default detection thresholds; overridable via config.
const (
	DefaultZThreshold = 2.0
	DefaultIQRFactor  = 1.5

	minAnomalyTransactions = 5
	maxAnomalies           = 15
)

// groupStats holds the precomputed statistics of one amount group.
type groupStats struct {
	mean   float64
	stdev  float64
	median float64
	q1     float64
	q3     float64
	iqr    float64
	count  int
}

// calcStats computes mean/stdev/median/quartiles for a group. Groups with
// fewer than 2 observations carry no signal and return nil.
func calcStats(values []float64) *groupStats {
	n := len(values)
	if n < 2 {
		return nil
	}
	s := make([]float64, n)
	copy(s, values)
	sort.Float64s(s)

	var median float64
	if n%2 == 1 {
		median = s[n/2]
	} else {
		median = (s[n/2-1] + s[n/2]) / 2
	}
	q1 := s[n/4]
	q3 := s[(3*n)/4]
	return &groupStats{
		mean:   mean(s),
		stdev:  sampleStdev(s),
		median: median,
		q1:     q1,
		q3:     q3,
		iqr:    q3 - q1,
		count:  n,
	}
}

// AnomalyDetector flags statistical outlier transactions by combining
// category and merchant z-scores, a category-level IQR upper fence and a
// stricter global z-score. Stateless and safe for concurrent use.
type AnomalyDetector struct {
	ZThreshold float64
	IQRFactor  float64
}

// NewAnomalyDetector returns a detector with the default thresholds.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{ZThreshold: DefaultZThreshold, IQRFactor: DefaultIQRFactor}
}

// Detect returns up to 15 anomalies, HIGH severity first then descending
// z-score, deduplicated by (merchant, amount, date). Fewer than 5
// transactions yield no anomalies: sparse data produces only false positives.
func (d *AnomalyDetector) Detect(transactions []Transaction) []Anomaly {
	if len(transactions) < minAnomalyTransactions {
		return nil
	}
	zThreshold := d.ZThreshold
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	iqrFactor := d.IQRFactor
	if iqrFactor <= 0 {
		iqrFactor = DefaultIQRFactor
	}

	// One grouping pass; global stats computed once, not per transaction.
	catAmounts := make(map[string][]float64)
	merchantAmounts := make(map[string][]float64)
	allAmounts := make([]float64, 0, len(transactions))
	for _, tx := range transactions {
		amt := sf(tx.Amount)
		catAmounts[tx.Category] = append(catAmounts[tx.Category], amt)
		merchantAmounts[tx.Merchant] = append(merchantAmounts[tx.Merchant], amt)
		allAmounts = append(allAmounts, amt)
	}
	catStats := make(map[string]*groupStats, len(catAmounts))
	for cat, vals := range catAmounts {
		catStats[cat] = calcStats(vals)
	}
	merchantStats := make(map[string]*groupStats, len(merchantAmounts))
	for m, vals := range merchantAmounts {
		merchantStats[m] = calcStats(vals)
	}
	globalStats := calcStats(allAmounts)

	var anomalies []Anomaly
	seen := make(map[string]bool)

	for _, tx := range transactions {
		amt := sf(tx.Amount)
		dedupKey := fmt.Sprintf("%s|%v|%s", tx.Merchant, amt, tx.Date)
		if seen[dedupKey] {
			continue
		}

		var zScore float64
		var iqrFlag bool
		var methods []string

		cs := catStats[tx.Category]
		if cs != nil && cs.stdev > 0 {
			zCat := (amt - cs.mean) / cs.stdev
			if zCat > zScore {
				zScore = zCat
			}
			if zCat > zThreshold {
				methods = append(methods, "category_zscore")
			}
		}

		// Merchant z-score only once the merchant has a real history.
		ms := merchantStats[tx.Merchant]
		if ms != nil && ms.stdev > 0 && ms.count >= 3 {
			zMerchant := (amt - ms.mean) / ms.stdev
			if zMerchant > zScore {
				zScore = zMerchant
			}
			if zMerchant > zThreshold {
				methods = append(methods, "merchant_zscore")
			}
		}

		if cs != nil && cs.iqr > 0 {
			upperFence := cs.q3 + iqrFactor*cs.iqr
			if amt > upperFence {
				iqrFlag = true
				methods = append(methods, "iqr")
			}
		}

		// Global outlier needs an extra 0.5 margin over the threshold so a
		// single expensive category does not flood the results.
		if globalStats != nil && globalStats.stdev > 0 {
			zGlobal := (amt - globalStats.mean) / globalStats.stdev
			if zGlobal > zThreshold+0.5 {
				if zGlobal > zScore {
					zScore = zGlobal
				}
				methods = append(methods, "global_zscore")
			}
		}

		if len(methods) == 0 {
			continue
		}
		seen[dedupKey] = true

		severity := SeverityMedium
		if zScore > 3.0 || (iqrFlag && zScore > 2.0) {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, Anomaly{
			Merchant:        tx.Merchant,
			Amount:          round2(amt),
			Date:            tx.Date,
			Category:        tx.Category,
			ZScore:          round2(zScore),
			IQRFlag:         iqrFlag,
			DetectionMethod: joinMethods(methods),
			Severity:        severity,
		})
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].Severity != anomalies[j].Severity {
			return anomalies[i].Severity.rank() < anomalies[j].Severity.rank()
		}
		return anomalies[i].ZScore > anomalies[j].ZScore
	})
	if len(anomalies) > maxAnomalies {
		anomalies = anomalies[:maxAnomalies]
	}
	return anomalies
}

func joinMethods(methods []string) string {
	out := methods[0]
	for _, m := range methods[1:] {
		out += "+" + m
	}
	return out
}
