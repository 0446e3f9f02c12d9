package analysis

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// safeFloat returns v, or def when v is NaN or infinite. Every numeric that
// enters the engine passes through here.
func safeFloat(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// sf is the common zero-default form of safeFloat.
func sf(v float64) float64 {
	return safeFloat(v, 0)
}

// safeDiv divides a by b, returning def when b is zero or non-finite.
func safeDiv(a, b, def float64) float64 {
	b = sf(b)
	if b == 0 {
		return def
	}
	return sf(a) / b
}

// clampFloat keeps v within [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// clampInt keeps v within [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round2 rounds to 2 decimal places, the precision of all reported amounts.
func round2(v float64) float64 {
	return math.Round(sf(v)*100) / 100
}

// round1 rounds to 1 decimal place, used for percentages.
func round1(v float64) float64 {
	return math.Round(sf(v)*10) / 10
}

// round3 rounds to 3 decimal places, used for r².
func round3(v float64) float64 {
	return math.Round(sf(v)*1000) / 1000
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// compactText collapses runs of whitespace and truncates to maxLen runes
// (0 = no limit). Keeps prompts token-friendly.
func compactText(text string, maxLen int) string {
	out := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if maxLen > 0 {
		r := []rune(out)
		if len(r) > maxLen {
			return string(r[:maxLen])
		}
	}
	return out
}

// truncate cuts s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen])
	}
	return s
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// safeDate parses the date formats the payload may carry; the zero time and
// false signal an unparsable value.
func safeDate(s string) (time.Time, bool) {
	if len(s) > 19 {
		s = s[:19]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// newID returns a unique card id like "anomaly_3f9c01d2ab4e".
func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + hex[:12]
}

// confidenceScore derives a 10-98 confidence from sample size and signal
// strength: min(70, n*12) base plus up to 30 from the signal.
func confidenceScore(sampleSize int, signal float64) int {
	if sampleSize < 0 {
		sampleSize = 0
	}
	base := sampleSize * 12
	if base > 70 {
		base = 70
	}
	boost := clampFloat(sf(signal)*30, 0, 30)
	return clampInt(base+int(boost), 10, 98)
}

// mean of a non-empty slice; 0 for an empty one.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdev is the n-1 standard deviation; 0 when fewer than 2 values.
func sampleStdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}
