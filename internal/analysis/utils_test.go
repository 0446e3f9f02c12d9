package analysis

import (
	"math"
	"strings"
	"testing"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		def  float64
		want float64
	}{
		{name: "finite value passes through", in: 42.5, def: 0, want: 42.5},
		{name: "NaN replaced", in: math.NaN(), def: 7, want: 7},
		{name: "positive infinity replaced", in: math.Inf(1), def: 0, want: 0},
		{name: "negative infinity replaced", in: math.Inf(-1), def: -1, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safeFloat(tt.in, tt.def); got != tt.want {
				t.Errorf("safeFloat(%v, %v) = %v, want %v", tt.in, tt.def, got, tt.want)
			}
		})
	}
}

func TestSafeDiv(t *testing.T) {
	if got := safeDiv(10, 2, -1); got != 5 {
		t.Errorf("safeDiv(10, 2) = %v, want 5", got)
	}
	if got := safeDiv(10, 0, -1); got != -1 {
		t.Errorf("safeDiv by zero = %v, want default -1", got)
	}
	if got := safeDiv(10, math.NaN(), -1); got != -1 {
		t.Errorf("safeDiv by NaN = %v, want default -1", got)
	}
}

func TestRounding(t *testing.T) {
	if got := round2(3.14159); got != 3.14 {
		t.Errorf("round2 = %v, want 3.14", got)
	}
	if got := round1(66.66); got != 66.7 {
		t.Errorf("round1 = %v, want 66.7", got)
	}
	if got := round3(0.87654); got != 0.877 {
		t.Errorf("round3 = %v, want 0.877", got)
	}
}

func TestCompactText(t *testing.T) {
	in := "  hello   world\n\tfoo  "
	if got := compactText(in, 0); got != "hello world foo" {
		t.Errorf("compactText = %q", got)
	}
	if got := compactText(in, 5); got != "hello" {
		t.Errorf("compactText truncated = %q", got)
	}
}

func TestSafeDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-03-15", true},
		{"2025-03-15T10:30:00", true},
		{"2025-03-15 10:30:00", true},
		{"2025-03-15T10:30:00.123456Z", true}, // truncated to 19 chars
		{"not-a-date", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := safeDate(tt.in); ok != tt.ok {
			t.Errorf("safeDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}

func TestNewID(t *testing.T) {
	id := newID("anomaly")
	if !strings.HasPrefix(id, "anomaly_") {
		t.Fatalf("newID prefix missing: %q", id)
	}
	if len(id) != len("anomaly_")+12 {
		t.Errorf("newID length = %d, want %d", len(id), len("anomaly_")+12)
	}
	if id == newID("anomaly") {
		t.Error("consecutive ids collided")
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name       string
		sampleSize int
		signal     float64
		want       int
	}{
		{name: "floor at 10", sampleSize: 0, signal: 0, want: 10},
		{name: "cap at 98", sampleSize: 100, signal: 1, want: 98},
		{name: "base plus boost", sampleSize: 3, signal: 0.5, want: 51},
		{name: "negative signal ignored", sampleSize: 3, signal: -2, want: 36},
		{name: "base capped at 70", sampleSize: 6, signal: 0, want: 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceScore(tt.sampleSize, tt.signal); got != tt.want {
				t.Errorf("confidenceScore(%d, %v) = %d, want %d", tt.sampleSize, tt.signal, got, tt.want)
			}
		})
	}
}

func TestSampleStdev(t *testing.T) {
	if got := sampleStdev([]float64{5}); got != 0 {
		t.Errorf("stdev of single value = %v, want 0", got)
	}
	got := sampleStdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := 2.138089935299395
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("sampleStdev = %v, want %v", got, want)
	}
}
