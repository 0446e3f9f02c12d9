package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
)

func TestValidateOutput(t *testing.T) {
	originals := []analysis.InsightCard{{ID: "card_1"}, {ID: "card_2"}}

	tests := []struct {
		name         string
		out          *modelOutput
		wantValid    bool
		wantWarnings int
	}{
		{
			name: "well formed",
			out: &modelOutput{
				Coach:           &modelCoach{Headline: "h", Summary: "s"},
				CardEnrichments: []cardEnrichment{{ID: "card_1", Title: "t"}},
			},
			wantValid:    true,
			wantWarnings: 0,
		},
		{
			name:         "missing coach tolerated alone",
			out:          &modelOutput{},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name: "empty headline and summary",
			out: &modelOutput{
				Coach: &modelCoach{},
			},
			wantValid:    true,
			wantWarnings: 2,
		},
		{
			name: "headline too long",
			out: &modelOutput{
				Coach: &modelCoach{Headline: strings.Repeat("x", 121), Summary: "s"},
			},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name: "unknown ids push past tolerance",
			out: &modelOutput{
				CardEnrichments: []cardEnrichment{
					{ID: "ghost_1"}, {ID: "ghost_2"},
				},
			},
			wantValid:    false,
			wantWarnings: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateOutput(tt.out, originals)
			require.Equal(t, tt.wantValid, got.valid)
			require.Len(t, got.warnings, tt.wantWarnings)
		})
	}
}

func TestDetectHallucinationDerivedNumbers(t *testing.T) {
	prompt := "FX:up|est:100|conf:80"

	// 1200 = 100 x 12 counts as a yearly derivation, not a fabrication.
	out := &modelOutput{Coach: &modelCoach{Headline: "That adds up to 1200 TL a year", Summary: "s"}}
	require.Empty(t, detectHallucination(out, prompt))

	// 200 = 100 x 2 counts as a doubling.
	out = &modelOutput{Coach: &modelCoach{Headline: "h", Summary: "Could reach 200 TL"}}
	require.Empty(t, detectHallucination(out, prompt))

	// 999 relates to nothing in the prompt.
	out = &modelOutput{Coach: &modelCoach{Headline: "h", Summary: "You wasted 999 TL"}}
	require.Len(t, detectHallucination(out, prompt), 1)
}

func TestDetectHallucinationIgnoresSmallNumbers(t *testing.T) {
	out := &modelOutput{Coach: &modelCoach{Headline: "Top 3 tips for 20 days", Summary: "s"}}
	require.Empty(t, detectHallucination(out, "P:2025-03"))
}

func TestBuildPromptShape(t *testing.T) {
	in := analysis.EnrichInput{
		Period: "2025-03",
		Insights: []analysis.InsightCard{
			{ID: "a1", Priority: analysis.SeverityHigh, Title: "T1", Summary: "S1"},
			{ID: "a2", Priority: analysis.SeverityLow, Title: "T2", Summary: "S2"},
			{ID: "a3", Priority: analysis.SeverityLow, Title: "T3", Summary: "S3"},
			{ID: "a4", Priority: analysis.SeverityLow, Title: "T4", Summary: "S4"},
			{ID: "a5", Priority: analysis.SeverityLow, Title: "T5", Summary: "S5"},
		},
		Forecast: &analysis.ForecastResult{NextMonthEstimate: 4500, Trend: analysis.TrendUp, ConfidenceScore: 80},
		Patterns: &analysis.PatternSet{
			Velocity: &analysis.VelocityPattern{DaysElapsed: 12, CurrentTotal: 2400, ProjectedMonthEnd: 6200},
			CategoryShifts: &analysis.CategoryShiftPattern{Shifts: []analysis.CategoryShift{
				{Category: "food", ChangePct: 120},
			}},
			RecurringPayments: &analysis.RecurringPattern{
				TotalMonthly: 600,
				Items:        []analysis.RecurringItem{{Merchant: "Netflix"}},
			},
		},
	}

	prompt := buildPrompt(in)
	lines := strings.Split(prompt, "\n")

	require.Equal(t, "P:2025-03", lines[0])
	require.Equal(t, "FX:up|est:4500|conf:80", lines[1])
	require.Equal(t, "VEL:12d|2400TL|proj:6200", lines[2])
	require.Equal(t, "SHIFT:food:+120%", lines[3])
	require.Equal(t, "RECUR:600TL/mo|1 items", lines[4])

	cardLines := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "C:") {
			cardLines++
		}
	}
	require.Equal(t, 4, cardLines, "at most 4 cards go into the prompt")
}

func TestSystemPromptPersonas(t *testing.T) {
	friendly := systemPrompt(analysis.PersonaFriendly)
	strict := systemPrompt(analysis.PersonaStrict)
	require.NotEqual(t, friendly, strict)
	require.Contains(t, friendly, "JSON")

	// Unknown personas get the friendly register.
	require.Equal(t, friendly, systemPrompt(analysis.Persona("pirate")))
}
