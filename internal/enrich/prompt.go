package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
)

var personaTones = map[analysis.Persona]string{
	analysis.PersonaFriendly:     "Use a warm, motivating and supportive tone.",
	analysis.PersonaProfessional: "Use a formal, objective and precise financial-advisor register.",
	analysis.PersonaStrict:       "Use a disciplined, demanding tone and call out problems directly.",
	analysis.PersonaHumorous:     "Use a playful, witty tone and slip in the occasional joke.",
}

// systemPrompt fixes the model's role, tone and the exact JSON envelope it
// must return.
func systemPrompt(persona analysis.Persona) string {
	tone := personaTones[persona.Normalize()]
	return "You are a personal finance coach. " + tone + "\n" +
		"Task: interpret the financial results you are given and write an original, fluent summary for the user.\n" +
		"Rules:\n" +
		"- No template sentences; speak to the specific data.\n" +
		"- Warn when spending rose, congratulate when it fell.\n" +
		"- Never give investment advice.\n" +
		"- Return JSON only, no surrounding text.\n" +
		`JSON format:` + "\n" +
		`{"coach":{"headline":"title, max 60 characters",` +
		`"summary":"detailed paragraph, max 450 characters.",` +
		`"focus_areas":["focus1","focus2"]},` +
		`"card_enrichments":[{"id":"card_id","title":"max 70 characters",` +
		`"summary":"max 160 characters","actions":["action1","action2"]}]}` + "\n"
}

// buildPrompt renders the analysis results as a compact line protocol. Token
// economy over readability: no PII, amounts as integers, at most 4 cards.
func buildPrompt(in analysis.EnrichInput) string {
	lines := []string{"P:" + compactText(in.Period, 12)}

	if fx := in.Forecast; fx != nil {
		lines = append(lines, fmt.Sprintf("FX:%s|est:%.0f|conf:%d",
			compactText(string(fx.Trend), 10), fx.NextMonthEstimate, fx.ConfidenceScore))
	}

	if in.Patterns != nil {
		if vel := in.Patterns.Velocity; vel != nil {
			lines = append(lines, fmt.Sprintf("VEL:%dd|%.0fTL|proj:%.0f",
				vel.DaysElapsed, vel.CurrentTotal, vel.ProjectedMonthEnd))
		}
		if shifts := in.Patterns.CategoryShifts; shifts != nil && len(shifts.Shifts) > 0 {
			parts := make([]string, 0, 3)
			for _, s := range shifts.Shifts {
				if len(parts) >= 3 {
					break
				}
				parts = append(parts, fmt.Sprintf("%s:%+.0f%%", compactText(s.Category, 16), s.ChangePct))
			}
			lines = append(lines, "SHIFT:"+strings.Join(parts, "|"))
		}
		if rec := in.Patterns.RecurringPayments; rec != nil {
			lines = append(lines, fmt.Sprintf("RECUR:%.0fTL/mo|%d items",
				rec.TotalMonthly, len(rec.Items)))
		}
	}

	cards := in.Insights
	if len(cards) > 4 {
		cards = cards[:4]
	}
	for _, c := range cards {
		lines = append(lines, fmt.Sprintf("C:%s|%s|%s|%s",
			compactText(c.ID, 24),
			compactText(string(c.Priority), 10),
			compactText(c.Title, 48),
			compactText(c.Summary, 56)))
	}

	return strings.Join(lines, "\n")
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// compactText collapses whitespace runs and truncates to maxLen runes.
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
