package enrich

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ahmettb/cloud-based-finance-app/internal/analysis"
)

// validationResult holds schema-level findings about the model output. Up
// to 2 warnings are tolerated so a single sloppy field does not discard an
// otherwise usable completion.
type validationResult struct {
	valid    bool
	warnings []string
}

func validateOutput(out *modelOutput, originals []analysis.InsightCard) validationResult {
	var warnings []string
	if out == nil {
		return validationResult{valid: false, warnings: []string{"Output is empty"}}
	}

	if out.Coach == nil {
		warnings = append(warnings, "Missing or invalid coach object")
	} else {
		switch {
		case out.Coach.Headline == "":
			warnings = append(warnings, "Coach headline empty")
		case len([]rune(out.Coach.Headline)) > 120:
			warnings = append(warnings, fmt.Sprintf("Coach headline too long: %d chars", len([]rune(out.Coach.Headline))))
		}
		if out.Coach.Summary == "" {
			warnings = append(warnings, "Coach summary empty")
		}
	}

	if len(out.CardEnrichments) > 0 {
		validIDs := make(map[string]bool, len(originals))
		for _, c := range originals {
			validIDs[c.ID] = true
		}
		for _, e := range out.CardEnrichments {
			if e.ID != "" && !validIDs[e.ID] {
				warnings = append(warnings, fmt.Sprintf("Unknown card ID in enrichment: %s", e.ID))
			}
		}
	}

	return validationResult{valid: len(warnings) <= 2, warnings: warnings}
}

var (
	anyNumberRe = regexp.MustCompile(`\d+`)
	bigNumberRe = regexp.MustCompile(`\d{3,}`)
)

// derivationRatios are multiples the coach may legitimately produce from a
// prompt figure: yearly (12, 52, 365), halved and doubled amounts.
var derivationRatios = []float64{12, 52, 365, 0.5, 2}

// detectHallucination flags 3+ digit numbers in the coach text that neither
// appear in the prompt nor derive from a prompt figure by a known ratio.
// Flags are observability only; they never block the output.
func detectHallucination(out *modelOutput, prompt string) []string {
	if out == nil || out.Coach == nil {
		return nil
	}
	promptNumbers := make(map[string]bool)
	for _, n := range anyNumberRe.FindAllString(prompt, -1) {
		promptNumbers[n] = true
	}

	var flags []string
	for field, text := range map[string]string{
		"headline": out.Coach.Headline,
		"summary":  out.Coach.Summary,
	} {
		if text == "" {
			continue
		}
		for _, num := range bigNumberRe.FindAllString(text, -1) {
			if promptNumbers[num] {
				continue
			}
			if isDerivation(num, promptNumbers) {
				continue
			}
			flags = append(flags, fmt.Sprintf("Possible fabricated number '%s' in coach.%s", num, field))
		}
	}
	return flags
}

func isDerivation(num string, promptNumbers map[string]bool) bool {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return false
	}
	for pn := range promptNumbers {
		p, err := strconv.ParseFloat(pn, 64)
		if err != nil {
			continue
		}
		if p < 1 {
			p = 1
		}
		ratio := v / p
		for _, want := range derivationRatios {
			if ratio > want-1e-9 && ratio < want+1e-9 {
				return true
			}
		}
	}
	return false
}
