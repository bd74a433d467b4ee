package rules

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/clauseguard/internal/model"
)

var (
	removeTerms      = []string{"remove", "delete", "strike", "unaccept", "not accept", "reject", "not ok", "not approved", "not allowed", "disallow"}
	conditionalTerms = []string{"conditional", "negotiat", "modif", "case", "review"}
	okTerms          = []string{"acceptable", "accept", "no issue", "approved"}
	okWords          = []string{"ok", "okay", "yes"}

	highRiskCategories = []string{"dispute", "termination", "indemnif"}
	negationTerms      = []string{"shall not", "must not", "may not", "prohibited"}

	patternSplit   = regexp.MustCompile(`[;|\n]+`)
	referenceSplit = regexp.MustCompile(`[;\n]+`)
	quotedPhrase   = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
)

// parseStatus maps a free-text acceptance cell to a status.
// Remove-like wording wins over conditional, which wins over ok, so
// "Not acceptable" and "Not OK" are REMOVE and "Acceptable with
// modifications" is CONDITIONAL. A bare "No" answers an acceptability
// column and is REMOVE.
func parseStatus(cell string) model.AcceptanceStatus {
	lower := strings.Join(strings.Fields(strings.ToLower(cell)), " ")
	switch {
	case lower == "":
		return model.StatusConditional
	case lower == "no" || containsAny(lower, removeTerms):
		return model.StatusRemove
	case containsAny(lower, conditionalTerms):
		return model.StatusConditional
	case containsAny(lower, okTerms) || containsWord(lower, okWords):
		return model.StatusOK
	default:
		return model.StatusConditional
	}
}

// assessRisk applies the risk heuristics in increasing order of strength
func assessRisk(riskCell, category, requirement string, status model.AcceptanceStatus) model.RiskLevel {
	risk := model.RiskMedium
	if parsed, ok := model.ParseRiskLevel(riskCell); ok {
		risk = parsed
	}

	if containsAny(strings.ToLower(category), highRiskCategories) || status == model.StatusRemove {
		if !risk.AtLeast(model.RiskHigh) {
			risk = model.RiskHigh
		}
	}

	if containsAny(strings.ToLower(requirement), negationTerms) {
		risk = model.RiskCritical
	}
	return risk
}

// collectPatterns gathers prohibited phrases, lowercased and deduplicated in order
func collectPatterns(prohibited, notes, title string, status model.AcceptanceStatus) []string {
	var raw []string
	explicit := splitCells(prohibited, patternSplit)
	raw = append(raw, explicit...)

	for _, m := range quotedPhrase.FindAllStringSubmatch(notes, -1) {
		phrase := m[1]
		if phrase == "" {
			phrase = m[2]
		}
		raw = append(raw, phrase)
	}

	if status == model.StatusRemove && len(explicit) == 0 && title != "" {
		raw = append(raw, title)
	}

	seen := make(map[string]bool, len(raw))
	var patterns []string
	for _, p := range raw {
		p = strings.ToLower(strings.Join(strings.Fields(p), " "))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, p)
	}
	return patterns
}

// collectReferences splits the reference cell and appends the clause id cell
func collectReferences(refCell, idCell string) []string {
	refs := splitCells(refCell, referenceSplit)
	if idCell == "" {
		return refs
	}
	for _, r := range refs {
		if strings.EqualFold(r, idCell) {
			return refs
		}
	}
	return append(refs, idCell)
}

func splitCells(cell string, sep *regexp.Regexp) []string {
	var out []string
	for _, part := range sep.Split(cell, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// hasLetters reports whether an id cell reads like a clause name rather than a number
func hasLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// slug turns a category or clause id into an identifier fragment
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
