// Package report parses the model's free-text answer into a typed report.
//
// The model is instructed to answer with named sections, but the parser
// treats the text as a best-effort lexer input rather than a strict grammar:
// headers are matched case-insensitively with markdown/number/bullet noise
// stripped, missing sections yield empty fields, and a response with no
// recognizable headers at all degrades to raw text only. Parse never fails.
package report

import (
	"regexp"
	"strings"

	"github.com/sheralamHF/log-explorer/internal/models"
)

type section int

const (
	secNone section = iota
	secSummary
	secServices
	secPatterns
	secRootCauses
	secInvestigation
	secTraceIDs
)

// headerAliases map normalized header text to a section. Matching is by
// prefix so "Root Causes Identified" still lands in root causes.
var headerAliases = []struct {
	prefix string
	sec    section
}{
	{"summary", secSummary},
	{"affected services", secServices},
	{"error patterns", secPatterns},
	{"patterns", secPatterns},
	{"root causes", secRootCauses},
	{"potential root causes", secRootCauses},
	{"investigation areas", secInvestigation},
	{"areas to investigate", secInvestigation},
	{"places to investigate", secInvestigation},
	{"recommendations", secInvestigation},
	{"trace ids", secTraceIDs},
	{"related trace ids", secTraceIDs},
}

var (
	headerNoiseRe = regexp.MustCompile(`^[#*\-•\s]*(?:\d+[.)]\s*)?`)
	bulletRe      = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	emphasisRe    = regexp.MustCompile(`\*\*|__`)
	numberedRe    = regexp.MustCompile(`^\d+[.)]\s`)
)

// Parse turns raw model text into a Report. The raw text is always preserved
// in RawModelText.
func Parse(raw string) *models.Report {
	r := &models.Report{RawModelText: raw}

	bodies := make(map[section][]string)
	current := secNone
	sawHeader := false

	for _, line := range strings.Split(raw, "\n") {
		if sec, ok := matchHeader(line); ok {
			current = sec
			sawHeader = true
			continue
		}
		if current != secNone {
			bodies[current] = append(bodies[current], line)
		}
	}

	if !sawHeader {
		return r
	}

	r.Summary = joinBody(bodies[secSummary])
	r.AffectedServices = listItems(bodies[secServices])
	r.Patterns = listItems(bodies[secPatterns])
	r.RootCauses = listItems(bodies[secRootCauses])
	r.InvestigationAreas = listItems(bodies[secInvestigation])
	r.TraceIDs = listItems(bodies[secTraceIDs])
	return r
}

// matchHeader reports whether the line is a recognized section header. A
// header line either carries explicit header dressing (markdown #, bold,
// a list number, a trailing colon) or is short enough to be a bare title;
// its text, with the noise stripped, must start with a known alias. The
// length gate keeps body sentences that happen to open with an alias word
// ("Patterns in when errors occur...") out of the header set.
func matchHeader(line string) (section, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return secNone, false
	}
	dressed := strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "**") ||
		strings.HasSuffix(trimmed, ":") ||
		numberedRe.MatchString(trimmed)
	if !dressed && len(trimmed) > 40 {
		return secNone, false
	}
	if len(trimmed) > 80 {
		return secNone, false
	}
	text := headerNoiseRe.ReplaceAllString(trimmed, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = strings.TrimSuffix(strings.TrimSpace(text), ":")
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return secNone, false
	}
	for _, alias := range headerAliases {
		if strings.HasPrefix(text, alias.prefix) {
			return alias.sec, true
		}
	}
	return secNone, false
}

func joinBody(lines []string) string {
	var kept []string
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

// listItems extracts one item per non-empty line, stripping bullet and
// number markers and markdown emphasis.
func listItems(lines []string) []string {
	var items []string
	for _, l := range lines {
		s := bulletRe.ReplaceAllString(strings.TrimSpace(l), "")
		s = strings.TrimSpace(emphasisRe.ReplaceAllString(s, ""))
		if s == "" || strings.EqualFold(s, "none identified") || strings.EqualFold(s, "none") {
			continue
		}
		items = append(items, s)
	}
	return items
}
