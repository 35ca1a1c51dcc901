// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// Answer-shape detection. The output_format field is advisory prose handed
// to the synthesizer; it never affects retrieval, so simple keyword cues
// are enough here.

var comparativeCues = []string{"compare", "comparison", "versus", " vs ", " vs. ", "difference between", "side by side"}

var trendCues = []string{"trend", "over time", "growth", "evolve", "change over", "year over year", "trajectory"}

var singleFactPattern = regexp.MustCompile(`(?i)^\s*(what|when|which|who|how much|how many|did|does|is|was|were)\b`)

// deriveOutputFormat produces the presentation guidance for a plan. The
// result depends only on the raw query text and the plan's filters, so
// equal extractions always carry equal guidance.
func deriveOutputFormat(rawQuery string, p *plan.Plan) string {
	lower := strings.ToLower(rawQuery)

	comparative := len(p.Companies) > 1
	for _, cue := range comparativeCues {
		if strings.Contains(lower, cue) {
			comparative = true
			break
		}
	}
	trend := len(p.Years) > 1
	for _, cue := range trendCues {
		if strings.Contains(lower, cue) {
			trend = true
			break
		}
	}

	switch {
	case comparative:
		return "A side-by-side comparison across the named companies, organized by company with the key differences called out."
	case trend:
		return "A period-over-period narrative highlighting how the figures changed across the requested years and quarters."
	case p.SearchType == plan.SearchHybrid && singleFactPattern.MatchString(rawQuery):
		return "A direct answer stating the specific fact or figure first, followed by a one-paragraph supporting explanation."
	case p.SearchType == plan.SearchDirect:
		return "A faithful summary of the requested section text, preserving its key points and any stated figures."
	case p.SearchType == plan.SearchComprehensive:
		return "A general summary of the most recent filings matching the request, grouped by document."
	default:
		return "A focused explanation grounded in the most relevant passages, with figures quoted where available."
	}
}
