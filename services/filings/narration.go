// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// NarratePlan renders a plan as one human-readable sentence for audit
// trails and logs, e.g.
//
//	"Fetched the Business section for BMO in Q1 2025."
//	"Semantic search for \"What was the CET1 ratio?\" across BMO, 2024."
//	"Pulled the most recent filings for RBC."
func NarratePlan(p *plan.Plan) string {
	var b strings.Builder

	switch p.SearchType {
	case plan.SearchDirect:
		fmt.Fprintf(&b, "Fetched the %s %s", joinNatural(p.Sections), pluralize("section", len(p.Sections)))
	case plan.SearchHybrid:
		fmt.Fprintf(&b, "Semantic search for %q", p.Concept)
	case plan.SearchComprehensive:
		b.WriteString("Pulled the most recent filings")
	default:
		fmt.Fprintf(&b, "Search of type %q", p.SearchType)
	}

	var scope []string
	if len(p.Companies) > 0 {
		scope = append(scope, joinNatural(p.Companies))
	}
	if len(p.Quarters) > 0 {
		scope = append(scope, strings.Join(p.Quarters, ", "))
	}
	if len(p.Years) > 0 {
		years := make([]string, len(p.Years))
		for i, y := range p.Years {
			years[i] = strconv.Itoa(y)
		}
		scope = append(scope, strings.Join(years, ", "))
	}

	if len(scope) > 0 {
		b.WriteString(" for ")
		b.WriteString(strings.Join(scope, " in "))
	} else {
		b.WriteString(" across all companies")
	}
	b.WriteString(".")
	return b.String()
}

// joinNatural joins names with commas and a final "and".
func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
