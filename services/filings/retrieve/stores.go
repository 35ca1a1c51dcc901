// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieve executes a validated Plan against the two evidence
// stores and assembles the resulting EvidenceSet. The orchestrator owns
// strategy dispatch, per-store timeouts, concurrent fan-out for Hybrid,
// and graceful degradation when one store fails.
package retrieve

import (
	"context"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// Filter carries the entity constraints of a Plan to a store. An empty
// slice means "no restriction on that field".
type Filter struct {
	Companies []string
	Years     []int
	Quarters  []string
	Sections  []string
}

// GraphStore is the structured store: filing sections addressable by
// company, year, quarter, and section name.
//
// Implementations must return results in a stable natural order for equal
// filters; the orchestrator will not sort.
type GraphStore interface {
	// Query returns every section matching the filter.
	Query(ctx context.Context, f Filter) ([]plan.SectionRecord, error)

	// MostRecent returns the n most recent sections matching the filter,
	// ordered newest first (year descending, then quarter descending).
	MostRecent(ctx context.Context, f Filter, n int) ([]plan.SectionRecord, error)
}

// VectorStore is the similarity store: semantic search over filing chunks.
//
// Results come back in descending similarity order, at most topK of them.
type VectorStore interface {
	Search(ctx context.Context, query string, topK int, f Filter) ([]plan.VectorHit, error)
}

// filterFromPlan projects a Plan's entity constraints into a store Filter.
// Sections are included only for Direct retrieval.
func filterFromPlan(p *plan.Plan, withSections bool) Filter {
	f := Filter{
		Companies: p.Companies,
		Years:     p.Years,
		Quarters:  p.Quarters,
	}
	if withSections {
		f.Sections = p.Sections
	}
	return f
}
