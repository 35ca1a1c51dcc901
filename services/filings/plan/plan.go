// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan defines the retrieval data model shared by the analyzer,
// orchestrator, and self-correction loop: the Plan (structured retrieval
// intent), the EvidenceSet produced by one retrieval, and the append-only
// AttemptHistory for one query session.
//
// The Plan's JSON field names and the SearchType values are an external
// contract consumed by logging, the HTTP API, and downstream tooling.
// They must not be renamed.
package plan

import (
	"fmt"
	"slices"
)

// =============================================================================
// SearchType
// =============================================================================

// SearchType selects the retrieval strategy for a Plan.
//
// The three values form a closed set. The orchestrator switches exhaustively
// over them: adding a strategy means adding a case there, not comparing
// free-form strings.
type SearchType string

const (
	// SearchDirect queries the structured store only, scoped to explicitly
	// named sections.
	SearchDirect SearchType = "Direct"

	// SearchComprehensive queries the structured store broadly for the most
	// recent documents, with no section or concept filter.
	SearchComprehensive SearchType = "Comprehensive"

	// SearchHybrid queries both the similarity store (using the verbatim
	// user query as the semantic probe) and the structured store.
	SearchHybrid SearchType = "Hybrid"
)

// Valid reports whether s is one of the three known strategies.
func (s SearchType) Valid() bool {
	switch s {
	case SearchDirect, SearchComprehensive, SearchHybrid:
		return true
	}
	return false
}

// =============================================================================
// Plan
// =============================================================================

// Plan is the unit of retrieval intent derived from one raw user query.
//
// # Description
//
//	Entity filters (Companies, Years, Quarters) are ordered, possibly empty
//	sequences; an empty filter means "no restriction on that field" at every
//	store boundary. Sections is non-empty iff SearchType is Direct. Concept
//	is non-empty iff SearchType is Hybrid, and when non-empty it equals the
//	original raw query byte-for-byte.
//
//	Entities the user mentioned that are absent from the entity catalog are
//	still recorded here (never silently dropped) so retrieval yields zero
//	results and the loop can conclude unavailability instead of guessing.
//
// # Thread Safety
//
// A Plan is owned by a single query session and never mutated after the
// analyzer returns it.
type Plan struct {
	Companies    []string   `json:"companies"`
	Years        []int      `json:"years"`
	Quarters     []string   `json:"quarters"`
	Sections     []string   `json:"sections"`
	Concept      string     `json:"concept"`
	OutputFormat string     `json:"output_format"`
	SearchType   SearchType `json:"search_type"`
}

// MalformedPlanError reports a Plan that violates the classification
// invariant. It is fatal: a malformed plan is rejected before retrieval.
type MalformedPlanError struct {
	Reason string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan: %s", e.Reason)
}

// Validate checks the mutual-exclusion invariant between Sections, Concept,
// and SearchType.
//
// # Description
//
//	Exactly one of {Sections non-empty, Concept non-empty, both empty} must
//	hold, corresponding respectively to Direct, Hybrid, and Comprehensive.
//	Any other combination is malformed.
//
// # Outputs
//
//   - error: Nil for a well-formed plan, *MalformedPlanError otherwise.
func (p *Plan) Validate() error {
	if !p.SearchType.Valid() {
		return &MalformedPlanError{Reason: fmt.Sprintf("unknown search_type %q", p.SearchType)}
	}
	hasSections := len(p.Sections) > 0
	hasConcept := p.Concept != ""

	if hasSections && hasConcept {
		return &MalformedPlanError{Reason: "sections and concept are mutually exclusive"}
	}

	switch p.SearchType {
	case SearchDirect:
		if !hasSections {
			return &MalformedPlanError{Reason: "Direct plan requires at least one section"}
		}
	case SearchHybrid:
		if !hasConcept {
			return &MalformedPlanError{Reason: "Hybrid plan requires a concept"}
		}
	case SearchComprehensive:
		if hasSections || hasConcept {
			return &MalformedPlanError{Reason: "Comprehensive plan must carry neither sections nor concept"}
		}
	}
	return nil
}

// Equal reports whether two plans describe the same retrieval intent.
//
// # Description
//
//	Field-wise, order-sensitive comparison of every wire field except
//	OutputFormat, which is advisory text for the synthesizer and does not
//	change what is retrieved. Used by the analyzer to avoid re-issuing a
//	plan identical to a prior failed attempt.
func (p *Plan) Equal(other *Plan) bool {
	if other == nil {
		return false
	}
	return p.SearchType == other.SearchType &&
		p.Concept == other.Concept &&
		slices.Equal(p.Companies, other.Companies) &&
		slices.Equal(p.Years, other.Years) &&
		slices.Equal(p.Quarters, other.Quarters) &&
		slices.Equal(p.Sections, other.Sections)
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Companies = slices.Clone(p.Companies)
	cp.Years = slices.Clone(p.Years)
	cp.Quarters = slices.Clone(p.Quarters)
	cp.Sections = slices.Clone(p.Sections)
	return &cp
}
