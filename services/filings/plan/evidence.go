// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

// =============================================================================
// Evidence
// =============================================================================

// SectionRecord is one document section returned by the structured store.
//
// Quarter uses the labels "Q1".."Q4". Filename identifies the source filing
// section for citation in synthesized answers.
type SectionRecord struct {
	Company  string `json:"company"`
	Year     int    `json:"year"`
	Quarter  string `json:"quarter"`
	Section  string `json:"section"`
	DocType  string `json:"doc_type"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// VectorHit is one similarity-store result: a chunk identifier, its
// similarity score (descending within a result list), and the chunk text.
type VectorHit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// StoreFailure records a per-store retrieval failure that was absorbed
// rather than propagated. The surviving store's results still populate the
// evidence set.
type StoreFailure struct {
	// Store names the failed collaborator: "graph" or "vector".
	Store string `json:"store"`

	// Reason is a human-readable failure description (timeout, unavailable).
	Reason string `json:"reason"`
}

// EvidenceSet is the combined result of one retrieval attempt.
//
// # Description
//
//	GraphResults preserves the structured store's natural order and
//	VectorResults preserves the similarity store's descending-score order;
//	the orchestrator never re-sorts either list. An EvidenceSet is produced
//	fresh per attempt, owned solely by the Attempt that recorded it, and
//	never mutated after creation.
type EvidenceSet struct {
	GraphResults  []SectionRecord `json:"graph_results"`
	VectorResults []VectorHit     `json:"vector_results"`
	Failures      []StoreFailure  `json:"failures,omitempty"`
	SourcePlan    Plan            `json:"source_plan"`
}

// Empty reports whether both stores returned zero results.
func (e *EvidenceSet) Empty() bool {
	return len(e.GraphResults) == 0 && len(e.VectorResults) == 0
}
