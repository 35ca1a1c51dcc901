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

import "slices"

// =============================================================================
// Attempts and History
// =============================================================================

// Verdict is the critic's sufficiency judgment for one attempt.
type Verdict struct {
	Sufficient bool   `json:"sufficient"`
	Reason     string `json:"reason"`
}

// Attempt is one complete plan → retrieve → synthesize → critique cycle.
// Immutable once recorded in the history.
type Attempt struct {
	Plan     Plan        `json:"plan"`
	Evidence EvidenceSet `json:"evidence"`
	Answer   string      `json:"answer"`
	Verdict  Verdict     `json:"verdict"`
}

// History is the append-only ordered log of attempts for one user query's
// lifetime.
//
// # Description
//
//	The history is owned exclusively by one query's self-correction loop
//	and is discarded when the session ends. It is passed by reference into
//	the analyzer for plan revision, which makes the loop testable by
//	feeding synthetic histories.
//
// # Thread Safety
//
// NOT safe for concurrent use. Single-owner by design: one loop instance,
// one logical control thread.
type History struct {
	attempts []Attempt
}

// NewHistory returns an empty attempt history.
func NewHistory() *History {
	return &History{}
}

// Append records a completed attempt. Attempts are never removed or reordered.
func (h *History) Append(a Attempt) {
	h.attempts = append(h.attempts, a)
}

// Len returns the number of recorded attempts.
func (h *History) Len() int {
	return len(h.attempts)
}

// Attempts returns a copy of the attempt log in recording order.
func (h *History) Attempts() []Attempt {
	return slices.Clone(h.attempts)
}

// Last returns the most recent attempt, or nil if the history is empty.
func (h *History) Last() *Attempt {
	if len(h.attempts) == 0 {
		return nil
	}
	return &h.attempts[len(h.attempts)-1]
}

// ContainsPlan reports whether any prior attempt used a plan with the same
// retrieval intent as p.
func (h *History) ContainsPlan(p *Plan) bool {
	for i := range h.attempts {
		if h.attempts[i].Plan.Equal(p) {
			return true
		}
	}
	return false
}

// TrailingEmptyEvidence counts how many consecutive attempts at the end of
// the history produced an empty evidence set. Empty evidence cannot be
// improved by re-synthesis, so the loop gives up after a run of these.
func (h *History) TrailingEmptyEvidence() int {
	n := 0
	for i := len(h.attempts) - 1; i >= 0; i-- {
		if !h.attempts[i].Evidence.Empty() {
			break
		}
		n++
	}
	return n
}

// Reasons collects the critic reasons across all attempts, in order.
// Used to build the final "information not available" explanation.
func (h *History) Reasons() []string {
	reasons := make([]string, 0, len(h.attempts))
	for i := range h.attempts {
		if r := h.attempts[i].Verdict.Reason; r != "" {
			reasons = append(reasons, r)
		}
	}
	return reasons
}
