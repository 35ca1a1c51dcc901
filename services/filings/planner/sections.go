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
	"strings"

	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/config"
)

// sectionMatcher recognizes filing section mentions in free text. Phrases
// come from two sources: the canonical section names in the catalog and
// the embedded synonym table. Each phrase is stored in normalized form
// (lowercased, punctuation trimmed, simple plurals folded) so "risk
// factor", "Risk Factors," and "risk-factors" all resolve to the same
// canonical name.
//
// Matching is a greedy longest-phrase-first scan, so "quantitative and
// qualitative disclosures" wins over any shorter overlap.
type sectionMatcher struct {
	phrases map[string]string // normalized phrase -> canonical section name
	maxLen  int               // longest phrase, in words
}

func newSectionMatcher(cat *catalog.Catalog, synonyms config.SectionSynonyms) *sectionMatcher {
	m := &sectionMatcher{phrases: map[string]string{}}

	add := func(phrase, canonical string) {
		norm, n := normalizePhrase(phrase)
		if norm == "" {
			return
		}
		m.phrases[norm] = canonical
		if n > m.maxLen {
			m.maxLen = n
		}
	}

	for _, canonical := range cat.Sections() {
		add(canonical, canonical)
	}
	// Synonyms may name sections absent from the catalog. They are still
	// matched: a plan targeting a nonexistent section retrieves nothing,
	// which the loop reports as unavailability instead of silently
	// reinterpreting the question.
	for canonical, syns := range synonyms {
		add(canonical, canonical)
		for _, s := range syns {
			add(s, canonical)
		}
	}
	return m
}

// match scans text and returns the canonical sections mentioned, in
// first-seen order, plus the set of normalized words the matches consumed.
func (m *sectionMatcher) match(text string) ([]string, map[string]struct{}) {
	words := wordPattern.FindAllString(text, -1)
	norm := make([]string, len(words))
	for i, w := range words {
		norm[i] = catalog.NormalizeSection(w)
	}

	var (
		found    []string
		seen     = map[string]struct{}{}
		consumed = map[string]struct{}{}
	)
	for i := 0; i < len(norm); {
		matched := 0
		for n := min(m.maxLen, len(norm)-i); n >= 1; n-- {
			phrase := strings.Join(norm[i:i+n], " ")
			canonical, ok := m.phrases[phrase]
			if !ok {
				continue
			}
			if _, dup := seen[canonical]; !dup {
				seen[canonical] = struct{}{}
				found = append(found, canonical)
			}
			for _, w := range norm[i : i+n] {
				consumed[w] = struct{}{}
			}
			matched = n
			break
		}
		if matched > 0 {
			i += matched
		} else {
			i++
		}
	}
	return found, consumed
}

// normalizePhrase normalizes every word of a phrase and reports the word count.
func normalizePhrase(phrase string) (string, int) {
	words := wordPattern.FindAllString(phrase, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := catalog.NormalizeSection(w); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, " "), len(out)
}
