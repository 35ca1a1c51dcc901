// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds embedded, tunable configuration for the filings
// service: the section synonym table consumed by the query analyzer.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Section Synonyms Configuration
// =============================================================================

//go:embed section_synonyms.yaml
var defaultSectionSynonymsYAML []byte

// SectionSynonyms maps canonical filing section names to the natural-language
// phrasings users type ("risk factor" → "Risk Factors"). The analyzer uses
// this as a superset of the catalog's own section names when classifying a
// query as Direct.
//
// The map is loaded from section_synonyms.yaml at startup and cached.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type SectionSynonyms map[string][]string

var (
	cachedSectionSynonyms SectionSynonyms
	sectionSynonymsOnce   sync.Once
	sectionSynonymsErr    error
)

// LoadSectionSynonyms loads and caches the section synonym mappings from the
// embedded YAML configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - SectionSynonyms: The loaded mapping. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadSectionSynonyms() (SectionSynonyms, error) {
	sectionSynonymsOnce.Do(func() {
		var raw map[string][]string
		if err := yaml.Unmarshal(defaultSectionSynonymsYAML, &raw); err != nil {
			sectionSynonymsErr = fmt.Errorf("parsing section_synonyms.yaml: %w", err)
			return
		}
		cachedSectionSynonyms = raw
		slog.Info("section synonyms loaded",
			slog.Int("section_count", len(raw)),
		)
	})
	return cachedSectionSynonyms, sectionSynonymsErr
}

// MustLoadSectionSynonyms loads section synonyms or returns an empty map on
// error. Logs a warning if loading fails but does not panic — the analyzer
// still matches against catalog section names, just without synonym
// expansion.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadSectionSynonyms() SectionSynonyms {
	synonyms, err := LoadSectionSynonyms()
	if err != nil {
		slog.Warn("failed to load section synonyms, continuing without expansion",
			slog.String("error", err.Error()),
		)
		return SectionSynonyms{}
	}
	return synonyms
}
