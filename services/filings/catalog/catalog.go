// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog provides the immutable entity catalog: the snapshot of
// companies, years, quarters, and canonical section names known to the
// current database.
//
// The catalog is loaded once per session from the structured store and is
// read-only afterward. It is injected explicitly into the analyzer and the
// service — there is no ambient global lookup.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Quarters is the closed set of quarter labels, in calendar order.
var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

// Snapshot holds the distinct entity values read from the structured store.
// The field contents are whatever the store reports; New canonicalizes and
// de-duplicates them.
type Snapshot struct {
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Quarters  []string `json:"quarters"`
	Sections  []string `json:"sections"`
}

// Catalog is the immutable, process-loaded entity catalog.
//
// # Thread Safety
//
// Safe for concurrent use: all state is read-only after construction. One
// Catalog is shared across every query session for the life of the process.
type Catalog struct {
	companies map[string]string // upper-cased ticker → canonical ticker
	years     map[int]struct{}
	quarters  map[string]struct{} // "Q1".."Q4"
	sections  map[string]string   // normalized name → canonical name

	companyList []string
	yearList    []int
	quarterList []string
	sectionList []string
}

// New builds a Catalog from a store snapshot.
//
// # Description
//
//	De-duplicates and sorts every category. Company lookup is
//	case-insensitive on the ticker; section lookup is case-insensitive and
//	tolerant of trailing pluralization and surrounding punctuation, but
//	never fuzzy across distinct section names.
//
// # Outputs
//
//   - *Catalog: The immutable catalog. Never nil.
func New(snap Snapshot) *Catalog {
	c := &Catalog{
		companies: make(map[string]string, len(snap.Companies)),
		years:     make(map[int]struct{}, len(snap.Years)),
		quarters:  make(map[string]struct{}, len(snap.Quarters)),
		sections:  make(map[string]string, len(snap.Sections)),
	}

	for _, name := range snap.Companies {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, seen := c.companies[key]; !seen {
			c.companies[key] = strings.TrimSpace(name)
			c.companyList = append(c.companyList, strings.TrimSpace(name))
		}
	}
	sort.Strings(c.companyList)

	for _, y := range snap.Years {
		if _, seen := c.years[y]; !seen {
			c.years[y] = struct{}{}
			c.yearList = append(c.yearList, y)
		}
	}
	sort.Ints(c.yearList)

	for _, q := range snap.Quarters {
		label := strings.ToUpper(strings.TrimSpace(q))
		if _, seen := c.quarters[label]; !seen && validQuarter(label) {
			c.quarters[label] = struct{}{}
			c.quarterList = append(c.quarterList, label)
		}
	}
	sort.Strings(c.quarterList)

	for _, s := range snap.Sections {
		canonical := strings.TrimSpace(s)
		if canonical == "" {
			continue
		}
		key := NormalizeSection(canonical)
		if _, seen := c.sections[key]; !seen {
			c.sections[key] = canonical
			c.sectionList = append(c.sectionList, canonical)
		}
	}
	sort.Strings(c.sectionList)

	return c
}

func validQuarter(label string) bool {
	for _, q := range Quarters {
		if q == label {
			return true
		}
	}
	return false
}

// NormalizeSection lowercases a section name, strips surrounding punctuation
// from each word, and drops a trailing "s" from words of four or more
// letters. "Risk Factors", "risk factor", and "risk factors." all normalize
// to the same key; "Business" and "Financials" stay distinct.
func NormalizeSection(name string) string {
	words := strings.Fields(strings.ToLower(name))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?'\"()[]")
		if len(w) >= 4 {
			w = strings.TrimSuffix(w, "s")
		}
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// ResolveCompany maps a token to a canonical company ticker.
//
// # Outputs
//
//   - string: The canonical ticker, empty when not found.
//   - bool: True when the token names a catalog company.
func (c *Catalog) ResolveCompany(token string) (string, bool) {
	canonical, ok := c.companies[strings.ToUpper(strings.TrimSpace(token))]
	return canonical, ok
}

// HasYear reports whether the catalog contains the given year.
func (c *Catalog) HasYear(year int) bool {
	_, ok := c.years[year]
	return ok
}

// HasQuarter reports whether the catalog contains the given quarter label.
func (c *Catalog) HasQuarter(label string) bool {
	_, ok := c.quarters[strings.ToUpper(strings.TrimSpace(label))]
	return ok
}

// ResolveSection maps a section mention to its canonical name.
//
// # Description
//
//	Matching is exact on the normalized form — no edit-distance or prefix
//	fuzziness, so semantically distinct sections can never be conflated.
//
// # Outputs
//
//   - string: The canonical section name, empty when not found.
//   - bool: True when the mention matches a catalog section.
func (c *Catalog) ResolveSection(mention string) (string, bool) {
	canonical, ok := c.sections[NormalizeSection(mention)]
	return canonical, ok
}

// Companies returns the sorted canonical company tickers.
func (c *Catalog) Companies() []string { return append([]string(nil), c.companyList...) }

// Years returns the sorted known years.
func (c *Catalog) Years() []int { return append([]int(nil), c.yearList...) }

// QuarterLabels returns the sorted known quarter labels.
func (c *Catalog) QuarterLabels() []string { return append([]string(nil), c.quarterList...) }

// Sections returns the sorted canonical section names.
func (c *Catalog) Sections() []string { return append([]string(nil), c.sectionList...) }

// Empty reports whether the catalog knows no companies at all. A service
// should refuse to answer queries against an empty catalog.
func (c *Catalog) Empty() bool {
	return len(c.companyList) == 0
}

// Misses lists the entity references in the given filter values that are
// absent from the catalog, as human-readable strings ("company ZZZ",
// "year 1999"). Used to explain unavailability to the caller.
func (c *Catalog) Misses(companies []string, years []int, quarters []string) []string {
	var misses []string
	for _, company := range companies {
		if _, ok := c.ResolveCompany(company); !ok {
			misses = append(misses, fmt.Sprintf("company %s", company))
		}
	}
	for _, y := range years {
		if !c.HasYear(y) {
			misses = append(misses, fmt.Sprintf("year %d", y))
		}
	}
	for _, q := range quarters {
		if !c.HasQuarter(q) {
			misses = append(misses, fmt.Sprintf("quarter %s", q))
		}
	}
	return misses
}
