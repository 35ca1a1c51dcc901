// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner turns a raw user question into a structured retrieval
// Plan. The analyzer extracts companies, years, quarters, and section
// mentions by matching against the entity catalog and the section synonym
// table, then classifies the query into one of the three retrieval
// strategies:
//
//   - Direct: one or more filing sections were named explicitly.
//   - Hybrid: no section named; the verbatim query becomes the semantic probe.
//   - Comprehensive: only entity filters plus a generic ask ("give me a
//     summary for X").
//
// Extraction is fully deterministic: identical input always yields an
// identical Plan, which keeps the self-correction loop's history
// comparisons meaningful.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/config"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var plannerClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "filings",
	Subsystem: "planner",
	Name:      "classified_total",
	Help:      "Plans produced by search_type",
}, []string{"search_type"})

// =============================================================================
// OTel Tracer
// =============================================================================

var plannerTracer = otel.Tracer("aleutian.filings.planner")

// ErrExhausted signals that no alternative plan remains: every candidate
// extraction has already been tried and judged insufficient. The loop
// concludes unavailability when it sees this.
var ErrExhausted = errors.New("planner: no alternative plan available")

// =============================================================================
// Token Patterns
// =============================================================================

// wordPattern tokenizes a query. "&" stays inside tokens so "MD&A" survives;
// an apostrophe splits, so "RBC's" yields the ticker plus a stray "s".
var wordPattern = regexp.MustCompile(`[\w&]+`)

// yearPattern matches plausible 4-digit filing years.
var yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)

// quarterPattern matches a quarter label ("Q1", "q3").
var quarterPattern = regexp.MustCompile(`^[Qq]([1-4])$`)

// tickerPattern matches an all-caps token that looks like a company ticker.
// Digits are excluded so metric acronyms like CET1 never read as companies.
var tickerPattern = regexp.MustCompile(`^[A-Z]{2,6}$`)

// ordinalQuarters maps spelled-out quarter phrases to labels. Checked as
// bigrams over the normalized token stream.
var ordinalQuarters = map[string]string{
	"first quarter":  "Q1",
	"1st quarter":    "Q1",
	"second quarter": "Q2",
	"2nd quarter":    "Q2",
	"third quarter":  "Q3",
	"3rd quarter":    "Q3",
	"fourth quarter": "Q4",
	"4th quarter":    "Q4",
}

// tickerStopwords are all-caps tokens that are finance vocabulary, not
// companies. Without this list "EPS in 2024" would record EPS as an
// out-of-catalog company and poison the retrieval filters.
var tickerStopwords = map[string]struct{}{
	"EPS": {}, "ROE": {}, "ROA": {}, "CET": {}, "GAAP": {}, "IFRS": {},
	"USD": {}, "CAD": {}, "EUR": {}, "CEO": {}, "CFO": {}, "IPO": {},
	"ETF": {}, "SEC": {}, "US": {}, "YOY": {}, "QOQ": {}, "MDA": {},
	"AI": {}, "IT": {}, "AND": {}, "THE": {}, "FOR": {}, "WHAT": {},
}

// genericAskWords mark a query as a broad summary request. At least one must
// be present for a Comprehensive classification.
var genericAskWords = map[string]struct{}{
	"summary": {}, "summarize": {}, "summaries": {}, "overview": {},
	"report": {}, "everything": {}, "info": {}, "information": {},
	"latest": {}, "recent": {}, "filings": {}, "documents": {},
}

// fillerWords may surround a generic ask without making the query
// concept-worthy. Any leftover token outside this set forces Hybrid.
var fillerWords = map[string]struct{}{
	"give": {}, "me": {}, "a": {}, "an": {}, "the": {}, "for": {}, "of": {},
	"in": {}, "on": {}, "to": {}, "and": {}, "please": {}, "show": {},
	"get": {}, "all": {}, "about": {}, "tell": {}, "detailed": {},
	"detail": {}, "full": {}, "their": {}, "its": {}, "s": {}, "create": {},
	"with": {}, "from": {}, "company": {}, "companies": {},
}

// =============================================================================
// Analyzer
// =============================================================================

// Analyzer converts raw queries into Plans, consulting the entity catalog
// for grounding and the attempt history for plan revision.
//
// # Thread Safety
//
// Safe for concurrent use: all state is read-only after construction.
type Analyzer struct {
	catalog  *catalog.Catalog
	sections *sectionMatcher
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer bound to an immutable catalog and a
// section synonym table.
//
// # Inputs
//
//   - cat - The loaded entity catalog. Must not be nil.
//   - synonyms - Section synonym table. May be empty (catalog names still match).
//   - logger - Logger instance. Nil falls back to slog.Default().
//
// # Outputs
//
//   - *Analyzer: The configured analyzer. Never nil.
func NewAnalyzer(cat *catalog.Catalog, synonyms config.SectionSynonyms, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		catalog:  cat,
		sections: newSectionMatcher(cat, synonyms),
		logger:   logger,
	}
}

// Analyze produces the next Plan for rawQuery.
//
// # Description
//
//	On the first call (empty history) it returns the primary extraction.
//	On revision calls it walks a deterministic fallback ladder — Direct →
//	Hybrid → Comprehensive → Comprehensive with relaxed period filters —
//	skipping any candidate whose retrieval intent matches a prior failed
//	attempt. When every candidate has been tried it returns ErrExhausted.
//
//	Entities mentioned by the user but absent from the catalog are still
//	recorded in the Plan so downstream retrieval yields zero results and
//	the loop can recognize unavailability rather than guessing.
//
// # Inputs
//
//   - ctx - Context for tracing and cancellation. Must not be nil.
//   - rawQuery - The user's question, passed through verbatim for Hybrid.
//   - history - Attempt history for this query session. Must not be nil.
//
// # Outputs
//
//   - *plan.Plan: The next plan to execute. Nil only alongside an error.
//   - error: ErrExhausted when no unseen candidate remains.
//
// # Thread Safety
//
// Safe for concurrent use across distinct histories.
func (a *Analyzer) Analyze(ctx context.Context, rawQuery string, history *plan.History) (*plan.Plan, error) {
	_, span := plannerTracer.Start(ctx, "planner.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.Int("query.length", len(rawQuery)),
		attribute.Int("history.attempts", history.Len()),
	)

	ext := a.extract(rawQuery)
	primary := a.classify(rawQuery, ext)

	for _, candidate := range a.candidates(rawQuery, ext, primary) {
		if history.ContainsPlan(candidate) {
			continue
		}
		span.SetAttributes(attribute.String("search_type", string(candidate.SearchType)))
		plannerClassifiedTotal.WithLabelValues(string(candidate.SearchType)).Inc()
		a.logger.Debug("plan produced",
			slog.String("search_type", string(candidate.SearchType)),
			slog.Int("companies", len(candidate.Companies)),
			slog.Int("sections", len(candidate.Sections)),
			slog.Int("attempt", history.Len()+1),
		)
		return candidate, nil
	}

	span.SetAttributes(attribute.Bool("exhausted", true))
	a.logger.Info("plan candidates exhausted",
		slog.Int("attempts", history.Len()),
	)
	return nil, ErrExhausted
}

// extraction carries the deterministic parse of one raw query.
type extraction struct {
	companies []string // first-seen order, catalog-canonical or verbatim unknown
	years     []int
	quarters  []string
	sections  []string // canonical names, first-seen order
	leftover  []string // normalized tokens not consumed by any entity
}

// extract pulls entity mentions out of the query in one left-to-right pass.
func (a *Analyzer) extract(rawQuery string) extraction {
	var ext extraction

	tokens := wordPattern.FindAllString(rawQuery, -1)
	seenCompany := map[string]struct{}{}
	seenYear := map[int]struct{}{}
	seenQuarter := map[string]struct{}{}

	// Bigram pass for spelled-out quarters ("third quarter").
	lower := make([]string, len(tokens))
	for i, tok := range tokens {
		lower[i] = strings.ToLower(tok)
	}
	consumed := make([]bool, len(tokens))
	for i := 0; i+1 < len(tokens); i++ {
		if label, ok := ordinalQuarters[lower[i]+" "+lower[i+1]]; ok {
			if _, dup := seenQuarter[label]; !dup {
				seenQuarter[label] = struct{}{}
				ext.quarters = append(ext.quarters, label)
			}
			consumed[i], consumed[i+1] = true, true
		}
	}

	for i, tok := range tokens {
		if consumed[i] {
			continue
		}

		if m := quarterPattern.FindStringSubmatch(tok); m != nil {
			label := "Q" + m[1]
			if _, dup := seenQuarter[label]; !dup {
				seenQuarter[label] = struct{}{}
				ext.quarters = append(ext.quarters, label)
			}
			continue
		}

		if yearPattern.MatchString(tok) {
			y, _ := strconv.Atoi(tok)
			if _, dup := seenYear[y]; !dup {
				seenYear[y] = struct{}{}
				ext.years = append(ext.years, y)
			}
			continue
		}

		if canonical, ok := a.catalog.ResolveCompany(tok); ok {
			if _, dup := seenCompany[canonical]; !dup {
				seenCompany[canonical] = struct{}{}
				ext.companies = append(ext.companies, canonical)
			}
			continue
		}

		// Out-of-catalog ticker: recorded, not dropped, so retrieval
		// returns nothing and the loop can report unavailability.
		if tickerPattern.MatchString(tok) {
			if _, stop := tickerStopwords[tok]; !stop {
				if _, dup := seenCompany[tok]; !dup {
					seenCompany[tok] = struct{}{}
					ext.companies = append(ext.companies, tok)
				}
				continue
			}
		}

		ext.leftover = append(ext.leftover, lower[i])
	}

	var sectionConsumed map[string]struct{}
	ext.sections, sectionConsumed = a.sections.match(rawQuery)

	// Drop section words from the leftover so "risk factors for BMO"
	// doesn't read as concept-worthy residue.
	if len(sectionConsumed) > 0 {
		filtered := ext.leftover[:0]
		for _, w := range ext.leftover {
			if _, ok := sectionConsumed[catalog.NormalizeSection(w)]; !ok {
				filtered = append(filtered, w)
			}
		}
		ext.leftover = filtered
	}

	return ext
}

// classify applies the strategy decision function to an extraction.
//
// The decision is a closed three-way branch:
//
//  1. Any section mention → Direct.
//  2. Entity filters plus a purely generic ask → Comprehensive.
//  3. Otherwise → Hybrid with the verbatim query as concept.
func (a *Analyzer) classify(rawQuery string, ext extraction) *plan.Plan {
	base := plan.Plan{
		Companies: append([]string(nil), ext.companies...),
		Years:     append([]int(nil), ext.years...),
		Quarters:  append([]string(nil), ext.quarters...),
	}

	switch {
	case len(ext.sections) > 0:
		base.Sections = append([]string(nil), ext.sections...)
		base.SearchType = plan.SearchDirect

	case a.isGenericAsk(ext):
		base.SearchType = plan.SearchComprehensive

	default:
		// Concept fidelity: the verbatim query, no trimming or case changes.
		base.Concept = rawQuery
		base.SearchType = plan.SearchHybrid
	}

	base.OutputFormat = deriveOutputFormat(rawQuery, &base)
	return &base
}

// isGenericAsk reports whether the query is "entity filters plus a generic
// summary request" with no concept-worthy residue.
func (a *Analyzer) isGenericAsk(ext extraction) bool {
	if len(ext.companies) == 0 && len(ext.years) == 0 && len(ext.quarters) == 0 {
		return false
	}
	sawAsk := false
	for _, w := range ext.leftover {
		if _, ok := genericAskWords[w]; ok {
			sawAsk = true
			continue
		}
		if _, ok := fillerWords[w]; !ok {
			return false
		}
	}
	return sawAsk
}

// candidates builds the deterministic revision ladder for one query.
func (a *Analyzer) candidates(rawQuery string, ext extraction, primary *plan.Plan) []*plan.Plan {
	out := []*plan.Plan{primary}

	hybrid := func() *plan.Plan {
		p := &plan.Plan{
			Companies:  append([]string(nil), ext.companies...),
			Years:      append([]int(nil), ext.years...),
			Quarters:   append([]string(nil), ext.quarters...),
			Concept:    rawQuery,
			SearchType: plan.SearchHybrid,
		}
		p.OutputFormat = deriveOutputFormat(rawQuery, p)
		return p
	}
	comprehensive := func(keepPeriods bool) *plan.Plan {
		p := &plan.Plan{
			Companies:  append([]string(nil), ext.companies...),
			SearchType: plan.SearchComprehensive,
		}
		if keepPeriods {
			p.Years = append([]int(nil), ext.years...)
			p.Quarters = append([]string(nil), ext.quarters...)
		}
		p.OutputFormat = deriveOutputFormat(rawQuery, p)
		return p
	}

	switch primary.SearchType {
	case plan.SearchDirect:
		out = append(out, hybrid(), comprehensive(true), comprehensive(false))
	case plan.SearchHybrid:
		out = append(out, comprehensive(true), comprehensive(false))
	case plan.SearchComprehensive:
		out = append(out, comprehensive(false))
	}

	// The relaxed comprehensive duplicates the strict one when no period
	// filters were extracted; Equal-based dedup keeps the ladder minimal.
	deduped := out[:0]
	for _, p := range out {
		dup := false
		for _, seen := range deduped {
			if seen.Equal(p) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, p)
		}
	}
	return deduped
}
