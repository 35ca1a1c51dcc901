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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/config"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cat := catalog.New(catalog.Snapshot{
		Companies: []string{"BMO", "RBC", "TD"},
		Years:     []int{2023, 2024, 2025},
		Quarters:  []string{"Q1", "Q2", "Q3", "Q4"},
		Sections:  []string{"Business", "Risk Factors", "Financials", "MD&A"},
	})
	return NewAnalyzer(cat, config.MustLoadSectionSynonyms(), nil)
}

func TestAnalyzeDirect(t *testing.T) {
	a := testAnalyzer(t)

	p, err := a.Analyze(context.Background(), "Give me the Business section for BMO in Q1 2025", plan.NewHistory())
	require.NoError(t, err)

	assert.Equal(t, plan.SearchDirect, p.SearchType)
	assert.Equal(t, []string{"BMO"}, p.Companies)
	assert.Equal(t, []int{2025}, p.Years)
	assert.Equal(t, []string{"Q1"}, p.Quarters)
	assert.Equal(t, []string{"Business"}, p.Sections)
	assert.Empty(t, p.Concept)
	require.NoError(t, p.Validate())
}

func TestAnalyzeHybridConceptVerbatim(t *testing.T) {
	a := testAnalyzer(t)

	const raw = "What was BMO's CET1 capital ratio in Q4 2024?"
	p, err := a.Analyze(context.Background(), raw, plan.NewHistory())
	require.NoError(t, err)

	assert.Equal(t, plan.SearchHybrid, p.SearchType)
	assert.Equal(t, raw, p.Concept, "concept must carry the raw query byte-for-byte")
	assert.Equal(t, []string{"BMO"}, p.Companies)
	assert.Equal(t, []int{2024}, p.Years)
	assert.Equal(t, []string{"Q4"}, p.Quarters)
	assert.Empty(t, p.Sections)
	require.NoError(t, p.Validate())
}

func TestAnalyzeComprehensive(t *testing.T) {
	a := testAnalyzer(t)

	p, err := a.Analyze(context.Background(), "Give me a summary for RBC", plan.NewHistory())
	require.NoError(t, err)

	assert.Equal(t, plan.SearchComprehensive, p.SearchType)
	assert.Equal(t, []string{"RBC"}, p.Companies)
	assert.Empty(t, p.Sections)
	assert.Empty(t, p.Concept)
	require.NoError(t, p.Validate())
}

func TestAnalyzeSectionSynonyms(t *testing.T) {
	a := testAnalyzer(t)

	tests := []struct {
		query   string
		section string
	}{
		{"Show me the risk factor discussion for TD", "Risk Factors"},
		{"TD md&a for 2024", "MD&A"},
		{"What do the financials say for BMO", "Financials"},
	}
	for _, tc := range tests {
		p, err := a.Analyze(context.Background(), tc.query, plan.NewHistory())
		require.NoError(t, err, tc.query)
		assert.Equal(t, plan.SearchDirect, p.SearchType, tc.query)
		assert.Contains(t, p.Sections, tc.section, tc.query)
	}
}

func TestAnalyzeRecordsUnknownEntities(t *testing.T) {
	a := testAnalyzer(t)

	p, err := a.Analyze(context.Background(), "Give me a summary for ZZZT in 1999", plan.NewHistory())
	require.NoError(t, err)

	// Out-of-catalog mentions stay in the plan so retrieval comes back
	// empty and the loop can surface unavailability.
	assert.Equal(t, []string{"ZZZT"}, p.Companies)
	assert.Equal(t, []int{1999}, p.Years)
}

func TestAnalyzeSpelledQuarter(t *testing.T) {
	a := testAnalyzer(t)

	p, err := a.Analyze(context.Background(), "RBC third quarter 2024 summary", plan.NewHistory())
	require.NoError(t, err)
	assert.Equal(t, []string{"Q3"}, p.Quarters)
	assert.Equal(t, []int{2024}, p.Years)
}

func TestAnalyzeIgnoresFinanceAcronyms(t *testing.T) {
	a := testAnalyzer(t)

	p, err := a.Analyze(context.Background(), "How did EPS and ROE move for RBC in 2024?", plan.NewHistory())
	require.NoError(t, err)
	assert.Equal(t, []string{"RBC"}, p.Companies, "EPS/ROE must not read as companies")
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := testAnalyzer(t)

	const raw = "Compare the Risk Factors for BMO and RBC in 2024"
	first, err := a.Analyze(context.Background(), raw, plan.NewHistory())
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), raw, plan.NewHistory())
	require.NoError(t, err)

	assert.True(t, first.Equal(second), "identical input must yield identical plans")
	assert.Equal(t, first.OutputFormat, second.OutputFormat)
}

func TestAnalyzeRevisionLadder(t *testing.T) {
	a := testAnalyzer(t)
	history := plan.NewHistory()

	const raw = "Give me the Business section for BMO in Q1 2025"
	ctx := context.Background()

	failed := func(p *plan.Plan) {
		history.Append(plan.Attempt{
			Plan:    *p,
			Verdict: plan.Verdict{Sufficient: false, Reason: "incomplete"},
		})
	}

	first, err := a.Analyze(ctx, raw, history)
	require.NoError(t, err)
	assert.Equal(t, plan.SearchDirect, first.SearchType)
	failed(first)

	second, err := a.Analyze(ctx, raw, history)
	require.NoError(t, err)
	assert.Equal(t, plan.SearchHybrid, second.SearchType)
	assert.False(t, second.Equal(first), "revision must not repeat a failed plan")
	failed(second)

	third, err := a.Analyze(ctx, raw, history)
	require.NoError(t, err)
	assert.Equal(t, plan.SearchComprehensive, third.SearchType)
	failed(third)

	// One relaxed comprehensive remains (period filters dropped), then
	// the ladder is exhausted.
	fourth, err := a.Analyze(ctx, raw, history)
	require.NoError(t, err)
	assert.Equal(t, plan.SearchComprehensive, fourth.SearchType)
	assert.Empty(t, fourth.Years)
	assert.Empty(t, fourth.Quarters)
	failed(fourth)

	_, err = a.Analyze(ctx, raw, history)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestAnalyzeExhaustedComprehensive(t *testing.T) {
	a := testAnalyzer(t)
	history := plan.NewHistory()

	p, err := a.Analyze(context.Background(), "Give me a summary for RBC", history)
	require.NoError(t, err)
	history.Append(plan.Attempt{Plan: *p, Verdict: plan.Verdict{Reason: "insufficient"}})

	// Comprehensive with no period filters has no fallback left.
	_, err = a.Analyze(context.Background(), "Give me a summary for RBC", history)
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestDeriveOutputFormat(t *testing.T) {
	comparative := &plan.Plan{Companies: []string{"BMO", "RBC"}, SearchType: plan.SearchDirect}
	assert.Contains(t, deriveOutputFormat("risk factors for BMO and RBC", comparative), "side-by-side")

	trend := &plan.Plan{Companies: []string{"BMO"}, Years: []int{2023, 2024}, SearchType: plan.SearchHybrid}
	assert.Contains(t, deriveOutputFormat("BMO revenue 2023 2024", trend), "period-over-period")

	fact := &plan.Plan{Companies: []string{"BMO"}, SearchType: plan.SearchHybrid}
	assert.Contains(t, deriveOutputFormat("What was BMO's CET1 ratio?", fact), "direct answer")
}
