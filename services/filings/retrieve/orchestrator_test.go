// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// mockGraphStore implements GraphStore with pluggable function fields.
type mockGraphStore struct {
	queryFunc      func(ctx context.Context, f Filter) ([]plan.SectionRecord, error)
	mostRecentFunc func(ctx context.Context, f Filter, n int) ([]plan.SectionRecord, error)
}

func (m *mockGraphStore) Query(ctx context.Context, f Filter) ([]plan.SectionRecord, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, f)
	}
	return nil, nil
}

func (m *mockGraphStore) MostRecent(ctx context.Context, f Filter, n int) ([]plan.SectionRecord, error) {
	if m.mostRecentFunc != nil {
		return m.mostRecentFunc(ctx, f, n)
	}
	return nil, nil
}

// mockVectorStore implements VectorStore with a pluggable function field.
type mockVectorStore struct {
	searchFunc func(ctx context.Context, query string, topK int, f Filter) ([]plan.VectorHit, error)
}

func (m *mockVectorStore) Search(ctx context.Context, query string, topK int, f Filter) ([]plan.VectorHit, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, topK, f)
	}
	return nil, nil
}

var sampleRecords = []plan.SectionRecord{
	{Company: "BMO", Year: 2025, Quarter: "Q1", Section: "Business", Text: "ops"},
	{Company: "BMO", Year: 2024, Quarter: "Q4", Section: "Business", Text: "older"},
}

func TestRetrieveDirectDispatch(t *testing.T) {
	var gotFilter Filter
	graph := &mockGraphStore{
		queryFunc: func(_ context.Context, f Filter) ([]plan.SectionRecord, error) {
			gotFilter = f
			return sampleRecords, nil
		},
	}
	vector := &mockVectorStore{
		searchFunc: func(context.Context, string, int, Filter) ([]plan.VectorHit, error) {
			t.Fatal("Direct retrieval must not touch the vector store")
			return nil, nil
		},
	}
	o := NewOrchestrator(graph, vector, time.Second, nil)

	p := &plan.Plan{
		Companies:  []string{"BMO"},
		Years:      []int{2025},
		Quarters:   []string{"Q1"},
		Sections:   []string{"Business"},
		SearchType: plan.SearchDirect,
	}
	ev, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"Business"}, gotFilter.Sections)
	assert.Equal(t, sampleRecords, ev.GraphResults)
	assert.Empty(t, ev.VectorResults)
	assert.Empty(t, ev.Failures)
}

func TestRetrieveComprehensiveDispatch(t *testing.T) {
	var gotN int
	graph := &mockGraphStore{
		mostRecentFunc: func(_ context.Context, f Filter, n int) ([]plan.SectionRecord, error) {
			gotN = n
			assert.Empty(t, f.Sections)
			return sampleRecords, nil
		},
	}
	o := NewOrchestrator(graph, &mockVectorStore{}, time.Second, nil)

	p := &plan.Plan{Companies: []string{"BMO"}, SearchType: plan.SearchComprehensive}
	ev, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, comprehensiveLimit, gotN)
	assert.Equal(t, sampleRecords, ev.GraphResults)
}

func TestRetrieveHybridFanOut(t *testing.T) {
	hits := []plan.VectorHit{
		{ChunkID: "c1", Score: 0.93, Text: "capital ratio was 12.5%"},
		{ChunkID: "c2", Score: 0.88, Text: "capital adequacy"},
	}
	graph := &mockGraphStore{
		queryFunc: func(_ context.Context, f Filter) ([]plan.SectionRecord, error) {
			assert.Empty(t, f.Sections, "Hybrid graph query carries no section filter")
			return sampleRecords, nil
		},
	}
	var gotQuery string
	var gotTopK int
	vector := &mockVectorStore{
		searchFunc: func(_ context.Context, q string, topK int, _ Filter) ([]plan.VectorHit, error) {
			gotQuery, gotTopK = q, topK
			return hits, nil
		},
	}
	o := NewOrchestrator(graph, vector, time.Second, nil)

	const raw = "What was BMO's CET1 capital ratio in Q4 2024?"
	p := &plan.Plan{
		Companies:  []string{"BMO"},
		Years:      []int{2024},
		Quarters:   []string{"Q4"},
		Concept:    raw,
		SearchType: plan.SearchHybrid,
	}
	ev, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, raw, gotQuery, "the semantic probe is the verbatim query")
	assert.Equal(t, hybridTopK, gotTopK)
	assert.Equal(t, hits, ev.VectorResults, "vector order preserved")
	assert.Equal(t, sampleRecords, ev.GraphResults, "graph order preserved")
}

func TestRetrieveHybridDegradesOnVectorFailure(t *testing.T) {
	graph := &mockGraphStore{
		queryFunc: func(context.Context, Filter) ([]plan.SectionRecord, error) {
			return sampleRecords, nil
		},
	}
	vector := &mockVectorStore{
		searchFunc: func(context.Context, string, int, Filter) ([]plan.VectorHit, error) {
			return nil, errors.New("connection refused")
		},
	}
	o := NewOrchestrator(graph, vector, time.Second, nil)

	p := &plan.Plan{Concept: "anything", SearchType: plan.SearchHybrid}
	ev, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err, "a single store failure must not fail retrieval")

	assert.Equal(t, sampleRecords, ev.GraphResults)
	assert.Empty(t, ev.VectorResults)
	require.Len(t, ev.Failures, 1)
	assert.Equal(t, "vector", ev.Failures[0].Store)
	assert.Contains(t, ev.Failures[0].Reason, "connection refused")
}

func TestRetrieveGraphTimeoutAbsorbed(t *testing.T) {
	graph := &mockGraphStore{
		queryFunc: func(ctx context.Context, _ Filter) ([]plan.SectionRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := NewOrchestrator(graph, &mockVectorStore{}, 10*time.Millisecond, nil)

	p := &plan.Plan{Sections: []string{"Business"}, SearchType: plan.SearchDirect}
	ev, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, ev.Failures, 1)
	assert.Equal(t, "graph", ev.Failures[0].Store)
	assert.True(t, ev.Empty())
}

func TestRetrieveRejectsMalformedPlan(t *testing.T) {
	called := false
	graph := &mockGraphStore{
		queryFunc: func(context.Context, Filter) ([]plan.SectionRecord, error) {
			called = true
			return nil, nil
		},
	}
	o := NewOrchestrator(graph, &mockVectorStore{}, time.Second, nil)

	// Direct with no sections violates the classification invariant.
	p := &plan.Plan{Companies: []string{"BMO"}, SearchType: plan.SearchDirect}
	_, err := o.Retrieve(context.Background(), p)

	var malformed *plan.MalformedPlanError
	require.True(t, errors.As(err, &malformed))
	assert.False(t, called, "a malformed plan must never reach a store")
}

func TestRetrieveIdempotent(t *testing.T) {
	graph := &mockGraphStore{
		queryFunc: func(context.Context, Filter) ([]plan.SectionRecord, error) {
			return sampleRecords, nil
		},
	}
	o := NewOrchestrator(graph, &mockVectorStore{}, time.Second, nil)

	p := &plan.Plan{Sections: []string{"Business"}, SearchType: plan.SearchDirect}
	first, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)
	second, err := o.Retrieve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first.GraphResults, second.GraphResults)
	assert.Equal(t, first.VectorResults, second.VectorResults)
}

func TestRetrieveCanceledContext(t *testing.T) {
	graph := &mockGraphStore{
		queryFunc: func(ctx context.Context, _ Filter) ([]plan.SectionRecord, error) {
			return nil, ctx.Err()
		},
	}
	o := NewOrchestrator(graph, &mockVectorStore{}, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &plan.Plan{Sections: []string{"Business"}, SearchType: plan.SearchDirect}
	_, err := o.Retrieve(ctx, p)
	assert.True(t, errors.Is(err, context.Canceled))
}
