// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filings

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/loop"
	"github.com/AleutianAI/FilingsAgent/services/filings/plan"
)

// mockRunner scripts the loop outcome for handler tests.
type mockRunner struct {
	runFunc func(ctx context.Context, rawQuery string) (*loop.Result, error)
}

func (m *mockRunner) Run(ctx context.Context, rawQuery string) (*loop.Result, error) {
	return m.runFunc(ctx, rawQuery)
}

func testServiceWith(t *testing.T, cat *catalog.Catalog, runner queryRunner) *Service {
	t.Helper()
	return &Service{
		catalog: cat,
		runner:  runner,
		logger:  slog.Default(),
	}
}

func populatedCatalog() *catalog.Catalog {
	return catalog.New(catalog.Snapshot{
		Companies: []string{"BMO", "RBC"},
		Years:     []int{2024, 2025},
		Quarters:  []string{"Q1", "Q4"},
		Sections:  []string{"Business", "Risk Factors"},
	})
}

func setupRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router
}

func acceptedResult() *loop.Result {
	return &loop.Result{
		State:  loop.StateAccepted,
		Answer: "BMO operates three client groups.",
		Reason: "complete",
		Attempts: []plan.Attempt{{
			Plan: plan.Plan{
				Companies:  []string{"BMO"},
				Years:      []int{2025},
				Quarters:   []string{"Q1"},
				Sections:   []string{"Business"},
				SearchType: plan.SearchDirect,
			},
			Evidence: plan.EvidenceSet{
				GraphResults: []plan.SectionRecord{{Company: "BMO"}},
			},
			Answer:  "BMO operates three client groups.",
			Verdict: plan.Verdict{Sufficient: true, Reason: "complete"},
		}},
	}
}

func TestHandleQueryAccepted(t *testing.T) {
	svc := testServiceWith(t, populatedCatalog(), &mockRunner{
		runFunc: func(_ context.Context, q string) (*loop.Result, error) {
			assert.Equal(t, "Give me the Business section for BMO in Q1 2025", q)
			return acceptedResult(), nil
		},
	})
	router := setupRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/filings/query",
		strings.NewReader(`{"query": "Give me the Business section for BMO in Q1 2025"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, loop.StateAccepted, res.State)
	assert.Equal(t, "BMO operates three client groups.", res.Answer)
	assert.NotEmpty(t, res.SessionID)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "Direct", res.Attempts[0].SearchType)
	assert.Contains(t, res.Attempts[0].Plan, "Business")
	assert.Equal(t, 1, res.Attempts[0].Evidence)
}

func TestHandleQueryUnavailableIs200(t *testing.T) {
	svc := testServiceWith(t, populatedCatalog(), &mockRunner{
		runFunc: func(context.Context, string) (*loop.Result, error) {
			return &loop.Result{
				State:  loop.StateUnavailable,
				Answer: "The requested information is not available in the indexed filings.",
				Reason: "repeated retrievals found no matching evidence",
			}, nil
		},
	})
	router := setupRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/filings/query",
		strings.NewReader(`{"query": "summary for ZZZT"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "unavailability is a pipeline success")

	var res QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, loop.StateUnavailable, res.State)
}

func TestHandleQueryEmptyBody(t *testing.T) {
	svc := testServiceWith(t, populatedCatalog(), &mockRunner{
		runFunc: func(context.Context, string) (*loop.Result, error) {
			t.Fatal("loop must not run for an invalid request")
			return nil, nil
		},
	})
	router := setupRouter(svc)

	for _, body := range []string{`{}`, `{"query": "   "}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/filings/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
}

func TestHandleQueryEmptyCatalog(t *testing.T) {
	svc := testServiceWith(t, catalog.New(catalog.Snapshot{}), &mockRunner{
		runFunc: func(context.Context, string) (*loop.Result, error) {
			t.Fatal("loop must not run against an empty catalog")
			return nil, nil
		},
	})
	router := setupRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/filings/query",
		strings.NewReader(`{"query": "anything"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "CATALOG_EMPTY", er.Code)
}

func TestHandleCatalog(t *testing.T) {
	svc := testServiceWith(t, populatedCatalog(), &mockRunner{})
	router := setupRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/filings/catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var res CatalogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"BMO", "RBC"}, res.Companies)
	assert.Equal(t, []int{2024, 2025}, res.Years)
	assert.Contains(t, res.Sections, "Risk Factors")
}

func TestHandleReady(t *testing.T) {
	ready := testServiceWith(t, populatedCatalog(), &mockRunner{})
	w := httptest.NewRecorder()
	setupRouter(ready).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/filings/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	empty := testServiceWith(t, catalog.New(catalog.Snapshot{}), &mockRunner{})
	w = httptest.NewRecorder()
	setupRouter(empty).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/filings/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNarratePlan(t *testing.T) {
	direct := &plan.Plan{
		Companies:  []string{"BMO"},
		Years:      []int{2025},
		Quarters:   []string{"Q1"},
		Sections:   []string{"Business"},
		SearchType: plan.SearchDirect,
	}
	assert.Equal(t, "Fetched the Business section for BMO in Q1 in 2025.", NarratePlan(direct))

	hybrid := &plan.Plan{
		Concept:    "What was the CET1 ratio?",
		Companies:  []string{"BMO", "RBC"},
		SearchType: plan.SearchHybrid,
	}
	narrated := NarratePlan(hybrid)
	assert.Contains(t, narrated, `"What was the CET1 ratio?"`)
	assert.Contains(t, narrated, "BMO and RBC")

	comprehensive := &plan.Plan{SearchType: plan.SearchComprehensive}
	assert.Equal(t, "Pulled the most recent filings across all companies.", NarratePlan(comprehensive))
}
