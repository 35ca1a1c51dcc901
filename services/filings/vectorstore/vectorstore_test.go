// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/FilingsAgent/services/filings/retrieve"
)

func TestParseHitsPreservesOrder(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				ClassName: []interface{}{
					map[string]interface{}{
						"chunkId": "bmo-2024-q4-0042",
						"text":    "The CET1 ratio was 12.5%.",
						"_additional": map[string]interface{}{
							"certainty": 0.94,
						},
					},
					map[string]interface{}{
						"chunkId": "bmo-2024-q4-0017",
						"text":    "Capital adequacy remained strong.",
						"_additional": map[string]interface{}{
							"certainty": 0.81,
						},
					},
				},
			},
		},
	}

	hits, err := parseHits(resp)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "bmo-2024-q4-0042", hits[0].ChunkID)
	assert.InDelta(t, 0.94, hits[0].Score, 1e-9)
	assert.Equal(t, "The CET1 ratio was 12.5%.", hits[0].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score, "store order is descending certainty")
}

func TestParseHitsGraphQLError(t *testing.T) {
	resp := &models.GraphQLResponse{
		Errors: []*models.GraphQLError{{Message: "class FilingChunk not found"}},
	}
	_, err := parseHits(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class FilingChunk not found")
}

func TestParseHitsEmptyResponse(t *testing.T) {
	hits, err := parseHits(&models.GraphQLResponse{Data: map[string]models.JSONObject{}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildWhere(t *testing.T) {
	assert.Nil(t, buildWhere(retrieve.Filter{}), "empty filter imposes no constraint")

	single := buildWhere(retrieve.Filter{Companies: []string{"BMO"}})
	require.NotNil(t, single)

	multi := buildWhere(retrieve.Filter{
		Companies: []string{"BMO", "RBC"},
		Years:     []int{2024},
		Quarters:  []string{"Q4"},
	})
	require.NotNil(t, multi)
}
