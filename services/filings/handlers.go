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
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error envelope for all filings endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the body of POST /v1/filings/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// CatalogResponse is the body of GET /v1/filings/catalog.
type CatalogResponse struct {
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Quarters  []string `json:"quarters"`
	Sections  []string `json:"sections"`
}

// Handlers holds the HTTP handlers for the filings service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handlers for a wired service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleQuery answers one natural-language question.
//
// Description:
//
//	POST /v1/filings/query with {"query": "..."}. Runs the full
//	self-correction loop and returns the terminal outcome: an accepted
//	answer or an explanation of unavailability, plus the per-attempt
//	audit trail. Unavailability is a successful 200 response — the
//	pipeline worked; the corpus simply lacks the information.
func (h *Handlers) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query must not be empty",
			Code:  "MISSING_QUERY",
		})
		return
	}

	result, err := h.svc.Ask(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, ErrCatalogEmpty) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: err.Error(),
				Code:  "CATALOG_EMPTY",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCatalog returns the entity catalog the analyzer grounds on.
func (h *Handlers) HandleCatalog(c *gin.Context) {
	cat := h.svc.Catalog()
	c.JSON(http.StatusOK, CatalogResponse{
		Companies: cat.Companies(),
		Years:     cat.Years(),
		Quarters:  cat.QuarterLabels(),
		Sections:  cat.Sections(),
	})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports readiness: the service can accept queries only once
// the catalog holds a corpus.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.svc.Catalog().Empty() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "entity catalog is empty",
			Code:  "CATALOG_EMPTY",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
