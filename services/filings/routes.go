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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Filings routes with the router.
//
// Description:
//
//	Registers all /v1/filings/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/filings/query - Answer a natural-language question
//	GET  /v1/filings/catalog - The entity catalog
//	GET  /v1/filings/health - Health check
//	GET  /v1/filings/ready - Readiness check
//
// Example:
//
//	service, _ := filings.NewService(cfg)
//	handlers := filings.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	filings.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	filings := rg.Group("/filings")
	{
		filings.POST("/query", handlers.HandleQuery)

		filings.GET("/catalog", handlers.HandleCatalog)

		// Health checks
		filings.GET("/health", handlers.HandleHealth)
		filings.GET("/ready", handlers.HandleReady)
	}
}
