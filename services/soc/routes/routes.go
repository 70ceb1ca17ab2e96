// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AegisSOC/services/soc/handlers"
	"github.com/AleutianAI/AegisSOC/services/soc/services"
)

func SetupRoutes(router *gin.Engine, investigations *services.InvestigationService, analyzer handlers.Analyzer) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/investigate", handlers.Investigate(investigations))
		v1.GET("/investigation/:id", handlers.GetInvestigation(investigations))
		v1.GET("/investigations", handlers.ListInvestigations(investigations))
		v1.POST("/analyze-logs", handlers.AnalyzeLogs(analyzer))
	}
}
