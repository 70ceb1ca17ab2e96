// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/sandbox"
)

// Analyzer is the capability behind the standalone analysis endpoint.
type Analyzer interface {
	Analyze(ctx context.Context, req datatypes.AnalystRequest) (*datatypes.AnalystResponse, error)
}

// AnalyzeLogs answers a one-off natural-language query against the
// firewall log dataset, outside of any investigation.
func AnalyzeLogs(analyzer Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AnalystRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": bindingErrorDetails(err)})
			return
		}

		slog.Info("Received analysis request", "query", req.Query)

		resp, err := analyzer.Analyze(c.Request.Context(), req)
		if errors.Is(err, sandbox.ErrDatasetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			slog.Error("analysis failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "aegis-soc"})
}
