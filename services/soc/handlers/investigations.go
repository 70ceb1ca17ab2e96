// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AegisSOC/services/soc/datatypes"
	"github.com/AleutianAI/AegisSOC/services/soc/services"
	"github.com/AleutianAI/AegisSOC/services/soc/storage"
)

// bindingErrorDetails flattens validator errors into field:reason pairs
// for the 400 response body.
func bindingErrorDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// Investigate runs a full investigation synchronously and returns the
// terminal state.
func Investigate(svc *services.InvestigationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.InvestigationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": bindingErrorDetails(err)})
			return
		}

		slog.Info("Received investigation request", "source", req.Source, "priority", req.Priority)

		state, err := svc.RunInvestigation(c.Request.Context(), req)
		if err != nil {
			slog.Error("investigation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "investigation failed"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// GetInvestigation returns one investigation by id.
func GetInvestigation(svc *services.InvestigationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		state, err := svc.GetInvestigation(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "investigation not found", "id": id})
			return
		}
		if err != nil {
			slog.Error("failed to load investigation", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load investigation"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// ListInvestigations returns recent investigations, newest first. The
// limit query parameter defaults to 20.
func ListInvestigations(svc *services.InvestigationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		list, err := svc.ListInvestigations(c.Request.Context(), limit)
		if err != nil {
			slog.Error("failed to list investigations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list investigations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"investigations": list, "count": len(list)})
	}
}
