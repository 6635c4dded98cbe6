// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers translates HTTP requests into verification core calls and
// maps outcomes to status codes. No business logic lives here.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/verifyd/internal/repository"
	"codeberg.org/oliverandrich/verifyd/internal/services/verification"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo *repository.Repository
	svc  *verification.Service
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, svc *verification.Service) *Handlers {
	return &Handlers{repo: repo, svc: svc}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
