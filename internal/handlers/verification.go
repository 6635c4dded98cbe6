// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/verifyd/internal/services/verification"
)

type sendCodeRequest struct {
	Email string `json:"email"`
}

type checkCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type registerRequest struct {
	Email string `json:"email"`
}

func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{
		"status":  "error",
		"message": message,
	})
}

func successResponse(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}

// SendCode issues a new verification code and mails it to the user.
func (h *Handlers) SendCode(c echo.Context) error {
	var req sendCodeRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errorResponse(c, http.StatusBadRequest, "A valid email is required")
	}

	err := h.svc.Issue(c.Request().Context(), req.Email, time.Now().UTC())
	switch {
	case errors.Is(err, verification.ErrUserNotFound):
		return errorResponse(c, http.StatusNotFound, "User not found")
	case errors.Is(err, verification.ErrRateLimited):
		return errorResponse(c, http.StatusTooManyRequests, "Limit per hour exceeded")
	case err != nil:
		return err
	}

	return successResponse(c)
}

// CheckCode validates a submitted code. Every failure mode shares one
// response so the endpoint leaks nothing about accounts or code state.
func (h *Handlers) CheckCode(c echo.Context) error {
	var req checkCodeRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Code == "" {
		return errorResponse(c, http.StatusBadRequest, "Email and code are required")
	}

	err := h.svc.Verify(c.Request().Context(), req.Email, req.Code, time.Now().UTC())
	switch {
	case errors.Is(err, verification.ErrCodeRejected):
		return errorResponse(c, http.StatusUnprocessableEntity, "Wrong verification code")
	case err != nil:
		return err
	}

	return successResponse(c)
}

// Register creates a user whose email can then be verified.
func (h *Handlers) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errorResponse(c, http.StatusBadRequest, "A valid email is required")
	}

	user, err := h.repo.CreateUser(c.Request().Context(), req.Email)
	if err != nil {
		// The unique index on email turns duplicates into a constraint error.
		return errorResponse(c, http.StatusConflict, "Email already registered")
	}

	return c.JSON(http.StatusCreated, user)
}
