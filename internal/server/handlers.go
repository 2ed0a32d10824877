package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payportal/authgw/internal/auth"
	"github.com/payportal/authgw/internal/validation"
)

// handleRegister creates a new account and returns a session token.
func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	result, err := s.service.Register(c.Request.Context(), req)
	if err != nil {
		s.serviceError(c, err, "Server error during registration")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   result.Token,
		"user":    result.User,
	})
}

// handleLogin authenticates credentials and returns a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	result, err := s.service.Login(c.Request.Context(), req)
	if err != nil {
		s.serviceError(c, err, "Server error during login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

// handleMe returns the account named by the bearer token.
func (s *Server) handleMe(c *gin.Context) {
	bearer := bearerToken(c)
	if bearer == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}

	user, err := s.service.Introspect(c.Request.Context(), bearer)
	if err != nil {
		s.serviceError(c, err, "Server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Payment Portal API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// bearerToken extracts the token from the Authorization header. The Bearer
// prefix is optional, matching clients that send the raw token.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// bindError maps a body decoding failure to a 400. Oversized bodies read
// through the body cap surface here as well.
func (s *Server) bindError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

// serviceError maps a service error to its HTTP status. Internal failures
// get the operation-specific opaque message; everything else carries the
// error's own text.
func (s *Server) serviceError(c *gin.Context, err error, internalMsg string) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}
