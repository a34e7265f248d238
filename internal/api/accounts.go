package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "All required fields must be provided")
		return
	}

	user, err := s.deps.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			middleware.Abort(c, http.StatusBadRequest, domain.ErrConflict, "Email already registered")
			return
		}
		s.respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "Email and password are required")
		return
	}

	result, err := s.deps.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			middleware.Abort(c, http.StatusUnauthorized, domain.ErrAuthentication, "Invalid email or password")
			return
		}
		s.respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"user":      result.User,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
	})
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.Abort(c, http.StatusNotFound, domain.ErrNotFoundCode, "User not found")
		return
	}

	user, err := s.deps.Accounts.GetUser(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, user)
}
