package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/api/middleware"
	"github.com/OldStager01/predictive-autoscaler/internal/auth"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
)

type AuthHandler struct {
	operators   auth.Operators
	authService *auth.Service
	secure      bool
}

// NewAuthHandler serves logins for the configured operators. secure marks
// the auth cookie HTTPS-only.
func NewAuthHandler(operators auth.Operators, authService *auth.Service, secure bool) *AuthHandler {
	return &AuthHandler{
		operators:   operators,
		authService: authService,
		secure:      secure,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	Username  string `json:"username"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !h.operators.Authenticate(req.Username, req.Password) {
		logger.WarnCtxf(c.Request.Context(), "Failed login for operator %q", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.authService.GenerateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	expiresIn := int(h.authService.Duration().Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookie, token, expiresIn, "/", "", h.secure, true)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: expiresIn,
		Username:  req.Username,
	})
}
