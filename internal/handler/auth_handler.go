package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/spotmap-go/internal/middleware"
	"github.com/jengzang/spotmap-go/internal/service"
	"github.com/jengzang/spotmap-go/pkg/response"
)

// AuthHandler handles sign-in and session checks
type AuthHandler struct {
	sessionService *service.SessionService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessionService *service.SessionService) *AuthHandler {
	return &AuthHandler{sessionService: sessionService}
}

// SignInRequest is the body of POST /api/v1/auth/session
type SignInRequest struct {
	Email string `json:"email" binding:"required"`
}

// SignIn handles POST /api/v1/auth/session
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	session, err := h.sessionService.SignIn(c.Request.Context(), req.Email)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, session)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	response.Success(c, gin.H{"email": c.GetString(middleware.ContextEmail)})
}
