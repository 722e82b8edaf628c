package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/PrivvyRentals/pricing_api/internal/service"
	"github.com/PrivvyRentals/pricing_api/internal/utils"
)

// AuthHandler handles admin authentication.
type AuthHandler struct {
	adminAuthService *service.AdminAuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(adminAuthService *service.AdminAuthService) *AuthHandler {
	return &AuthHandler{adminAuthService: adminAuthService}
}

// Login handles POST /v1/admin/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Email and password are required")
		return
	}

	token, err := h.adminAuthService.Login(req.Email, req.Password)
	if err != nil {
		utils.Error(c, 401, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{"token": token})
}
