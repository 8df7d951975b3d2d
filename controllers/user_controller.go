package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/zap"
)

// UpdateUserRequest represents the request body for updating a user profile.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	PhotoURL    *string `json:"photo_url" binding:"omitempty,url"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
	CompanyName *string `json:"company_name" binding:"omitempty,max=200"`
	TaxID       *string `json:"tax_id" binding:"omitempty,max=20"`
}

// UpdateRoleRequest represents an admin role assignment
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=client employee admin consultant"`
}

// UserController serves /users
type UserController struct {
	users        *services.UserService
	identity     services.IdentityProvider
	logger       *zap.Logger
	confirmation string
}

// NewUserController creates a UserController
func NewUserController(users *services.UserService, identity services.IdentityProvider, logger *zap.Logger, confirmation string) *UserController {
	return &UserController{users: users, identity: identity, logger: logger, confirmation: confirmation}
}

// CreateUser handles POST /api/v1/users - registers the signed-in user on first login.
// Profile data comes from the identity provider, never from the request body.
func (h *UserController) CreateUser(c *gin.Context) {
	uid, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, utils.Unauthorized("Could not extract user ID from token"))
		return
	}

	profile, err := h.identity.Profile(c.Request.Context(), uid, middleware.GetAccessToken(c))
	if err != nil {
		h.logger.Warn("Failed to fetch identity profile", zap.String("uid", uid), zap.Error(err))
		respondError(c, utils.NewAppError("IDENTITY_PROVIDER_ERROR",
			"Failed to fetch user information from the identity provider", http.StatusBadGateway, err))
		return
	}

	user, created, err := h.users.EnsureUser(c.Request.Context(), uid, *profile)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.Success(c, status, user)
}

// GetMyProfile handles GET /api/v1/users/me
func (h *UserController) GetMyProfile(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func (h *UserController) UpdateMyProfile(c *gin.Context) {
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentActor(c), services.UserUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Phone:       req.Phone,
		Address:     req.Address,
		CompanyName: req.CompanyName,
		TaxID:       req.TaxID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, user)
}

// ListUsers handles GET /api/v1/users?role= (admin only)
func (h *UserController) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsersByRole(c.Request.Context(), middleware.CurrentActor(c), models.Role(c.Query("role")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, users)
}

// UpdateUserRole handles PATCH /api/v1/users/:uid/role (admin only)
func (h *UserController) UpdateUserRole(c *gin.Context) {
	var req UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateUserRole(c.Request.Context(), middleware.CurrentActor(c), c.Param("uid"), models.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/:uid (admin only, confirmation code required)
func (h *UserController) DeleteUser(c *gin.Context) {
	if !requireConfirmation(c, h.confirmation) {
		return
	}
	if err := h.users.DeleteUser(c.Request.Context(), middleware.CurrentActor(c), c.Param("uid")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted",
	})
}
