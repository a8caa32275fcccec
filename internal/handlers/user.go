// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// POST /user
func (h *UserHandler) UpsertUser(c *gin.Context) {
	var req services.UpsertUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpsertUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, user)
}

// GET /user
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := services.UserListParams{
		PaginationParams: utils.GetPaginationParams(c),
		Role:             c.Query("role"),
	}

	users, total, err := h.userService.ListUsers(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params.PaginationParams))
}

// GET /user/:email
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, user)
}

// PATCH /user/:email
func (h *UserHandler) Subscribe(c *gin.Context) {
	result, err := h.userService.Subscribe(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, result)
}

// PATCH /user/admin/:id
func (h *UserHandler) MakeAdmin(c *gin.Context) {
	h.setRole(c, string(models.RoleAdmin))
}

// PATCH /user/moderator/:id
func (h *UserHandler) MakeModerator(c *gin.Context) {
	h.setRole(c, string(models.RoleModerator))
}

// PATCH /user/role/:id
func (h *UserHandler) SetRole(c *gin.Context) {
	var req services.SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, "", validationErrors)
		return
	}
	h.setRole(c, req.Role)
}

func (h *UserHandler) setRole(c *gin.Context, role string) {
	_, result, err := h.userService.SetRole(c.Request.Context(), actorFrom(c), c.Param("id"), role)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /user/role/:email
func (h *UserHandler) GetRole(c *gin.Context) {
	role, err := h.userService.GetRole(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{"role": role})
}
