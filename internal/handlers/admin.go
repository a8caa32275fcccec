// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// GET /admin-statistics
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	stats, err := h.adminService.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err, "statistics")
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := services.AuditLogParams{
		PaginationParams: utils.GetPaginationParams(c),
		Action:           c.Query("action"),
		ResourceType:     c.Query("resource_type"),
		ActorEmail:       c.Query("actor_email"),
	}

	logs, total, err := h.adminService.ListAuditLogs(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "audit_log")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params.PaginationParams))
}
