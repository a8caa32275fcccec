// internal/handlers/report.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type ReportHandler struct {
	reportService  *services.ReportService
	productService *services.ProductService
}

func NewReportHandler(reportService *services.ReportService, productService *services.ProductService) *ReportHandler {
	return &ReportHandler{
		reportService:  reportService,
		productService: productService,
	}
}

// POST /report
func (h *ReportHandler) CreateReport(c *gin.Context) {
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}

	var req services.CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), email, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, report)
}

// GET /reports
func (h *ReportHandler) ListReports(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var productID *uuid.UUID
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, "", gin.H{"product_id": raw})
			return
		}
		productID = &id
	}

	reports, total, err := h.reportService.ListReports(c.Request.Context(), params, productID)
	if err != nil {
		respondError(c, err, "report")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(reports, total, params))
}

// DELETE /reports/:productId
func (h *ReportHandler) DeleteReportedProduct(c *gin.Context) {
	id, ok := paramID(c, "productId", "product")
	if !ok {
		return
	}

	result, err := h.productService.DeleteReportedProduct(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}
