// internal/services/report_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type ReportService struct {
	reports  store.ReportStore
	products store.ProductStore
}

type CreateReportRequest struct {
	ProductID uuid.UUID              `json:"product_id" validate:"required"`
	Reason    string                 `json:"reason" validate:"required,min=3,max=255"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func NewReportService(reports store.ReportStore, products store.ProductStore) *ReportService {
	return &ReportService{reports: reports, products: products}
}

func (s *ReportService) CreateReport(ctx context.Context, reporterEmail string, req *CreateReportRequest) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ProductID:     product.ID,
		ProductName:   product.Name,
		ReporterEmail: normalizeEmail(reporterEmail),
		Reason:        req.Reason,
		Details:       models.JSONB(req.Details),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

func (s *ReportService) ListReports(ctx context.Context, params utils.PaginationParams, productID *uuid.UUID) ([]models.Report, int64, error) {
	return s.reports.List(ctx, store.ReportFilter{
		Page:      toPage(params),
		ProductID: productID,
	})
}
