// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type AdminService struct {
	store store.Store
}

type AdminDashboardStats struct {
	ProductsByStatus map[models.ProductStatus]int64 `json:"products_by_status"`
	TotalProducts    int64                          `json:"total_products"`
	TotalUsers       int64                          `json:"total_users"`
	TotalReviews     int64                          `json:"total_reviews"`
	TotalReports     int64                          `json:"total_reports"`
}

type AuditLogParams struct {
	utils.PaginationParams
	Action       string
	ResourceType string
	ActorEmail   string
}

func NewAdminService(st store.Store) *AdminService {
	return &AdminService{store: st}
}

// GetStatistics counts listings per moderation status plus collection
// totals. Every status is present in the result, zero when unused.
func (s *AdminService) GetStatistics(ctx context.Context) (*AdminDashboardStats, error) {
	grouped, err := s.store.Products().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &AdminDashboardStats{
		ProductsByStatus: DensifyStatusCounts(grouped),
	}
	for _, count := range stats.ProductsByStatus {
		stats.TotalProducts += count
	}

	if stats.TotalUsers, err = s.store.Users().Count(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if stats.TotalReviews, err = s.store.Reviews().Count(ctx); err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	if stats.TotalReports, err = s.store.Reports().Count(ctx); err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}

	return stats, nil
}

// DensifyStatusCounts fills in zero for every status missing from a sparse
// group-by result and drops values outside the enumeration.
func DensifyStatusCounts(grouped map[models.ProductStatus]int64) map[models.ProductStatus]int64 {
	dense := make(map[models.ProductStatus]int64, len(models.ProductStatuses))
	for _, status := range models.ProductStatuses {
		dense[status] = grouped[status]
	}
	return dense
}

func (s *AdminService) ListAuditLogs(ctx context.Context, params AuditLogParams) ([]models.AuditLog, int64, error) {
	return s.store.AuditLogs().List(ctx, store.AuditFilter{
		Page:         toPage(params.PaginationParams),
		Action:       params.Action,
		ResourceType: params.ResourceType,
		ActorEmail:   normalizeEmail(params.ActorEmail),
	})
}
