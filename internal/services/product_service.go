// internal/services/product_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

const (
	defaultHighlightLimit = 6
	maxHighlightLimit     = 50
)

type ProductService struct {
	products store.ProductStore
	notifier Notifier
}

type CreateProductRequest struct {
	Name         string                 `json:"name" validate:"required,min=2,max=255"`
	Description  string                 `json:"description" validate:"max=5000"`
	Image        string                 `json:"image" validate:"omitempty,max=2048"`
	ExternalLink string                 `json:"external_link" validate:"omitempty,url"`
	Tags         []string               `json:"tags" validate:"max=20,dive,min=1,max=50"`
	OwnerName    string                 `json:"owner_name" validate:"max=255"`
	OwnerPhoto   string                 `json:"owner_photo" validate:"omitempty,max=2048"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// UpdateProductRequest covers descriptive fields only. Moderation state,
// featuring and votes have dedicated operations.
type UpdateProductRequest struct {
	Name         *string                `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Description  *string                `json:"description,omitempty" validate:"omitempty,max=5000"`
	Image        *string                `json:"image,omitempty" validate:"omitempty,max=2048"`
	ExternalLink *string                `json:"external_link,omitempty" validate:"omitempty,url"`
	Tags         []string               `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

type AcceptedProductParams struct {
	utils.PaginationParams
	Tag string
}

func NewProductService(products store.ProductStore, notifier Notifier) *ProductService {
	return &ProductService{
		products: products,
		notifier: notifier,
	}
}

// CreateProduct submits a listing owned by ownerEmail. New listings start
// pending, unfeatured, with no votes.
func (s *ProductService) CreateProduct(ctx context.Context, ownerEmail string, req *CreateProductRequest) (*models.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	product := &models.Product{
		OwnerEmail:   normalizeEmail(ownerEmail),
		OwnerName:    req.OwnerName,
		OwnerPhoto:   req.OwnerPhoto,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Image:        req.Image,
		ExternalLink: req.ExternalLink,
		Tags:         normalizeTags(req.Tags),
		Details:      models.JSONB(req.Details),
		Status:       models.ProductStatusPending,
		IsFeatured:   false,
		Votes:        0,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.products.Get(ctx, id)
}

// OwnerOf returns the owner email of a listing.
func (s *ProductService) OwnerOf(ctx context.Context, id uuid.UUID) (string, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return product.OwnerEmail, nil
}

// ListProducts returns every listing, newest first, optionally restricted to
// one owner.
func (s *ProductService) ListProducts(ctx context.Context, ownerEmail string) ([]models.Product, error) {
	products, _, err := s.products.List(ctx, store.ProductFilter{
		OwnerEmail: normalizeEmail(ownerEmail),
		Sort:       store.SortNewest,
	})
	return products, err
}

func (s *ProductService) ListAccepted(ctx context.Context, params AcceptedProductParams) ([]models.Product, int64, error) {
	return s.products.List(ctx, store.ProductFilter{
		Page:   toPage(params.PaginationParams),
		Status: models.ProductStatusAccepted,
		Search: params.Search,
		Tag:    strings.ToLower(strings.TrimSpace(params.Tag)),
		Sort:   sortFor(params.Sort),
	})
}

func (s *ProductService) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	featured := true
	products, _, err := s.products.List(ctx, store.ProductFilter{
		Page:     store.Page{Limit: highlightLimit(limit)},
		Status:   models.ProductStatusAccepted,
		Featured: &featured,
		Sort:     store.SortNewest,
	})
	return products, err
}

func (s *ProductService) Trending(ctx context.Context, limit int) ([]models.Product, error) {
	products, _, err := s.products.List(ctx, store.ProductFilter{
		Page:   store.Page{Limit: highlightLimit(limit)},
		Status: models.ProductStatusAccepted,
		Sort:   store.SortVotes,
	})
	return products, err
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (store.MutationResult, error) {
	if err := validateRequest(req); err != nil {
		return store.MutationResult{}, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Image != nil {
		fields["image"] = *req.Image
	}
	if req.ExternalLink != nil {
		fields["external_link"] = *req.ExternalLink
	}
	if req.Tags != nil {
		fields["tags"] = normalizeTags(req.Tags)
	}
	if req.Details != nil {
		fields["details"] = models.JSONB(req.Details)
	}

	return s.products.Update(ctx, id, fields)
}

func (s *ProductService) Accept(ctx context.Context, actor Actor, id uuid.UUID) (store.MutationResult, error) {
	return s.transition(ctx, actor, id, models.ProductStatusAccepted)
}

func (s *ProductService) Reject(ctx context.Context, actor Actor, id uuid.UUID) (store.MutationResult, error) {
	return s.transition(ctx, actor, id, models.ProductStatusRejected)
}

// transition sets status unconditionally; accepted and rejected listings can
// be moved either way. Each effective change is audited.
func (s *ProductService) transition(ctx context.Context, actor Actor, id uuid.UUID, status models.ProductStatus) (store.MutationResult, error) {
	product, result, err := s.products.SetStatus(ctx, id, status, actor.audit(models.AuditActionStatusChanged))
	if err != nil {
		return store.MutationResult{}, err
	}

	if result.ModifiedCount > 0 {
		logrus.WithFields(logrus.Fields{
			"product_id": id,
			"status":     status,
			"actor":      actor.Email,
		}).Info("Product status changed")
		if s.notifier != nil {
			s.notifier.ProductStatusChanged(product)
		}
	}
	return result, nil
}

func (s *ProductService) Feature(ctx context.Context, actor Actor, id uuid.UUID) (store.MutationResult, error) {
	result, err := s.products.SetFeatured(ctx, id, actor.audit(models.AuditActionFeatured))
	if err != nil {
		return store.MutationResult{}, err
	}

	if result.ModifiedCount > 0 && s.notifier != nil {
		if product, err := s.products.Get(ctx, id); err == nil {
			s.notifier.ProductFeatured(product)
		}
	}
	return result, nil
}

// Vote records one vote per voter per listing.
func (s *ProductService) Vote(ctx context.Context, id uuid.UUID, voterEmail string) (*models.Product, error) {
	voterEmail = normalizeEmail(voterEmail)
	if voterEmail == "" {
		return nil, invalid("voter email is required")
	}
	return s.products.Vote(ctx, id, voterEmail)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) (store.DeleteResult, error) {
	return s.products.Delete(ctx, id)
}

// DeleteReportedProduct removes a listing together with its votes and every
// report filed against it. Re-running it after a partial failure finishes the
// report purge.
func (s *ProductService) DeleteReportedProduct(ctx context.Context, actor Actor, id uuid.UUID) (store.CascadeResult, error) {
	result, err := s.products.DeleteWithReports(ctx, id, actor.audit(models.AuditActionPurged))
	if err != nil {
		return store.CascadeResult{}, err
	}

	logrus.WithFields(logrus.Fields{
		"product_id":      id,
		"product_deleted": result.ProductDeleted,
		"reports_deleted": result.ReportsDeleted,
		"actor":           actor.Email,
	}).Info("Reported product purged")
	return result, nil
}

func normalizeTags(tags []string) pq.StringArray {
	seen := make(map[string]bool, len(tags))
	out := pq.StringArray{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func highlightLimit(limit int) int {
	if limit <= 0 {
		return defaultHighlightLimit
	}
	if limit > maxHighlightLimit {
		return maxHighlightLimit
	}
	return limit
}

func sortFor(sort string) store.ProductSort {
	if sort == "votes" {
		return store.SortVotes
	}
	return store.SortNewest
}

func toPage(params utils.PaginationParams) store.Page {
	page, limit := params.Page, params.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = utils.DefaultPageLimit
	}
	return store.Page{Offset: (page - 1) * limit, Limit: limit}
}
