// internal/services/review_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
)

type ReviewService struct {
	reviews  store.ReviewStore
	products store.ProductStore
}

type CreateReviewRequest struct {
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	Rating        int       `json:"rating" validate:"required,min=1,max=5"`
	Comment       string    `json:"comment" validate:"max=2000"`
	ReviewerName  string    `json:"reviewer_name" validate:"max=255"`
	ReviewerPhoto string    `json:"reviewer_photo" validate:"omitempty,max=2048"`
}

func NewReviewService(reviews store.ReviewStore, products store.ProductStore) *ReviewService {
	return &ReviewService{reviews: reviews, products: products}
}

// CreateReview stores an immutable review of an existing listing.
func (s *ReviewService) CreateReview(ctx context.Context, reviewerEmail string, req *CreateReviewRequest) (*models.Review, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.products.Get(ctx, req.ProductID); err != nil {
		return nil, err
	}

	review := &models.Review{
		ProductID:     req.ProductID,
		ReviewerEmail: normalizeEmail(reviewerEmail),
		ReviewerName:  req.ReviewerName,
		ReviewerPhoto: req.ReviewerPhoto,
		Rating:        req.Rating,
		Comment:       strings.TrimSpace(req.Comment),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}
