// internal/handlers/review.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// POST /reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}

	var req services.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), email, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, review)
}

// GET /reviews/:productId
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	id, ok := paramID(c, "productId", "product")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListReviews(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "review")
		return
	}

	utils.SuccessResponse(c, reviews)
}
