// internal/handlers/coupon.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

type CouponHandler struct {
	couponService *services.CouponService
}

func NewCouponHandler(couponService *services.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponService}
}

// POST /coupons
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req services.CreateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	coupon, err := h.couponService.CreateCoupon(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "coupon")
		return
	}

	utils.CreatedResponse(c, coupon)
}

// GET /coupons
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	coupons, total, err := h.couponService.ListCoupons(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "coupon")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(coupons, total, params))
}

// GET /coupons/:id
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	coupon, err := h.couponService.GetCoupon(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "coupon")
		return
	}

	utils.SuccessResponse(c, coupon)
}

// PUT /coupons/:id
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	var req services.UpdateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.couponService.UpdateCoupon(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "coupon")
		return
	}

	utils.SuccessResponse(c, result)
}

// DELETE /coupons/:id
func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	result, err := h.couponService.DeleteCoupon(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "coupon")
		return
	}

	utils.SuccessResponse(c, result)
}
