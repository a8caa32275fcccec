// internal/services/coupon_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

const couponCodeAttempts = 3

type CouponService struct {
	coupons store.CouponStore
	now     func() time.Time
}

type CreateCouponRequest struct {
	Code            string                 `json:"code" validate:"omitempty,min=3,max=64,alphanum"`
	Description     string                 `json:"description" validate:"max=1000"`
	DiscountPercent float64                `json:"discount_percent" validate:"required,gt=0,lte=100"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
}

type UpdateCouponRequest struct {
	Code            *string                `json:"code,omitempty" validate:"omitempty,min=3,max=64,alphanum"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=1000"`
	DiscountPercent *float64               `json:"discount_percent,omitempty" validate:"omitempty,gt=0,lte=100"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
}

func NewCouponService(coupons store.CouponStore) *CouponService {
	return &CouponService{coupons: coupons, now: time.Now}
}

// CreateCoupon stores a coupon, generating a code when none is supplied.
func (s *CouponService) CreateCoupon(ctx context.Context, req *CreateCouponRequest) (*models.Coupon, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	coupon := &models.Coupon{
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		ExpiresAt:       req.ExpiresAt,
		Details:         models.JSONB(req.Details),
	}

	if coupon.Code != "" {
		if err := s.coupons.Create(ctx, coupon); err != nil {
			return nil, err
		}
		return coupon, nil
	}

	for attempt := 0; attempt < couponCodeAttempts; attempt++ {
		code, err := utils.GenerateCouponCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate coupon code: %w", err)
		}
		coupon.Code = code
		err = s.coupons.Create(ctx, coupon)
		if err == nil {
			return coupon, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		coupon.ID = uuid.Nil
	}
	return nil, fmt.Errorf("could not allocate a unique coupon code: %w", store.ErrDuplicate)
}

func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return s.coupons.Get(ctx, id)
}

func (s *CouponService) ListCoupons(ctx context.Context, params utils.PaginationParams) ([]models.Coupon, int64, error) {
	return s.coupons.List(ctx, toPage(params))
}

func (s *CouponService) UpdateCoupon(ctx context.Context, id uuid.UUID, req *UpdateCouponRequest) (store.MutationResult, error) {
	if err := validateRequest(req); err != nil {
		return store.MutationResult{}, err
	}

	fields := make(map[string]interface{})
	if req.Code != nil {
		fields["code"] = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.DiscountPercent != nil {
		fields["discount_percent"] = *req.DiscountPercent
	}
	if req.ExpiresAt != nil {
		fields["expires_at"] = req.ExpiresAt
	}
	if req.Details != nil {
		fields["details"] = models.JSONB(req.Details)
	}

	return s.coupons.Update(ctx, id, fields)
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id uuid.UUID) (store.DeleteResult, error) {
	return s.coupons.Delete(ctx, id)
}

// Redeemable looks up a coupon by code and rejects expired ones.
func (s *CouponService) Redeemable(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.coupons.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if coupon.Expired(s.now()) {
		return nil, invalid("coupon %s has expired", coupon.Code)
	}
	return coupon, nil
}
