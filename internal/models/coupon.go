// internal/models/coupon.go
package models

import "time"

type Coupon struct {
	BaseModel
	Code            string     `json:"code" gorm:"uniqueIndex;size:64;not null"`
	Description     string     `json:"description" gorm:"type:text"`
	DiscountPercent float64    `json:"discount_percent" gorm:"type:decimal(5,2);not null"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Details         JSONB      `json:"details,omitempty" gorm:"type:jsonb"`
}

func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
