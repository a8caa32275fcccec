// internal/models/review.go
package models

import "github.com/google/uuid"

type Review struct {
	BaseModel
	ProductID     uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	ReviewerEmail string    `json:"reviewer_email" gorm:"size:255;not null;index"`
	ReviewerName  string    `json:"reviewer_name" gorm:"size:255"`
	ReviewerPhoto string    `json:"reviewer_photo" gorm:"type:text"`
	Rating        int       `json:"rating" gorm:"not null"`
	Comment       string    `json:"comment" gorm:"type:text"`
}
