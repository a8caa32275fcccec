// internal/models/report.go
package models

import "github.com/google/uuid"

type Report struct {
	BaseModel
	ProductID     uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	ProductName   string    `json:"product_name" gorm:"size:255"`
	ReporterEmail string    `json:"reporter_email" gorm:"size:255;not null;index"`
	Reason        string    `json:"reason" gorm:"size:255;not null"`
	Details       JSONB     `json:"details,omitempty" gorm:"type:jsonb"`
}
