// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	OwnerEmail   string         `json:"owner_email" gorm:"size:255;not null;index"`
	OwnerName    string         `json:"owner_name" gorm:"size:255"`
	OwnerPhoto   string         `json:"owner_photo" gorm:"type:text"`
	Name         string         `json:"name" gorm:"size:255;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Image        string         `json:"image" gorm:"type:text"`
	ExternalLink string         `json:"external_link" gorm:"type:text"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[]"`
	Details      JSONB          `json:"details,omitempty" gorm:"type:jsonb"`
	Status       ProductStatus  `json:"status" gorm:"type:varchar(20);default:'pending';not null;index"`
	IsFeatured   bool           `json:"is_featured" gorm:"default:false;index"`
	Votes        int64          `json:"votes" gorm:"default:0;not null"`

	// Populated from product_votes, never stored on the row.
	Voters []string `json:"voters" gorm:"-"`
}

// ProductVote is one member of a product's voter set.
type ProductVote struct {
	BaseModel
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_product_votes_voter"`
	VoterEmail string    `json:"voter_email" gorm:"size:255;not null;uniqueIndex:idx_product_votes_voter"`
}
