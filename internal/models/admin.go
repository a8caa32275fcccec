// internal/models/admin.go
package models

// Audit actions
const (
	AuditActionRoleChanged   = "user.role_changed"
	AuditActionStatusChanged = "product.status_changed"
	AuditActionFeatured      = "product.featured"
	AuditActionPurged        = "product.purged"
)

type AuditLog struct {
	BaseModel
	ActorEmail   string `json:"actor_email" gorm:"size:255;not null;index"`
	Action       string `json:"action" gorm:"size:100;not null;index"`
	ResourceType string `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string `json:"resource_id" gorm:"size:64;index"`
	OldValues    JSONB  `json:"old_values" gorm:"type:jsonb"`
	NewValues    JSONB  `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string `json:"ip_address" gorm:"size:45"`
	UserAgent    string `json:"user_agent" gorm:"type:text"`
}
