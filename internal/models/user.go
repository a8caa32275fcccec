// internal/models/user.go
package models

type User struct {
	BaseModel
	Email        string `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name         string `json:"name" gorm:"size:255"`
	Photo        string `json:"photo" gorm:"type:text"`
	IsSubscribed bool   `json:"is_subscribed" gorm:"default:false"`
	Role         Role   `json:"role" gorm:"type:varchar(20);default:'user';not null;index"`
}

// EffectiveRole treats an unset role as a plain user.
func (u *User) EffectiveRole() Role {
	if u == nil || !u.Role.Valid() {
		return RoleUser
	}
	return u.Role
}
