package models

// User is a local account visible to the sharing subsystem.
type User struct {
	ID          string `gorm:"primaryKey;type:text"`
	DisplayName string `gorm:"type:text"`
}

type Group struct {
	ID string `gorm:"primaryKey;type:text"`
}

type GroupMember struct {
	GroupID string `gorm:"primaryKey;type:text"`
	UserID  string `gorm:"primaryKey;type:text"`
}
