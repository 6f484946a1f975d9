package models

// File is the file-cache row the mount resolver maps share sources to.
// Storage names follow the convention that home storage paths live under
// a "files/" prefix; anything else is external or object storage.
type File struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Owner   string `gorm:"column:uid_owner;type:text;not null;index"`
	Path    string `gorm:"type:text;not null"`
	Name    string `gorm:"type:text;not null"`
	IsDir   bool   `gorm:"type:boolean;not null;default:false"`
	Storage string `gorm:"type:text;not null;default:'home'"`
}
