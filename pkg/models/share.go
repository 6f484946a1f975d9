package models

import (
	"time"
)

// Permission is the share permission bitmask.
type Permission uint

const (
	PermissionRead   Permission = 1
	PermissionUpdate Permission = 2
	PermissionCreate Permission = 4
	PermissionDelete Permission = 8
	PermissionShare  Permission = 16

	PermissionAll Permission = 31
)

// Contains reports whether p grants every bit of other.
func (p Permission) Contains(other Permission) bool {
	return p&other == other
}

// Exceeds reports whether p asks for any bit other does not grant.
func (p Permission) Exceeds(other Permission) bool {
	return p&^other != 0
}

// ShareType is the closed set of share variants.
type ShareType int

const (
	ShareTypeUser  ShareType = 0
	ShareTypeGroup ShareType = 1
	// ShareTypeGroupUserUnique is the internal variant representing a
	// per-member override inside a group share. Never requested by
	// callers directly.
	ShareTypeGroupUserUnique ShareType = 2
	ShareTypeLink            ShareType = 3
	ShareTypeRemote          ShareType = 6
)

func (t ShareType) String() string {
	switch t {
	case ShareTypeUser:
		return "user"
	case ShareTypeGroup:
		return "group"
	case ShareTypeGroupUserUnique:
		return "group_user_unique"
	case ShareTypeLink:
		return "link"
	case ShareTypeRemote:
		return "remote"
	default:
		return "invalid"
	}
}

// Requestable reports whether callers may ask for this type on share
// creation.
func (t ShareType) Requestable() bool {
	switch t {
	case ShareTypeUser, ShareTypeGroup, ShareTypeLink, ShareTypeRemote:
		return true
	default:
		return false
	}
}

// Share is one persisted row per (item, recipient) relationship. A group
// share is one row plus zero or more derived ShareTypeGroupUserUnique
// rows referencing it as Parent.
type Share struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	ItemType    string     `gorm:"type:text;not null;index:idx_shares_item"`
	ItemSource  string     `gorm:"type:text;not null;index:idx_shares_item"`
	ItemTarget  string     `gorm:"type:text"`
	FileSource  *int64     `gorm:"type:bigint;index"`
	FileTarget  string     `gorm:"type:text"`
	ShareType   ShareType  `gorm:"type:integer;not null"`
	ShareWith   string     `gorm:"type:text;index"`
	Owner       string     `gorm:"column:uid_owner;type:text;not null;index"`
	Permissions Permission `gorm:"type:integer;not null"`
	ShareTime   time.Time  `gorm:"type:timestamp;not null"`
	Token       string     `gorm:"type:text;index"`
	Parent      *int64     `gorm:"type:bigint;index"`
	Expiration  *time.Time `gorm:"type:timestamp"`
	Password    *string    `gorm:"type:text"`
	MailSend    bool       `gorm:"type:boolean;not null;default:false"`
}

// Clone returns a deep copy. The query path mutates copies during
// post-processing and must never write through to cached rows.
func (s *Share) Clone() *Share {
	out := *s
	if s.FileSource != nil {
		v := *s.FileSource
		out.FileSource = &v
	}
	if s.Parent != nil {
		v := *s.Parent
		out.Parent = &v
	}
	if s.Expiration != nil {
		v := *s.Expiration
		out.Expiration = &v
	}
	if s.Password != nil {
		v := *s.Password
		out.Password = &v
	}
	return &out
}
