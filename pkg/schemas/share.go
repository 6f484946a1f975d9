package schemas

import "time"

// ShareCreate is the request body for creating a share of any type.
type ShareCreate struct {
	ItemType   string `json:"itemType" validate:"required"`
	ItemSource string `json:"itemSource" validate:"required"`
	ShareType  int    `json:"shareType"`
	// ShareWith is the user id, group id or remote user@host; empty for
	// link shares.
	ShareWith   string     `json:"shareWith,omitempty"`
	Permissions uint       `json:"permissions"`
	Name        string     `json:"name,omitempty"`
	ExpireDate  *time.Time `json:"expireDate,omitempty"`
	// Password only applies to link shares. Absent keeps any existing
	// password, empty removes it, anything else replaces it.
	Password *string `json:"password,omitempty"`
}

// ShareCreated reports the persisted share rows.
type ShareCreated struct {
	Ids            []int64 `json:"ids"`
	Token          string  `json:"token,omitempty"`
	RemoteAccepted bool    `json:"remoteAccepted,omitempty"`
}

// ShareDelete identifies one share relationship to remove.
type ShareDelete struct {
	ItemType   string `json:"itemType" validate:"required"`
	ItemSource string `json:"itemSource" validate:"required"`
	ShareType  int    `json:"shareType"`
	ShareWith  string `json:"shareWith,omitempty"`
}

// SharePermissionsUpdate replaces the permission mask of a share.
type SharePermissionsUpdate struct {
	ItemType    string `json:"itemType" validate:"required"`
	ItemSource  string `json:"itemSource" validate:"required"`
	ShareType   int    `json:"shareType"`
	ShareWith   string `json:"shareWith,omitempty"`
	Permissions uint   `json:"permissions"`
}

// ShareExpirationUpdate sets or clears the expiration of a link share.
type ShareExpirationUpdate struct {
	ItemType   string     `json:"itemType" validate:"required"`
	ItemSource string     `json:"itemSource" validate:"required"`
	ExpireDate *time.Time `json:"expireDate"`
}

// ShareMailUpdate records whether the notification mail went out.
type ShareMailUpdate struct {
	ItemType   string `json:"itemType" validate:"required"`
	ItemSource string `json:"itemSource" validate:"required"`
	ShareType  int    `json:"shareType"`
	ShareWith  string `json:"shareWith,omitempty"`
	Sent       bool   `json:"sent"`
}

// ShareUnlock carries the password attempt for a protected link share.
type ShareUnlock struct {
	Password string `json:"password" validate:"required"`
}

// ShareOut is one share in API responses.
type ShareOut struct {
	Id               int64      `json:"id"`
	ItemType         string     `json:"itemType"`
	ItemSource       string     `json:"itemSource"`
	ItemTarget       string     `json:"itemTarget,omitempty"`
	FileTarget       string     `json:"fileTarget,omitempty"`
	Path             string     `json:"path,omitempty"`
	ShareType        int        `json:"shareType"`
	ShareTypeName    string     `json:"shareTypeName"`
	ShareWith        string     `json:"shareWith,omitempty"`
	DisplayShareWith string     `json:"shareWithDisplayname,omitempty"`
	Owner            string     `json:"owner"`
	DisplayOwner     string     `json:"ownerDisplayname,omitempty"`
	Permissions      uint       `json:"permissions"`
	ShareTime        time.Time  `json:"shareTime"`
	Token            string     `json:"token,omitempty"`
	ExpireDate       *time.Time `json:"expireDate,omitempty"`
	Protected        bool       `json:"protected"`
	MailSend         bool       `json:"mailSend"`
}

// TokenShare is the public view of a link or federated share, resolved
// by its token. Recipient facing, so it hides the password hash and the
// resharing chain.
type TokenShare struct {
	Id         int64      `json:"id"`
	ItemType   string     `json:"itemType"`
	ItemSource string     `json:"itemSource"`
	Owner      string     `json:"owner"`
	FileTarget string     `json:"fileTarget,omitempty"`
	ExpireDate *time.Time `json:"expireDate,omitempty"`
	Protected  bool       `json:"protected"`
}
