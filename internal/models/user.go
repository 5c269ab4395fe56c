package models

// AccountStatus is the user's presence state.
type AccountStatus string

const (
	StatusOnline  AccountStatus = "online"
	StatusOffline AccountStatus = "offline"
)

// UserAccount is the per-user document. The device list lives in the
// device_sessions table and is only ever mutated through device registry
// transactions so that concurrent logins never lose each other's writes.
type UserAccount struct {
	Base
	Email       string        `json:"email"        gorm:"uniqueIndex;not null"`
	DisplayName string        `json:"display_name"`
	Avatar      string        `json:"avatar"`
	About       string        `json:"about"`
	Status      AccountStatus `json:"status"       gorm:"type:varchar(16);default:offline"`
	Verified    bool          `json:"verified"`
}

func (UserAccount) TableName() string { return "user_accounts" }
