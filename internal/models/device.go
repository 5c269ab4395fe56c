package models

import "time"

// DeviceClass is the server-derived kind of client a session comes from.
type DeviceClass string

const (
	DeviceWeb     DeviceClass = "web"
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// DeviceSession is one entry of a user's device list. DeviceID is an opaque
// server-generated token (128 bits of randomness, hex). Fingerprint is the
// user-agent + client IP captured at registration time and is only a
// best-effort dedup signal, never an identity.
type DeviceSession struct {
	Base
	UserID      string      `json:"user_id"     gorm:"index:idx_device_user;not null"`
	DeviceID    string      `json:"device_id"   gorm:"uniqueIndex;type:char(32);not null"`
	Class       DeviceClass `json:"class"       gorm:"type:varchar(16);not null"`
	Fingerprint string      `json:"fingerprint" gorm:"type:text"`
	LoginAt     time.Time   `json:"login_at"    gorm:"index;not null"`
	LastActive  time.Time   `json:"last_active" gorm:"not null"`
}

func (DeviceSession) TableName() string { return "device_sessions" }

// DeviceActivity is the companion audit record per device. It is upserted
// best-effort after the registration transaction commits, with a
// server-assigned timestamp so audit data never depends on client clocks.
type DeviceActivity struct {
	Base
	UserID   string    `json:"user_id"   gorm:"index;not null"`
	DeviceID string    `json:"device_id" gorm:"uniqueIndex;type:char(32);not null"`
	IP       string    `json:"ip"`
	SeenAt   time.Time `json:"seen_at"   gorm:"not null"`
}

func (DeviceActivity) TableName() string { return "device_activities" }
