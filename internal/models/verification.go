package models

import "time"

// VerificationPurpose partitions the code key space; an email can hold at most
// one active code per purpose.
type VerificationPurpose string

const (
	PurposeVerify VerificationPurpose = "verify"
	PurposeReset  VerificationPurpose = "reset"
)

// VerificationCode is the stored lifecycle record of a one-time code. Only the
// salted digest is persisted, never the raw code.
type VerificationCode struct {
	Base
	Purpose   VerificationPurpose `json:"purpose"    gorm:"uniqueIndex:idx_code_key;type:varchar(16);not null"`
	Email     string              `json:"email"      gorm:"uniqueIndex:idx_code_key;not null"`
	Digest    string              `json:"-"          gorm:"type:char(64);not null"`
	ExpiresAt time.Time           `json:"expires_at" gorm:"index;not null"`
	Attempts  int                 `json:"attempts"   gorm:"not null;default:0"`
	OriginIP  string              `json:"origin_ip"`
}

func (VerificationCode) TableName() string { return "verification_codes" }
