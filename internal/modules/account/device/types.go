package device

import (
	"context"
	"strings"
	"time"

	"github.com/Vibez0-CONNECT/vibez/internal/models"
)

// RegisterInput carries the server-derived request metadata for one
// registration. UserAgent and IP come from the request itself, never from
// client-declared fields; DeclaredClass is only a hint.
type RegisterInput struct {
	UserID            string
	Email             string
	PresentedDeviceID string
	UserAgent         string
	IP                string
	DeclaredClass     string
}

// RegisterResult is the outcome of a device registration.
type RegisterResult struct {
	DeviceID    string `json:"deviceId"`
	IsNewDevice bool   `json:"isNewDevice"`
}

// Tx is the transactional view over one user's account document and device
// list. All reads and writes inside a single InTx call form one atomic
// read-decide-write unit.
type Tx interface {
	// Account returns the user's account, or nil when it does not exist yet.
	Account() (*models.UserAccount, error)
	// Devices returns the device list ordered oldest login first.
	Devices() ([]models.DeviceSession, error)
	CreateAccount(acc *models.UserAccount) error
	CreateDevice(d *models.DeviceSession) error
	TouchDevice(deviceID string, at time.Time) error
	DeleteDevices(deviceIDs []string) error
	SetStatus(status models.AccountStatus) error
}

// Store is the persistence collaborator for the device registry. InTx must
// serialize concurrent calls for the same userID (snapshot isolation or row
// locks) so two registrations never both append without seeing each other.
type Store interface {
	InTx(ctx context.Context, userID string, fn func(tx Tx) error) error
	// UpsertActivity records the companion audit row with a server-assigned
	// timestamp. Best-effort, called outside the registration transaction.
	UpsertActivity(ctx context.Context, userID, deviceID, ip string) error
	ListDevices(ctx context.Context, userID string) ([]models.DeviceSession, error)
	DeleteDevice(ctx context.Context, userID, deviceID string) error
}

// DeriveClass maps request metadata onto a device class. The client hint only
// breaks ties when the user agent says nothing.
func DeriveClass(userAgent, hint string) models.DeviceClass {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "vibez-desktop"), strings.Contains(ua, "electron"):
		return models.DeviceDesktop
	case strings.Contains(ua, "android"), strings.Contains(ua, "iphone"),
		strings.Contains(ua, "ipad"), strings.Contains(ua, "mobile"):
		return models.DeviceMobile
	case ua != "":
		return models.DeviceWeb
	}
	switch models.DeviceClass(strings.ToLower(strings.TrimSpace(hint))) {
	case models.DeviceMobile:
		return models.DeviceMobile
	case models.DeviceDesktop:
		return models.DeviceDesktop
	}
	return models.DeviceWeb
}

// Fingerprint is the best-effort client-identifying tuple used to dedup
// device entries created for the same browser/OS + IP combination.
func Fingerprint(userAgent, ip string) string {
	return strings.TrimSpace(userAgent) + "|" + strings.TrimSpace(ip)
}
