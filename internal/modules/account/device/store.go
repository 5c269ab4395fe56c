package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
)

// gormStore implements Store on the transactional persistence collaborator.
// Per-user serialization is delegated to the database: the account row is
// locked FOR UPDATE for the duration of the transaction, so concurrent
// registrations for one user run one after the other while different users
// proceed fully in parallel.
type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) InTx(ctx context.Context, userID string, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx, userID: userID})
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", errs.ErrStorageConflict, err)
	}
	return err
}

func (s *gormStore) UpsertActivity(ctx context.Context, userID, deviceID, ip string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ip", "seen_at"}),
		}).
		Create(&models.DeviceActivity{
			UserID:   userID,
			DeviceID: deviceID,
			IP:       ip,
			SeenAt:   time.Now(),
		}).Error
}

func (s *gormStore) ListDevices(ctx context.Context, userID string) ([]models.DeviceSession, error) {
	var devices []models.DeviceSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("login_at ASC").
		Find(&devices).Error
	return devices, err
}

func (s *gormStore) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&models.DeviceSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type gormTx struct {
	tx     *gorm.DB
	userID string
	locked bool
}

// lockAccount takes the user-row lock once per transaction. When the account
// does not exist yet there is nothing to lock; the unique keys on user_accounts
// and device_sessions resolve the create race into a retryable conflict.
func (t *gormTx) lockAccount() (*models.UserAccount, error) {
	var acc models.UserAccount
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&acc, "id = ?", t.userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t.locked = true
			return nil, nil
		}
		return nil, err
	}
	t.locked = true
	return &acc, nil
}

func (t *gormTx) Account() (*models.UserAccount, error) {
	return t.lockAccount()
}

func (t *gormTx) Devices() ([]models.DeviceSession, error) {
	if !t.locked {
		if _, err := t.lockAccount(); err != nil {
			return nil, err
		}
	}
	var devices []models.DeviceSession
	err := t.tx.Where("user_id = ?", t.userID).
		Order("login_at ASC").
		Find(&devices).Error
	return devices, err
}

func (t *gormTx) CreateAccount(acc *models.UserAccount) error {
	return t.tx.Create(acc).Error
}

func (t *gormTx) CreateDevice(d *models.DeviceSession) error {
	return t.tx.Create(d).Error
}

func (t *gormTx) TouchDevice(deviceID string, at time.Time) error {
	return t.tx.Model(&models.DeviceSession{}).
		Where("user_id = ? AND device_id = ?", t.userID, deviceID).
		Update("last_active", at).Error
}

func (t *gormTx) DeleteDevices(deviceIDs []string) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	return t.tx.Where("user_id = ? AND device_id IN ?", t.userID, deviceIDs).
		Delete(&models.DeviceSession{}).Error
}

func (t *gormTx) SetStatus(status models.AccountStatus) error {
	return t.tx.Model(&models.UserAccount{}).
		Where("id = ?", t.userID).
		Update("status", status).Error
}
