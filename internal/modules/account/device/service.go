package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/ratelimit"
)

// Service owns the per-user device list and session metadata.
type Service struct {
	store      Store
	limiter    *ratelimit.Limiter
	maxDevices int
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, limiter *ratelimit.Limiter, maxDevices int, logger *zap.Logger) *Service {
	if maxDevices <= 0 {
		maxDevices = 10
	}
	return &Service{
		store:      store,
		limiter:    limiter,
		maxDevices: maxDevices,
		logger:     logger,
		now:        time.Now,
	}
}

// Register merges a newly authenticated device into the user's device list
// inside one transaction. A presented device id that still has a stored entry
// only refreshes last-active; everything else runs the new-device path with a
// fresh server-generated id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id", errs.ErrInvalidInput)
	}
	if !s.limiter.Allow("device:user:"+in.UserID) || !s.limiter.Allow("device:ip:"+in.IP) {
		return nil, errs.ErrRateLimited
	}

	fingerprint := Fingerprint(in.UserAgent, in.IP)
	class := DeriveClass(in.UserAgent, in.DeclaredClass)

	var result RegisterResult
	err := s.store.InTx(ctx, in.UserID, func(tx Tx) error {
		devices, err := tx.Devices()
		if err != nil {
			return err
		}

		if in.PresentedDeviceID != "" {
			for _, d := range devices {
				if d.DeviceID == in.PresentedDeviceID {
					if err := tx.TouchDevice(d.DeviceID, s.now()); err != nil {
						return err
					}
					result = RegisterResult{DeviceID: d.DeviceID, IsNewDevice: false}
					return s.ensureAccount(tx, in)
				}
			}
			// Presented id has no stored entry (evicted or forged); never
			// trust it, fall through to a fresh one.
		}

		deviceID, err := newDeviceID()
		if err != nil {
			return err
		}

		// Dedup entries created earlier for the same browser/OS + IP, then
		// evict oldest beyond the cap, leaving room for the new entry.
		stale := make([]string, 0, 2)
		kept := 0
		for _, d := range devices {
			if d.Fingerprint == fingerprint {
				stale = append(stale, d.DeviceID)
			} else {
				kept++
			}
		}
		for _, d := range devices {
			if kept < s.maxDevices {
				break
			}
			if d.Fingerprint == fingerprint {
				continue
			}
			stale = append(stale, d.DeviceID)
			kept--
		}
		if len(stale) > 0 {
			if err := tx.DeleteDevices(stale); err != nil {
				return err
			}
		}

		now := s.now()
		if err := tx.CreateDevice(&models.DeviceSession{
			UserID:      in.UserID,
			DeviceID:    deviceID,
			Class:       class,
			Fingerprint: fingerprint,
			LoginAt:     now,
			LastActive:  now,
		}); err != nil {
			return err
		}
		result = RegisterResult{DeviceID: deviceID, IsNewDevice: true}
		return s.ensureAccount(tx, in)
	})
	if err != nil {
		return nil, err
	}

	// Audit timestamping happens after commit with server time; losing it
	// must not fail an already-registered device.
	if err := s.store.UpsertActivity(ctx, in.UserID, result.DeviceID, in.IP); err != nil {
		s.logger.Warn("device activity upsert failed",
			zap.String("user_id", in.UserID),
			zap.Error(err))
	}
	return &result, nil
}

// ensureAccount self-heals accounts whose creation partially failed upstream
// and flips presence to online.
func (s *Service) ensureAccount(tx Tx, in RegisterInput) error {
	acc, err := tx.Account()
	if err != nil {
		return err
	}
	if acc == nil {
		return tx.CreateAccount(&models.UserAccount{
			Base:        models.Base{ID: in.UserID},
			Email:       in.Email,
			DisplayName: defaultDisplayName(in.Email),
			Status:      models.StatusOnline,
		})
	}
	return tx.SetStatus(models.StatusOnline)
}

// List returns the user's registered devices, oldest login first.
func (s *Service) List(ctx context.Context, userID string) ([]models.DeviceSession, error) {
	return s.store.ListDevices(ctx, userID)
}

// Revoke removes one device from the user's list.
func (s *Service) Revoke(ctx context.Context, userID, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id", errs.ErrInvalidInput)
	}
	return s.store.DeleteDevice(ctx, userID, deviceID)
}

// newDeviceID returns 128 bits of randomness, hex-encoded.
func newDeviceID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

func defaultDisplayName(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
