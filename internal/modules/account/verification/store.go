package verification

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
)

// gormStore keeps one record per (purpose, email) in the verification_codes
// table. Consume locks the row FOR UPDATE so the read-decide-write unit is
// linearizable per key; the database, not an in-process lock, is the arbiter
// because it is the only component consistent across replicas.
type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Replace(ctx context.Context, rec *models.VerificationCode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete: a superseded record must not linger as a soft-deleted
		// row under the unique key.
		if err := tx.Unscoped().
			Where("purpose = ? AND email = ?", rec.Purpose, rec.Email).
			Delete(&models.VerificationCode{}).Error; err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", errs.ErrStorageConflict, err)
			}
			return err
		}
		return nil
	})
}

func (s *gormStore) Consume(ctx context.Context, purpose models.VerificationPurpose, email string, decide func(rec *models.VerificationCode) Outcome) (Outcome, error) {
	outcome := OutcomeNotFound
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.VerificationCode
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("purpose = ? AND email = ?", purpose, email).
			First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeNotFound
				return nil
			}
			return err
		}

		outcome = decide(&rec)
		switch outcome {
		case OutcomeValid, OutcomeExpired, OutcomeAttemptsExceeded:
			return tx.Unscoped().Delete(&rec).Error
		case OutcomeInvalid:
			return tx.Model(&rec).Update("attempts", gorm.Expr("attempts + 1")).Error
		}
		return nil
	})
	if err != nil {
		return OutcomeNotFound, err
	}
	return outcome, nil
}
