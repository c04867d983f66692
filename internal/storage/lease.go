package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// leaseRowID is the fixed primary key of the only lease row.
const leaseRowID = 1

// AcquireLease takes or refreshes leadership for ownerID.
//
// It succeeds when no lease row exists yet, when ownerID already holds the
// lease, or when the current lease has expired. The check and the write are a
// single conditional statement, so two callers can never both succeed
// against the same row state.
func (s *Storage) AcquireLease(ctx context.Context, ownerID string, ttl time.Duration, now time.Time) (bool, error) {
	now = now.UTC()
	expires := now.Add(ttl)

	res := s.db.WithContext(ctx).
		Model(&SchedulerLease{}).
		Where("id = ? AND (owner_id = ? OR expires_at <= ?)", leaseRowID, ownerID, now).
		UpdateColumns(map[string]any{"owner_id": ownerID, "expires_at": expires})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update lease: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Either the row is held by someone else or it does not exist yet.
	res = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SchedulerLease{ID: leaseRowID, OwnerID: ownerID, ExpiresAt: expires, CreatedAt: now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to create lease: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RenewLease extends the lease held by ownerID to now+ttl.
// It fails when another owner holds the row or no row exists.
func (s *Storage) RenewLease(ctx context.Context, ownerID string, ttl time.Duration, now time.Time) (bool, error) {
	now = now.UTC()

	res := s.db.WithContext(ctx).
		Model(&SchedulerLease{}).
		Where("id = ? AND owner_id = ?", leaseRowID, ownerID).
		UpdateColumn("expires_at", now.Add(ttl))
	if res.Error != nil {
		return false, fmt.Errorf("failed to renew lease: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CurrentLease returns the lease row, or ErrNotFound before the first acquire.
func (s *Storage) CurrentLease(ctx context.Context) (*SchedulerLease, error) {
	var lease SchedulerLease
	if err := s.db.WithContext(ctx).First(&lease, leaseRowID).Error; err != nil {
		return nil, notFound(err)
	}
	return &lease, nil
}
