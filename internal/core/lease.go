package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// LeaseStore persists the single scheduler lease.
type LeaseStore interface {
	AcquireLease(ctx context.Context, ownerID string, ttl time.Duration, now time.Time) (bool, error)
	RenewLease(ctx context.Context, ownerID string, ttl time.Duration, now time.Time) (bool, error)
}

// LeaseManager tracks this instance's hold on the scheduler lease.
type LeaseManager struct {
	store   LeaseStore
	ownerID string
	ttl     time.Duration
	leader  atomic.Bool
}

// NewLeaseManager creates a lease manager for ownerID.
func NewLeaseManager(store LeaseStore, ownerID string, ttl time.Duration) *LeaseManager {
	return &LeaseManager{store: store, ownerID: ownerID, ttl: ttl}
}

// OwnerID returns the identity written into the lease row.
func (l *LeaseManager) OwnerID() string {
	return l.ownerID
}

// IsLeader reports the result of the last acquire or renew.
func (l *LeaseManager) IsLeader() bool {
	return l.leader.Load()
}

// Acquire takes or refreshes the lease. A store error counts as not held.
func (l *LeaseManager) Acquire(ctx context.Context, now time.Time) (bool, error) {
	ok, err := l.store.AcquireLease(ctx, l.ownerID, l.ttl, now)
	if err != nil {
		l.setLeader(false)
		return false, err
	}
	l.setLeader(ok)
	return ok, nil
}

// Renew extends a lease this instance already holds.
func (l *LeaseManager) Renew(ctx context.Context, now time.Time) (bool, error) {
	ok, err := l.store.RenewLease(ctx, l.ownerID, l.ttl, now)
	if err != nil {
		l.setLeader(false)
		return false, err
	}
	l.setLeader(ok)
	return ok, nil
}

func (l *LeaseManager) setLeader(held bool) {
	if l.leader.Swap(held) == held {
		return
	}
	if held {
		log.Info().Str("instance_id", l.ownerID).Msg("Acquired scheduler lease")
	} else {
		log.Warn().Str("instance_id", l.ownerID).Msg("Lost scheduler lease")
	}
}
