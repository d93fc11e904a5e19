package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identity is the UID read from a tag or typed in manually.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// IsZero reports whether no identity is known.
func (i Identity) IsZero() bool {
	return i == ""
}

// ScanSession binds one identity to one checkout attempt. The backend decides whether it
// is still chargeable; ExpiresAt only mirrors its timeout locally.
type ScanSession struct {
	ID        string
	Identity  Identity
	OpenedAt  time.Time
	ExpiresAt time.Time
}

// Expired checks the local expiry only.
func (s ScanSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the local time left, never negative.
func (s ScanSession) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// BalanceView is the last balance fetched from the backend for an identity.
type BalanceView struct {
	Identity  Identity
	Amount    decimal.Decimal
	LastError bool
	FetchedAt time.Time
}
