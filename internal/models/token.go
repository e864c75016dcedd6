package models

import "time"

// TokenPurpose separates the token ledgers
type TokenPurpose string

const (
	PurposeVerification TokenPurpose = "verification"
	PurposeReset        TokenPurpose = "reset"
)

// VerificationToken is a single-use secret bound to one subject.
// Used only ever goes from false to true.
type VerificationToken struct {
	Token        string
	Purpose      TokenPurpose
	SubjectUID   string
	SubjectEmail string
	Metadata     map[string]string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Used         bool
	UsedAt       *time.Time
}

// ExpiredAt reports whether the token is expired at t.
// A token is still valid at exactly ExpiresAt.
func (t *VerificationToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
