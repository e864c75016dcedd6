package models

import "time"

// Role is the product role an identity registered with
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleMentor    Role = "mentor"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleApplicant || r == RoleMentor
}

// Channel is how the identity authenticated at sign-up
type Channel string

const (
	ChannelPassword  Channel = "password"
	ChannelFederated Channel = "federated"
	ChannelLink      Channel = "link"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	return c == ChannelPassword || c == ChannelFederated || c == ChannelLink
}

// Status is the lifecycle state of an identity
type Status string

const (
	StatusActive              Status = "active"
	StatusPendingApproval     Status = "pending_approval"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusSuspended           Status = "suspended"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPendingApproval, StatusPendingConfirmation, StatusSuspended:
		return true
	}
	return false
}

// IsPending reports whether the identity is waiting on an admin or on email confirmation
func (s Status) IsPending() bool {
	return s == StatusPendingApproval || s == StatusPendingConfirmation
}

// LifecycleEvent names a status transition trigger
type LifecycleEvent string

const (
	EventApprove            LifecycleEvent = "approve"
	EventReject             LifecycleEvent = "reject"
	EventConfirm            LifecycleEvent = "confirm"
	EventResendConfirmation LifecycleEvent = "resend_confirmation"
)

// Identity is an account known to the platform. UID comes from the identity
// provider and never changes; identities are never hard-deleted.
type Identity struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Channel     Channel   `json:"channel"`
	Status      Status    `json:"status"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusTransition is an audit record for a status change
type StatusTransition struct {
	ID    string         `json:"id"`
	UID   string         `json:"uid"`
	From  Status         `json:"from"`
	To    Status         `json:"to"`
	Event LifecycleEvent `json:"event"`
	Actor string         `json:"actor"`
	At    time.Time      `json:"at"`
}
