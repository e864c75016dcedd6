package models

import "time"

// RegisterIdentityRequest is sent by the frontend right after the identity
// provider created the account. UID, email and channel come from the bearer
// token; a channel field in the body is ignored.
type RegisterIdentityRequest struct {
	Role        Role   `json:"role" binding:"required,oneof=applicant mentor"`
	DisplayName string `json:"displayName" binding:"max=200"`
}

// RegisterIdentityResponse reports the status assigned at registration
type RegisterIdentityResponse struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
}

// VerifyEmailTokenRequest redeems an email verification link
type VerifyEmailTokenRequest struct {
	Token string `json:"token" binding:"required,max=256"`
}

// VerifyEmailTokenResponse is returned after a successful confirmation
type VerifyEmailTokenResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// PasswordResetRequest asks for a reset link
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email,max=320"`
}

// CompletePasswordResetRequest sets a new password with a reset token
type CompletePasswordResetRequest struct {
	Token    string `json:"token" binding:"required,max=256"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// MessageResponse is a generic success envelope
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ApprovalResponse is returned by admin approve and reject
type ApprovalResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UID       string `json:"uid"`
	NewStatus Status `json:"newStatus"`
}

// ResendVerificationResponse is returned by the admin resend
type ResendVerificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

// PendingUsersResponse lists identities awaiting approval or confirmation
type PendingUsersResponse struct {
	Users []*Identity `json:"users"`
	Total int         `json:"total"`
}

// SubmitFeedbackRequest is the public feedback form submission
type SubmitFeedbackRequest struct {
	Token              string        `json:"token" binding:"required,max=256"`
	MeetingStatus      MeetingStatus `json:"meetingStatus" binding:"required,oneof=happened scheduled not_happened"`
	Rating             *int          `json:"rating" binding:"omitempty,min=1,max=5"`
	NoMeetingReason    *string       `json:"noMeetingReason" binding:"omitempty,max=2000"`
	AdditionalFeedback *string       `json:"additionalFeedback" binding:"omitempty,max=5000"`
}

// Payload returns the respondent-supplied fields
func (r *SubmitFeedbackRequest) Payload() FeedbackPayload {
	return FeedbackPayload{
		MeetingStatus:   r.MeetingStatus,
		Rating:          r.Rating,
		NoMeetingReason: r.NoMeetingReason,
		AdditionalNotes: r.AdditionalFeedback,
	}
}

// SendFeedbackRequest asks for immediate dispatch for one session
type SendFeedbackRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=128"`
}

// SendFeedbackResponse reports per-role delivery
type SendFeedbackResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	StudentEmailSent bool   `json:"studentEmailSent"`
	MentorEmailSent  bool   `json:"mentorEmailSent"`
}

// ProcessPendingResponse is returned by the scheduled sweep trigger
type ProcessPendingResponse struct {
	Success           bool     `json:"success"`
	SessionsProcessed int      `json:"sessionsProcessed"`
	EmailsSent        int      `json:"emailsSent"`
	Errors            []string `json:"errors"`
}

// EnsureSessionRequest is posted by the booking subsystem when a session is
// booked. The session id comes from the path.
type EnsureSessionRequest struct {
	StudentUID   string     `json:"studentUid" binding:"max=128"`
	StudentEmail string     `json:"studentEmail" binding:"required,email,max=320"`
	StudentName  string     `json:"studentName" binding:"max=200"`
	MentorUID    string     `json:"mentorUid" binding:"max=128"`
	MentorEmail  string     `json:"mentorEmail" binding:"required,email,max=320"`
	MentorName   string     `json:"mentorName" binding:"max=200"`
	CreatedAt    *time.Time `json:"createdAt"`
}

// Session builds the session record for id
func (r *EnsureSessionRequest) Session(id string) *MentoringSession {
	session := &MentoringSession{
		ID:           id,
		StudentUID:   r.StudentUID,
		StudentEmail: r.StudentEmail,
		StudentName:  r.StudentName,
		MentorUID:    r.MentorUID,
		MentorEmail:  r.MentorEmail,
		MentorName:   r.MentorName,
	}
	if r.CreatedAt != nil {
		session.CreatedAt = r.CreatedAt.UTC()
	}
	return session
}

// EnsureSessionResponse confirms the feedback requests exist
type EnsureSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}
