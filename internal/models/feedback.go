package models

import "time"

// RecipientRole is which side of a session a feedback request targets
type RecipientRole string

const (
	RecipientStudent RecipientRole = "student"
	RecipientMentor  RecipientRole = "mentor"
)

// RecipientRoles lists roles in dispatch order
var RecipientRoles = []RecipientRole{RecipientStudent, RecipientMentor}

// FeedbackRequestID builds the compound id of the request for (session, role)
func FeedbackRequestID(sessionID string, role RecipientRole) string {
	return sessionID + "_" + string(role)
}

// MeetingStatus is the respondent's answer to "did the meeting happen"
type MeetingStatus string

const (
	MeetingHappened    MeetingStatus = "happened"
	MeetingScheduled   MeetingStatus = "scheduled"
	MeetingNotHappened MeetingStatus = "not_happened"
)

// Valid reports whether m is a known meeting status
func (m MeetingStatus) Valid() bool {
	return m == MeetingHappened || m == MeetingScheduled || m == MeetingNotHappened
}

// FeedbackRequest is the per-(session, role) invitation to leave feedback.
// Exactly one exists per pair; its token never changes once created.
type FeedbackRequest struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"sessionId"`
	RecipientRole  RecipientRole `json:"recipientType"`
	RecipientEmail string        `json:"recipientEmail"`
	RecipientName  string        `json:"recipientName"`
	Token          string        `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	SentAt         *time.Time    `json:"sentAt,omitempty"`
	EmailSent      bool          `json:"emailSent"`
	Submitted      bool          `json:"submitted"`
}

// FeedbackResponse is a submitted answer. Created once, never mutated.
type FeedbackResponse struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"sessionId"`
	RequestID       string        `json:"feedbackRequestId"`
	RespondentRole  RecipientRole `json:"respondentType"`
	RespondentEmail string        `json:"respondentEmail"`
	RespondentName  string        `json:"respondentName"`
	MeetingStatus   MeetingStatus `json:"meetingStatus"`
	Rating          *int          `json:"rating,omitempty"`
	NoMeetingReason *string       `json:"noMeetingReason,omitempty"`
	AdditionalNotes *string       `json:"additionalFeedback,omitempty"`
	SubmittedAt     time.Time     `json:"submittedAt"`
}

// FeedbackPayload is the respondent-supplied part of a submission
type FeedbackPayload struct {
	MeetingStatus   MeetingStatus
	Rating          *int
	NoMeetingReason *string
	AdditionalNotes *string
}

// FeedbackFormContext is what the public form needs to render
type FeedbackFormContext struct {
	SessionID        string        `json:"sessionId"`
	RecipientRole    RecipientRole `json:"recipientType"`
	RecipientName    string        `json:"recipientName"`
	OtherPartyName   string        `json:"otherPartyName"`
	AlreadySubmitted bool          `json:"alreadySubmitted"`
}

// SessionFeedbackSummary is the admin view of one session's feedback
type SessionFeedbackSummary struct {
	SessionID           string            `json:"sessionId"`
	StudentName         string            `json:"studentName"`
	StudentEmail        string            `json:"studentEmail"`
	MentorName          string            `json:"mentorName"`
	MentorEmail         string            `json:"mentorEmail"`
	SessionCreatedAt    time.Time         `json:"sessionCreatedAt"`
	StudentFeedbackSent bool              `json:"studentFeedbackSent"`
	MentorFeedbackSent  bool              `json:"mentorFeedbackSent"`
	StudentFeedback     *FeedbackResponse `json:"studentFeedback,omitempty"`
	MentorFeedback      *FeedbackResponse `json:"mentorFeedback,omitempty"`
}

// SweepResult summarises one run of the scheduled feedback sweep
type SweepResult struct {
	SessionsProcessed int      `json:"sessionsProcessed"`
	EmailsSent        int      `json:"emailsSent"`
	Errors            []string `json:"errors"`
}
