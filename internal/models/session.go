package models

import "time"

// MentoringSession is owned by the booking subsystem. Feedback collection
// only reads it and mirrors the per-role submitted flags.
type MentoringSession struct {
	ID                       string
	StudentUID               string
	StudentEmail             string
	StudentName              string
	MentorUID                string
	MentorEmail              string
	MentorName               string
	CreatedAt                time.Time
	StudentFeedbackSubmitted bool
	MentorFeedbackSubmitted  bool
}

// Recipient returns the email and name of the party with the given role
func (s *MentoringSession) Recipient(role RecipientRole) (email, name string) {
	if role == RecipientMentor {
		return s.MentorEmail, s.MentorName
	}
	return s.StudentEmail, s.StudentName
}

// OtherPartyName returns the name of the counterpart of role
func (s *MentoringSession) OtherPartyName(role RecipientRole) string {
	if role == RecipientMentor {
		return s.StudentName
	}
	return s.MentorName
}

// FeedbackSubmitted reports the mirrored flag for role
func (s *MentoringSession) FeedbackSubmitted(role RecipientRole) bool {
	if role == RecipientMentor {
		return s.MentorFeedbackSubmitted
	}
	return s.StudentFeedbackSubmitted
}
