// Package memory provides in-process implementations of the repository
// stores. They honour the same conditional-update contracts as the
// PostgreSQL repositories and back offline mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/repository"
)

// Store holds all tables behind a single mutex
type Store struct {
	mu sync.Mutex

	identities  map[string]*models.Identity
	transitions []models.StatusTransition
	tokens      map[string]*models.VerificationToken
	credentials map[string]string
	sessions    map[string]*models.MentoringSession
	requests    map[string]*models.FeedbackRequest
	responses   map[string]*models.FeedbackResponse
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		identities:  make(map[string]*models.Identity),
		tokens:      make(map[string]*models.VerificationToken),
		credentials: make(map[string]string),
		sessions:    make(map[string]*models.MentoringSession),
		requests:    make(map[string]*models.FeedbackRequest),
		responses:   make(map[string]*models.FeedbackResponse),
	}
}

// Identities returns the identity store view
func (s *Store) Identities() *IdentityStore { return &IdentityStore{s} }

// Tokens returns the token store view
func (s *Store) Tokens() *TokenStore { return &TokenStore{s} }

// Credentials returns the credential store view
func (s *Store) Credentials() *CredentialStore { return &CredentialStore{s} }

// Sessions returns the session store view
func (s *Store) Sessions() *SessionStore { return &SessionStore{s} }

// Feedback returns the feedback store view
func (s *Store) Feedback() *FeedbackStore { return &FeedbackStore{s} }

// Transitions returns a copy of the status audit trail
func (s *Store) Transitions() []models.StatusTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatusTransition(nil), s.transitions...)
}

// PasswordHash returns the stored hash for uid
func (s *Store) PasswordHash(uid string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.credentials[uid]
	return h, ok
}

// IdentityStore is the in-memory repository.IdentityStore
type IdentityStore struct{ s *Store }

// Create inserts identity unless its uid exists, in which case the stored copy is returned
func (r *IdentityStore) Create(_ context.Context, identity *models.Identity) (*models.Identity, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.identities[identity.UID]; ok {
		c := *existing
		return &c, false, nil
	}
	for _, other := range r.s.identities {
		if strings.EqualFold(other.Email, identity.Email) {
			return nil, false, repository.ErrDuplicate
		}
	}

	stored := *identity
	stored.UpdatedAt = stored.CreatedAt
	r.s.identities[identity.UID] = &stored
	c := stored
	return &c, true, nil
}

// GetByUID returns the identity with uid
func (r *IdentityStore) GetByUID(_ context.Context, uid string) (*models.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	identity, ok := r.s.identities[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *identity
	return &c, nil
}

// GetByEmail looks an identity up by email, ignoring case
func (r *IdentityStore) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, identity := range r.s.identities {
		if strings.EqualFold(identity.Email, email) {
			c := *identity
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// TransitionStatus applies t only while the stored status still equals from
func (r *IdentityStore) TransitionStatus(_ context.Context, from models.Status, t *models.StatusTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	identity, ok := r.s.identities[t.UID]
	if !ok {
		return repository.ErrNotFound
	}
	if identity.Status != from {
		return repository.ErrStatusMismatch
	}

	identity.Status = t.To
	identity.UpdatedAt = t.At
	r.s.transitions = append(r.s.transitions, *t)
	return nil
}

// ListByStatus returns identities in any of statuses, newest first
func (r *IdentityStore) ListByStatus(_ context.Context, statuses ...models.Status) ([]*models.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	out := make([]*models.Identity, 0)
	for _, identity := range r.s.identities {
		if want[identity.Status] {
			c := *identity
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// TokenStore is the in-memory repository.TokenStore
type TokenStore struct{ s *Store }

func cloneToken(t *models.VerificationToken) *models.VerificationToken {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.UsedAt != nil {
		at := *t.UsedAt
		c.UsedAt = &at
	}
	return &c
}

// Insert stores a new token; token values are unique
func (r *TokenStore) Insert(_ context.Context, token *models.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tokens[token.Token]; exists {
		return repository.ErrDuplicate
	}
	r.s.tokens[token.Token] = cloneToken(token)
	return nil
}

// Get returns the token of purpose with the given value
func (r *TokenStore) Get(_ context.Context, purpose models.TokenPurpose, token string) (*models.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[token]
	if !ok || t.Purpose != purpose {
		return nil, repository.ErrNotFound
	}
	return cloneToken(t), nil
}

// Consume marks an unused, unexpired token as used and returns it
func (r *TokenStore) Consume(_ context.Context, purpose models.TokenPurpose, token string, at time.Time) (*models.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[token]
	if !ok || t.Purpose != purpose || t.Used || t.ExpiredAt(at) {
		return nil, repository.ErrNotConsumed
	}
	t.Used = true
	usedAt := at
	t.UsedAt = &usedAt
	return cloneToken(t), nil
}

// InvalidateForSubject marks every unused token of purpose for uid as used
func (r *TokenStore) InvalidateForSubject(_ context.Context, purpose models.TokenPurpose, uid string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, t := range r.s.tokens {
		if t.SubjectUID == uid && t.Purpose == purpose && !t.Used {
			t.Used = true
			usedAt := at
			t.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

// CredentialStore is the in-memory repository.CredentialStore
type CredentialStore struct{ s *Store }

// SetPasswordHash replaces the password hash of an existing identity
func (r *CredentialStore) SetPasswordHash(_ context.Context, uid, hash string, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.identities[uid]; !ok {
		return repository.ErrNotFound
	}
	r.s.credentials[uid] = hash
	return nil
}

// SessionStore is the in-memory repository.SessionStore
type SessionStore struct{ s *Store }

// Get returns the session with id
func (r *SessionStore) Get(_ context.Context, id string) (*models.MentoringSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *session
	return &c, nil
}

// Upsert records session, keeping feedback flags and creation time of an existing row
func (r *SessionStore) Upsert(_ context.Context, session *models.MentoringSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *session
	if existing, ok := r.s.sessions[session.ID]; ok {
		c.CreatedAt = existing.CreatedAt
		c.StudentFeedbackSubmitted = existing.StudentFeedbackSubmitted
		c.MentorFeedbackSubmitted = existing.MentorFeedbackSubmitted
	}
	r.s.sessions[session.ID] = &c
	return nil
}

// ListCreatedBetween returns sessions with from <= created_at <= to, oldest first
func (r *SessionStore) ListCreatedBetween(_ context.Context, from, to time.Time) ([]*models.MentoringSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.MentoringSession, 0)
	for _, session := range r.s.sessions {
		if !session.CreatedAt.Before(from) && !session.CreatedAt.After(to) {
			c := *session
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FeedbackStore is the in-memory repository.FeedbackStore
type FeedbackStore struct{ s *Store }

func cloneRequest(f *models.FeedbackRequest) *models.FeedbackRequest {
	c := *f
	if f.SentAt != nil {
		at := *f.SentAt
		c.SentAt = &at
	}
	return &c
}

// CreateRequestIfAbsent inserts req unless its id exists, returning the stored request either way
func (r *FeedbackStore) CreateRequestIfAbsent(_ context.Context, req *models.FeedbackRequest) (*models.FeedbackRequest, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.requests[req.ID]; ok {
		return cloneRequest(existing), false, nil
	}
	for _, other := range r.s.requests {
		if other.Token == req.Token {
			return nil, false, repository.ErrDuplicate
		}
	}

	r.s.requests[req.ID] = cloneRequest(req)
	return cloneRequest(req), true, nil
}

// GetRequest returns the request with id
func (r *FeedbackStore) GetRequest(_ context.Context, id string) (*models.FeedbackRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRequest(f), nil
}

// GetRequestByToken returns the request carrying token
func (r *FeedbackStore) GetRequestByToken(_ context.Context, token string) (*models.FeedbackRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.requests {
		if f.Token == token {
			return cloneRequest(f), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListRequestsBySession returns the student and mentor requests of a session
func (r *FeedbackStore) ListRequestsBySession(_ context.Context, sessionID string) ([]*models.FeedbackRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.FeedbackRequest, 0, 2)
	for _, role := range models.RecipientRoles {
		if f, ok := r.s.requests[models.FeedbackRequestID(sessionID, role)]; ok {
			out = append(out, cloneRequest(f))
		}
	}
	return out, nil
}

// MarkRequestSent flags the request email as sent
func (r *FeedbackStore) MarkRequestSent(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.EmailSent = true
	sentAt := at
	f.SentAt = &sentAt
	return nil
}

// SubmitResponse stores resp and flags its request and session, once per request
func (r *FeedbackStore) SubmitResponse(_ context.Context, resp *models.FeedbackResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.requests[resp.RequestID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := r.s.responses[resp.ID]; exists || f.Submitted {
		return repository.ErrAlreadySubmitted
	}

	// All checks pass before any write, so nothing needs undoing
	f.Submitted = true
	c := *resp
	r.s.responses[resp.ID] = &c
	if session, ok := r.s.sessions[resp.SessionID]; ok {
		if resp.RespondentRole == models.RecipientMentor {
			session.MentorFeedbackSubmitted = true
		} else {
			session.StudentFeedbackSubmitted = true
		}
	}
	return nil
}

// ListResponsesBySession returns the responses of a session in submission order
func (r *FeedbackStore) ListResponsesBySession(_ context.Context, sessionID string) ([]*models.FeedbackResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.FeedbackResponse, 0, 2)
	for _, resp := range r.s.responses {
		if resp.SessionID == sessionID {
			c := *resp
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

var (
	_ repository.IdentityStore   = (*IdentityStore)(nil)
	_ repository.TokenStore      = (*TokenStore)(nil)
	_ repository.CredentialStore = (*CredentialStore)(nil)
	_ repository.SessionStore    = (*SessionStore)(nil)
	_ repository.FeedbackStore   = (*FeedbackStore)(nil)
)
