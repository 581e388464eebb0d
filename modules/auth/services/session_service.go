package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/identity"
)

type CookieOptions struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// SessionService is the session store behind the identity resolver and the
// organization activation flow.
type SessionService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	orgs     domain.OrganizationRepository
	members  domain.MemberRepository
	cookie   CookieOptions
	duration time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

type SessionServiceOption func(*SessionService)

func WithClock(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.now = now
	}
}

func WithSessionLogger(l logrus.FieldLogger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = l
	}
}

func NewSessionService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	orgs domain.OrganizationRepository,
	members domain.MemberRepository,
	cookie CookieOptions,
	duration time.Duration,
	opts ...SessionServiceOption,
) *SessionService {
	s := &SessionService{
		users:    users,
		sessions: sessions,
		orgs:     orgs,
		members:  members,
		cookie:   cookie,
		duration: duration,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token extracts the session token from the request cookies.
func (s *SessionService) Token(headers http.Header) string {
	c, err := (&http.Request{Header: headers}).Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// GetSession returns (nil, nil) for a missing, expired or revoked session, and
// for users whose ban is in force.
func (s *SessionService) GetSession(ctx context.Context, headers http.Header) (*identity.AuthSession, error) {
	token := s.Token(headers)
	if token == "" {
		return nil, nil
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sess.Expired(now) {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			s.logger.WithError(err).Warn("failed to delete expired session")
		}
		return nil, nil
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.IsBanned(now) {
		return nil, nil
	}
	return &identity.AuthSession{User: *u, Session: *sess}, nil
}

func (s *SessionService) FindMember(ctx context.Context, organizationID, userID string) (*identity.Membership, error) {
	return s.members.Find(ctx, organizationID, userID)
}

func (s *SessionService) ListOrganizations(ctx context.Context, headers http.Header) ([]identity.Organization, error) {
	auth, err := s.GetSession(ctx, headers)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, identity.ErrUnauthenticated
	}
	return s.orgs.ListForUser(ctx, auth.User.ID)
}

// SetActiveOrganization switches the session to organizationID, which the user
// must be a member of. An empty id clears the active organization.
func (s *SessionService) SetActiveOrganization(ctx context.Context, headers http.Header, organizationID string) error {
	auth, err := s.GetSession(ctx, headers)
	if err != nil {
		return err
	}
	if auth == nil {
		return identity.ErrUnauthenticated
	}
	return s.Activate(ctx, auth.Session.ID, auth.User.ID, organizationID)
}

// Activate is SetActiveOrganization for a session that is already resolved.
func (s *SessionService) Activate(ctx context.Context, sessionID, userID, organizationID string) error {
	if organizationID != "" {
		if _, err := s.members.Find(ctx, organizationID, userID); err != nil {
			if errors.Is(err, identity.ErrMemberNotFound) {
				return identity.ErrNotAMember
			}
			return err
		}
	}
	return s.sessions.SetActiveOrganization(ctx, sessionID, organizationID)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create opens a session for userID and returns the cookie carrying it.
func (s *SessionService) Create(ctx context.Context, userID string) (*identity.Session, *http.Cookie, error) {
	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	sess := &identity.Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ip, ok := composables.UseIP(ctx); ok {
		sess.IPAddress = ip
	}
	if ua, ok := composables.UseUserAgent(ctx); ok {
		sess.UserAgent = ua
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, s.Cookie(sess.Token, sess.ExpiresAt), nil
}

func (s *SessionService) Cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		Domain:   s.cookie.Domain,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	}
}

// ClearCookie expires the session cookie in the browser.
func (s *SessionService) ClearCookie() *http.Cookie {
	c := s.Cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

// SignOut deletes the session named by the request cookie, if any.
func (s *SessionService) SignOut(ctx context.Context, headers http.Header) error {
	token := s.Token(headers)
	if token == "" {
		return nil
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sess.ID)
}

func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]identity.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// RevokeSession deletes sessionID, which must belong to userID.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return domain.ErrSessionNotFound
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.DeleteByUser(ctx, userID)
}
