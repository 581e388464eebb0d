package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	ErrSelfAction  = serrors.NewError(serrors.CodeValidationFailed, "You cannot perform this action on your own account", "Users.Errors.SelfAction")
	ErrInvalidRole = serrors.NewError(serrors.CodeValidationFailed, "Invalid role", "Users.Errors.InvalidRole")
)

// GlobalRoles are the roles a user can hold outside any organization.
var GlobalRoles = []string{identity.RoleUser, identity.RoleAdmin}

type UserService struct {
	users    domain.UserRepository
	sessions *SessionService
	inTx     func(ctx context.Context, fn func(context.Context) error) error
}

type UserServiceOption func(*UserService)

// WithUserTx replaces composables.InTx as the transaction runner.
func WithUserTx(inTx func(ctx context.Context, fn func(context.Context) error) error) UserServiceOption {
	return func(s *UserService) {
		s.inTx = inTx
	}
}

func NewUserService(users domain.UserRepository, sessions *SessionService, opts ...UserServiceOption) *UserService {
	s := &UserService{users: users, sessions: sessions, inTx: composables.InTx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return s.users.GetByID(ctx, id)
}

// Search lists users whose name or e-mail fuzzily matches query. An empty query
// lists everyone.
func (s *UserService) Search(ctx context.Context, query string) ([]identity.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return users, nil
	}
	out := users[:0]
	for _, u := range users {
		if fuzzy.MatchNormalizedFold(query, u.Name) || fuzzy.MatchNormalizedFold(query, u.Email) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UserService) UpdateName(ctx context.Context, id, name string) (*identity.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(name)
	u.UpdatedAt = s.sessions.now()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type BanDTO struct {
	Reason    string
	ExpiresAt *time.Time
}

// Ban blocks userID and ends all of their sessions. Admins cannot ban themselves.
func (s *UserService) Ban(ctx context.Context, actorID, userID string, dto BanDTO) error {
	if actorID == userID {
		return ErrSelfAction
	}
	return s.inTx(ctx, func(txCtx context.Context) error {
		u, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		u.Banned = true
		u.BanReason = strings.TrimSpace(dto.Reason)
		u.BanExpires = dto.ExpiresAt
		u.UpdatedAt = s.sessions.now()
		if err := s.users.Update(txCtx, u); err != nil {
			return err
		}
		_, err = s.sessions.RevokeUserSessions(txCtx, userID)
		return err
	})
}

func (s *UserService) Unban(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Banned, u.BanReason, u.BanExpires = false, "", nil
	u.UpdatedAt = s.sessions.now()
	return s.users.Update(ctx, u)
}

// SetRoles replaces the global roles of userID. Duplicates are dropped and the
// stored list is sorted.
func (s *UserService) SetRoles(ctx context.Context, actorID, userID string, roles []string) error {
	if len(roles) == 0 {
		return ErrInvalidRole
	}
	seen := map[string]bool{}
	var clean []string
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if !isGlobalRole(r) {
			return ErrInvalidRole
		}
		if !seen[r] {
			seen[r] = true
			clean = append(clean, r)
		}
	}
	if actorID == userID && !seen[identity.RoleAdmin] {
		return ErrSelfAction
	}
	sort.Strings(clean)

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Role = identity.JoinRoles(clean)
	u.UpdatedAt = s.sessions.now()
	return s.users.Update(ctx, u)
}

func isGlobalRole(r string) bool {
	for _, g := range GlobalRoles {
		if g == r {
			return true
		}
	}
	return false
}

// Delete removes the user; sessions, memberships and products go with it.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return s.users.Delete(ctx, userID)
}
