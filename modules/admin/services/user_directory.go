package services

import (
	"context"
	"sort"
	"strings"

	authservices "github.com/iota-uz/saaskit/modules/auth/services"
	"github.com/iota-uz/saaskit/pkg/identity"
)

const (
	SortCreatedAt = "createdAt"
	SortName      = "name"
	SortEmail     = "email"
)

// RecentSessionsLimit caps the sessions shown on a user's detail page.
const RecentSessionsLimit = 30

type UserListParams struct {
	Search        string
	SortBy        string
	SortDirection string
	Page          int
	Limit         int
}

type UserPage struct {
	Users []identity.User
	Total int
}

type UserDetail struct {
	User     *identity.User
	Sessions []identity.Session
}

// UserDirectory is the read side of user administration.
type UserDirectory struct {
	users    *authservices.UserService
	sessions *authservices.SessionService
}

func NewUserDirectory(users *authservices.UserService, sessions *authservices.SessionService) *UserDirectory {
	return &UserDirectory{users: users, sessions: sessions}
}

func (d *UserDirectory) List(ctx context.Context, p UserListParams) (*UserPage, error) {
	users, err := d.users.Search(ctx, p.Search)
	if err != nil {
		return nil, err
	}
	sortUsers(users, p.SortBy, p.SortDirection == "asc")

	total := len(users)
	start, end := pageBounds(p.Page, p.Limit, total)
	return &UserPage{Users: users[start:end], Total: total}, nil
}

// pageBounds returns the slice bounds of page (1-based) within total items.
// Pages past the end yield an empty range.
func pageBounds(page, limit, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return 0, 0
	}
	if page-1 > total/limit {
		return total, total
	}
	start := min((page-1)*limit, total)
	return start, min(start+limit, total)
}

func sortUsers(users []identity.User, by string, asc bool) {
	less := func(a, b identity.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch by {
	case SortName:
		less = func(a, b identity.User) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortEmail:
		less = func(a, b identity.User) bool { return a.Email < b.Email }
	}
	sort.SliceStable(users, func(i, j int) bool {
		if asc {
			return less(users[i], users[j])
		}
		return less(users[j], users[i])
	})
}

func (d *UserDirectory) Detail(ctx context.Context, id string) (*UserDetail, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := d.sessions.ListUserSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) > RecentSessionsLimit {
		sessions = sessions[:RecentSessionsLimit]
	}
	return &UserDetail{User: u, Sessions: sessions}, nil
}
