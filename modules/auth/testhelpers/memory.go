// Package testhelpers provides an in-memory auth data plane for service and
// controller tests.
package testhelpers

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/identity"
)

// InTx runs fn without a transaction.
func InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Store keeps every auth record in maps guarded by one mutex.
type Store struct {
	mu            sync.Mutex
	users         map[string]identity.User
	passwords     map[string]string
	sessions      map[string]identity.Session
	accounts      []domain.Account
	verifications map[string]domain.Verification
	orgs          map[string]identity.Organization
	members       map[string]identity.Membership
	invitations   map[string]domain.Invitation
}

func NewStore() *Store {
	return &Store{
		users:         map[string]identity.User{},
		passwords:     map[string]string{},
		sessions:      map[string]identity.Session{},
		verifications: map[string]domain.Verification{},
		orgs:          map[string]identity.Organization{},
		members:       map[string]identity.Membership{},
		invitations:   map[string]domain.Invitation{},
	}
}

func (s *Store) UserRepository() domain.UserRepository                 { return userRepo{s} }
func (s *Store) SessionRepository() domain.SessionRepository           { return sessionRepo{s} }
func (s *Store) AccountRepository() domain.AccountRepository           { return accountRepo{s} }
func (s *Store) VerificationRepository() domain.VerificationRepository { return verificationRepo{s} }
func (s *Store) OrganizationRepository() domain.OrganizationRepository { return orgRepo{s} }
func (s *Store) MemberRepository() domain.MemberRepository             { return memberRepo{s} }
func (s *Store) InvitationRepository() domain.InvitationRepository     { return invitationRepo{s} }

func (s *Store) AddUser(u identity.User, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.passwords[u.ID] = passwordHash
}

func (s *Store) AddSession(sess identity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Store) AddOrganization(o identity.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *Store) AddMember(m identity.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *Store) AddInvitation(inv domain.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[inv.ID] = inv
}

func (s *Store) Session(id string) (identity.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Invitation(id string) (domain.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	return inv, ok
}

func (s *Store) Verifications() []domain.Verification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Verification, 0, len(s.verifications))
	for _, v := range s.verifications {
		out = append(out, v)
	}
	return out
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r userRepo) List(_ context.Context) ([]identity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]identity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r userRepo) PasswordHash(_ context.Context, id string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return "", domain.ErrUserNotFound
	}
	return r.s.passwords[id], nil
}

func (r userRepo) Create(_ context.Context, u *identity.User, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[u.ID] = *u
	r.s.passwords[u.ID] = passwordHash
	return nil
}

func (r userRepo) Update(_ context.Context, u *identity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) SetPassword(_ context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	r.s.passwords[id] = passwordHash
	return nil
}

// Delete cascades to sessions and memberships like the foreign keys do.
func (r userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, id)
	delete(r.s.passwords, id)
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, sid)
		}
	}
	for mid, m := range r.s.members {
		if m.UserID == id {
			delete(r.s.members, mid)
		}
	}
	return nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, sess *identity.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r sessionRepo) GetByID(_ context.Context, id string) (*identity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (r sessionRepo) GetByToken(_ context.Context, token string) (*identity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.Token == token {
			return &sess, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r sessionRepo) ListByUser(_ context.Context, userID string) ([]identity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []identity.Session
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r sessionRepo) SetActiveOrganization(_ context.Context, id, organizationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.ActiveOrganizationID = organizationID
	r.s.sessions[id] = sess
	return nil
}

func (r sessionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r sessionRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) Find(_ context.Context, providerID, accountID string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r accountRepo) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts = append(r.s.accounts, *a)
	return nil
}

type verificationRepo struct{ s *Store }

func (r verificationRepo) Create(_ context.Context, v *domain.Verification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.verifications[v.Value] = *v
	return nil
}

func (r verificationRepo) Consume(_ context.Context, value string) (*domain.Verification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.verifications[value]
	if !ok {
		return nil, domain.ErrVerificationNotFound
	}
	delete(r.s.verifications, value)
	return &v, nil
}

type orgRepo struct{ s *Store }

func (r orgRepo) Create(_ context.Context, o *identity.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orgs[o.ID] = *o
	return nil
}

func (r orgRepo) GetByID(_ context.Context, id string) (*identity.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	return &o, nil
}

func (r orgRepo) SlugTaken(_ context.Context, slug string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if o.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r orgRepo) ListForUser(_ context.Context, userID string) ([]identity.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []identity.Organization
	for _, m := range r.s.members {
		if m.UserID == userID {
			if o, ok := r.s.orgs[m.OrganizationID]; ok {
				out = append(out, o)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r orgRepo) Update(_ context.Context, o *identity.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[o.ID]; !ok {
		return domain.ErrOrganizationNotFound
	}
	r.s.orgs[o.ID] = *o
	return nil
}

// Delete cascades to memberships and invitations and clears the organization
// from sessions that had it active.
func (r orgRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[id]; !ok {
		return domain.ErrOrganizationNotFound
	}
	delete(r.s.orgs, id)
	for mid, m := range r.s.members {
		if m.OrganizationID == id {
			delete(r.s.members, mid)
		}
	}
	for iid, inv := range r.s.invitations {
		if inv.OrganizationID == id {
			delete(r.s.invitations, iid)
		}
	}
	for sid, sess := range r.s.sessions {
		if sess.ActiveOrganizationID == id {
			sess.ActiveOrganizationID = ""
			r.s.sessions[sid] = sess
		}
	}
	return nil
}

type memberRepo struct{ s *Store }

func (r memberRepo) Create(_ context.Context, m *identity.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.members[m.ID] = *m
	return nil
}

func (r memberRepo) Find(_ context.Context, organizationID, userID string) (*identity.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.OrganizationID == organizationID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, identity.ErrMemberNotFound
}

func (r memberRepo) GetByID(_ context.Context, id string) (*identity.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return nil, identity.ErrMemberNotFound
	}
	return &m, nil
}

func (r memberRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.MemberView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.MemberView
	for _, m := range r.s.members {
		if m.OrganizationID != organizationID {
			continue
		}
		u := r.s.users[m.UserID]
		out = append(out, domain.MemberView{Membership: m, Name: u.Name, Email: u.Email, Image: u.Image})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memberRepo) UpdateRole(_ context.Context, id, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return identity.ErrMemberNotFound
	}
	m.Role = role
	r.s.members[id] = m
	return nil
}

func (r memberRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[id]; !ok {
		return identity.ErrMemberNotFound
	}
	delete(r.s.members, id)
	return nil
}

type invitationRepo struct{ s *Store }

func (r invitationRepo) Create(_ context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invitations[inv.ID] = *inv
	return nil
}

func (r invitationRepo) GetByID(_ context.Context, id string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return &inv, nil
}

func (r invitationRepo) ListPending(_ context.Context, organizationID string) ([]domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range r.s.invitations {
		if inv.OrganizationID == organizationID && inv.Status == domain.InvitationPending {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r invitationRepo) SetStatus(_ context.Context, id string, status domain.InvitationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return domain.ErrInvitationNotFound
	}
	inv.Status = status
	r.s.invitations[id] = inv
	return nil
}
