package main

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	orgservices "github.com/iota-uz/saaskit/modules/organization/services"
	"github.com/iota-uz/saaskit/pkg/identity"
)

type userFixture struct {
	ID           string `yaml:"id" db:"id"`
	Name         string `yaml:"name" db:"name"`
	Email        string `yaml:"email" db:"email"`
	Password     string `yaml:"password" db:"-"`
	Role         string `yaml:"role" db:"role"`
	PasswordHash string `yaml:"-" db:"password_hash"`
}

type organizationFixture struct {
	ID   string `yaml:"id" db:"id"`
	Name string `yaml:"name" db:"name"`
	Slug string `yaml:"slug" db:"slug"`
}

type memberFixture struct {
	ID             string `yaml:"-" db:"id"`
	OrganizationID string `yaml:"organization" db:"organization_id"`
	UserID         string `yaml:"user" db:"user_id"`
	Role           string `yaml:"role" db:"role"`
}

type productFixture struct {
	ID          string `yaml:"id" db:"id"`
	Name        string `yaml:"name" db:"name"`
	Description string `yaml:"description" db:"description"`
	UserID      string `yaml:"user" db:"user_id"`
}

type Fixtures struct {
	Users         []userFixture         `yaml:"users"`
	Organizations []organizationFixture `yaml:"organizations"`
	Members       []memberFixture       `yaml:"members"`
	Products      []productFixture      `yaml:"products"`
}

func LoadFixtures(r io.Reader) (*Fixtures, error) {
	f := &Fixtures{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	return f, f.normalize()
}

// normalize fills defaults and checks references between fixtures.
func (f *Fixtures) normalize() error {
	users := map[string]bool{}
	for i := range f.Users {
		u := &f.Users[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Email == "" {
			return errors.Errorf("users[%d]: email is required", i)
		}
		if u.Name == "" {
			u.Name = u.Email
		}
		if u.Role == "" {
			u.Role = identity.RoleUser
		}
		for _, r := range identity.SplitRoles(u.Role) {
			if r != identity.RoleUser && r != identity.RoleAdmin {
				return errors.Errorf("users[%d]: unknown role %q", i, r)
			}
		}
		users[u.ID] = true
	}

	orgs := map[string]bool{}
	for i := range f.Organizations {
		o := &f.Organizations[i]
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if strings.TrimSpace(o.Name) == "" {
			return errors.Errorf("organizations[%d]: name is required", i)
		}
		if o.Slug == "" {
			o.Slug = orgservices.Slugify(o.Name)
		}
		orgs[o.ID] = true
	}

	for i := range f.Members {
		m := &f.Members[i]
		m.ID = uuid.NewString()
		if !orgs[m.OrganizationID] {
			return errors.Errorf("members[%d]: unknown organization %q", i, m.OrganizationID)
		}
		if !users[m.UserID] {
			return errors.Errorf("members[%d]: unknown user %q", i, m.UserID)
		}
		if m.Role == "" {
			m.Role = identity.OrgRoleMember
		}
		if !orgservices.ValidMemberRole(m.Role) {
			return errors.Errorf("members[%d]: unknown role %q", i, m.Role)
		}
	}

	for i := range f.Products {
		p := &f.Products[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if !users[p.UserID] {
			return errors.Errorf("products[%d]: unknown user %q", i, p.UserID)
		}
	}
	return nil
}

// hashPasswords replaces plain fixture passwords with bcrypt hashes. Users
// without a password can only sign in through OAuth.
func (f *Fixtures) hashPasswords(cost int) error {
	for i := range f.Users {
		u := &f.Users[i]
		if u.Password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return errors.Wrapf(err, "hash password of %s", u.Email)
		}
		u.PasswordHash = string(hash)
	}
	return nil
}

type SeedResult struct {
	Users, Organizations, Members, Products int64
}

const (
	insertUser = `INSERT INTO users (id, name, email, role, password_hash)
		VALUES (:id, :name, :email, :role, :password_hash) ON CONFLICT DO NOTHING`
	insertOrganization = `INSERT INTO organizations (id, name, slug)
		VALUES (:id, :name, :slug) ON CONFLICT DO NOTHING`
	insertMember = `INSERT INTO members (id, organization_id, user_id, role)
		VALUES (:id, :organization_id, :user_id, :role) ON CONFLICT DO NOTHING`
	insertProduct = `INSERT INTO products (id, name, description, user_id)
		VALUES (:id, :name, :description, :user_id) ON CONFLICT DO NOTHING`
)

// Apply inserts the fixtures in one transaction. Rows that already exist are
// left untouched, so seeding twice is harmless.
func (f *Fixtures) Apply(ctx context.Context, db *sqlx.DB) (SeedResult, error) {
	var res SeedResult
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, "begin seed transaction")
	}
	defer func() { _ = tx.Rollback() }()

	insert := func(query string, rows []any) (int64, error) {
		var n int64
		for _, row := range rows {
			r, err := tx.NamedExecContext(ctx, query, row)
			if err != nil {
				return n, err
			}
			affected, _ := r.RowsAffected()
			n += affected
		}
		return n, nil
	}

	if res.Users, err = insert(insertUser, rowsOf(f.Users)); err != nil {
		return res, errors.Wrap(err, "seed users")
	}
	if res.Organizations, err = insert(insertOrganization, rowsOf(f.Organizations)); err != nil {
		return res, errors.Wrap(err, "seed organizations")
	}
	if res.Members, err = insert(insertMember, rowsOf(f.Members)); err != nil {
		return res, errors.Wrap(err, "seed members")
	}
	if res.Products, err = insert(insertProduct, rowsOf(f.Products)); err != nil {
		return res, errors.Wrap(err, "seed products")
	}
	return res, errors.Wrap(tx.Commit(), "commit seed transaction")
}

func rowsOf[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}
