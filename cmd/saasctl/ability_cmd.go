package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/authz"
	"github.com/iota-uz/saaskit/pkg/configuration"
	"github.com/iota-uz/saaskit/pkg/identity"
)

func newAbilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ability",
		Short: "Inspect compiled permissions",
	}

	var userID, orgID string
	explain := &cobra.Command{
		Use:   "explain",
		Short: "Print the rule set of a user and a matrix of checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ident, err := loadIdentity(cmd.Context(), db, userID, orgID)
			if err != nil {
				return err
			}
			policy := authz.Use()
			builder := ability.NewBuilder(policy, ability.WithLogger(configuration.Use().Logger()))
			return Explain(cmd.OutOrStdout(), builder, policy, ident)
		},
	}
	explain.Flags().StringVar(&userID, "user", "", "user id")
	explain.Flags().StringVar(&orgID, "org", "", "active organization id; empty for none")
	_ = explain.MarkFlagRequired("user")

	cmd.AddCommand(explain)
	return cmd
}

type userRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Role  string `db:"role"`
}

type memberRow struct {
	ID   string `db:"id"`
	Role string `db:"role"`
}

func loadIdentity(ctx context.Context, db *sqlx.DB, userID, orgID string) (*identity.Identity, error) {
	var u userRow
	if err := db.GetContext(ctx, &u, `SELECT id, name, email, role FROM users WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Errorf("user %s not found", userID)
		}
		return nil, errors.Wrap(err, "load user")
	}
	auth := identity.AuthSession{
		User:    identity.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
		Session: identity.Session{UserID: u.ID, ActiveOrganizationID: orgID},
	}
	if orgID == "" {
		return identity.New(auth, identity.Membership{}), nil
	}

	var m memberRow
	err := db.GetContext(ctx, &m, `SELECT id, role FROM members WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("user %s is not a member of organization %s", userID, orgID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load membership")
	}
	return identity.New(auth, identity.Membership{ID: m.ID, OrganizationID: orgID, UserID: userID, Role: m.Role}), nil
}

type matrixRow struct {
	label   string
	subject ability.Subject
}

var matrixActions = []ability.Action{ability.Read, ability.Create, ability.Update, ability.Delete, ability.Manage}

func matrixRows(ident *identity.Identity) []matrixRow {
	const elsewhere = "00000000-0000-0000-0000-000000000000"
	orgID := ident.Organization.ID
	rows := make([]matrixRow, 0, len(ability.SubjectTypes)+6)
	for _, t := range ability.SubjectTypes {
		rows = append(rows, matrixRow{label: string(t), subject: t})
	}
	rows = append(rows,
		matrixRow{label: "own product", subject: ability.Product{ID: "p", UserID: ident.User.ID}},
		matrixRow{label: "foreign product", subject: ability.Product{ID: "p", UserID: elsewhere}},
		matrixRow{label: "own user", subject: ability.User{ID: ident.User.ID}},
		matrixRow{label: "foreign organization", subject: ability.Organization{ID: elsewhere}},
	)
	if orgID != "" {
		rows = append(rows,
			matrixRow{label: "active organization", subject: ability.Organization{ID: orgID}},
			matrixRow{label: "active members", subject: ability.Member{OrganizationID: orgID}},
		)
	}
	return rows
}

// PolicyInspector is the part of *authz.Service that explains role grants.
type PolicyInspector interface {
	Permissions(subject string) ([]authz.Permission, error)
	Inspect(subject, object, action string) (authz.Inspection, error)
}

func roleSubjects(ident *identity.Identity) []string {
	var out []string
	if ident.Organization.ID != "" {
		out = append(out, authz.SubjectForOrgRole(ident.Organization.Role))
	}
	for _, role := range identity.SplitRoles(ident.User.Role) {
		out = append(out, authz.SubjectForUserRole(role))
	}
	return out
}

// writeGrants lists the policy grants behind the role rules, each with the
// policy line that produced it.
func writeGrants(w io.Writer, policy PolicyInspector, ident *identity.Identity) error {
	fmt.Fprintln(w, "\npolicy grants:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	n := 0
	for _, sub := range roleSubjects(ident) {
		perms, err := policy.Permissions(sub)
		if err != nil {
			return errors.Wrapf(err, "grants of %s", sub)
		}
		for _, p := range perms {
			res, err := policy.Inspect(sub, p.Object, p.Action)
			if err != nil {
				return errors.Wrapf(err, "inspect %s %s %s", sub, p.Action, p.Object)
			}
			fmt.Fprintf(tw, "  %s\t%s %s\tvia p, %s\n", sub, p.Action, p.Object, strings.Join(res.Matched, ", "))
			n++
		}
	}
	if n == 0 {
		fmt.Fprintln(tw, "  (none)")
	}
	return tw.Flush()
}

// Explain writes the compiled rules of ident, in evaluation order, the policy
// grants they came from and a matrix of allow/deny answers.
func Explain(w io.Writer, builder *ability.Builder, policy PolicyInspector, ident *identity.Identity) error {
	rules := builder.Build(ident)

	fmt.Fprintf(w, "user %s (role %q)", ident.User.ID, ident.User.Role)
	if ident.Organization.ID != "" {
		fmt.Fprintf(w, " in organization %s (role %q)", ident.Organization.ID, ident.Organization.Role)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "\nrules (last match wins):")
	for i, r := range rules.Rules() {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, r)
	}
	if err := writeGrants(w, policy, ident); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nchecks:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "  SUBJECT")
	for _, a := range matrixActions {
		fmt.Fprintf(tw, "\t%s", a)
	}
	fmt.Fprintln(tw)
	for _, p := range matrixRows(ident) {
		fmt.Fprintf(tw, "  %s", p.label)
		for _, a := range matrixActions {
			mark := "-"
			if rules.Can(a, p.subject) {
				mark = "yes"
			}
			fmt.Fprintf(tw, "\t%s", mark)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
