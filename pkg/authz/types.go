package authz

import (
	"strings"
)

const (
	subjectOrgPrefix  = "org"
	subjectUserPrefix = "user"
	subjectSeparator  = ":"
)

// Permission is a single (object, action) pair granted to a policy subject.
type Permission struct {
	Object string
	Action string
}

// SubjectForOrgRole returns the policy subject for a membership role, e.g. org:admin.
func SubjectForOrgRole(role string) string {
	return subjectFor(subjectOrgPrefix, role)
}

// SubjectForUserRole returns the policy subject for a global user role, e.g. user:admin.
func SubjectForUserRole(role string) string {
	return subjectFor(subjectUserPrefix, role)
}

func subjectFor(prefix, role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "none"
	}
	return prefix + subjectSeparator + role
}

// NormalizeAction trims and preserves case; actions such as setRole are camel case.
func NormalizeAction(action string) string {
	return strings.TrimSpace(action)
}
