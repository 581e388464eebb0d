package identity

import "strings"

// SplitRoles parses a comma separated role list, dropping blanks.
func SplitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// JoinRoles is the inverse of SplitRoles.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}
