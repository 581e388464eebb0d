package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"email":        {},
	"token":        {},
	"password":     {},
	"session":      {},
	"accessToken":  {},
	"refreshToken": {},
}

// Actor is whoever a log line is attributed to. Implementations must never expose
// e-mail addresses or other personal data through LogFields.
type Actor interface {
	LogFields() map[string]any
}

type namedActor string

func (a namedActor) LogFields() map[string]any {
	return map[string]any{"identity": string(a)}
}

var (
	Public Actor = namedActor("public")
	System Actor = namedActor("system")
)

// ExtractIdentity returns the fields attributing a log line to actor.
func ExtractIdentity(actor Actor) map[string]any {
	if actor == nil {
		return map[string]any{"identity": "public"}
	}
	fields := actor.LogFields()
	if len(fields) == 0 {
		return map[string]any{"identity": "system"}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Sanitize returns a copy of data with sensitive keys replaced, descending into
// nested maps.
func Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := sensitiveKeys[k]; ok {
			out[k] = redacted
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			out[k] = Sanitize(nested)
		case logrus.Fields:
			out[k] = Sanitize(nested)
		case map[string]string:
			m := make(map[string]any, len(nested))
			for nk, nv := range nested {
				m[nk] = nv
			}
			out[k] = Sanitize(m)
		default:
			out[k] = v
		}
	}
	return out
}

// FormatIdentity renders the attribution fields of a record for chat messages.
func FormatIdentity(fields map[string]any) string {
	var parts []string
	if v, ok := fields["userId"]; ok {
		parts = append(parts, fmt.Sprintf("userId: %v", v))
	}
	if v, ok := fields["organization"]; ok {
		parts = append(parts, fmt.Sprintf("org: %v", v))
	}
	if v, ok := fields["role"]; ok {
		parts = append(parts, fmt.Sprintf("role: %v", v))
	}
	if len(parts) == 0 {
		if v, ok := fields["identity"]; ok {
			parts = append(parts, fmt.Sprintf("identity: %v", v))
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " | ")
}
