// Package persistence stores the auth data plane in PostgreSQL through the
// transaction bound to the request context.
package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/repo"
)

func useTx(ctx context.Context) (repo.Tx, error) {
	return composables.UseTx(ctx)
}

// nullable maps an empty id onto SQL NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
