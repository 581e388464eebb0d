package authz

import (
	"github.com/go-faster/errors"
)

// ErrInvalidConfig is returned when the model or policy source cannot be used.
var ErrInvalidConfig = errors.New("authz: invalid configuration")

func configError(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}
