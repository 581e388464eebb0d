package composables

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/repo"
)

var (
	ErrNoTx   = errors.New("no transaction found in context")
	ErrNoPool = errors.New("no database pool found in context")
)

func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, constants.PoolKey, pool)
}

func UsePool(ctx context.Context) (*pgxpool.Pool, error) {
	if pool, ok := ctx.Value(constants.PoolKey).(*pgxpool.Pool); ok && pool != nil {
		return pool, nil
	}
	return nil, ErrNoPool
}

func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, constants.TxKey, tx)
}

// UseTx returns the transaction bound to ctx, falling back to the pool so
// repositories run the same statements either way.
func UseTx(ctx context.Context) (repo.Tx, error) {
	if tx, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok {
		return tx, nil
	}
	return UsePool(ctx)
}

// InTx runs fn inside a read committed transaction.
func InTx(ctx context.Context, fn func(context.Context) error) error {
	return InTxWith(ctx, pgx.TxOptions{}, fn)
}

// InTxWith runs fn inside a transaction started with opts. A transaction
// already bound to ctx is reused and left for its owner to finish, whatever
// opts say. A panic in fn rolls back before propagating.
func InTxWith(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) (err error) {
	if _, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok {
		return fn(ctx)
	}
	pool, err := UsePool(ctx)
	if err != nil {
		return err
	}
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rErr := tx.Rollback(context.WithoutCancel(ctx)); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) && err != nil {
			err = errors.Wrapf(err, "rollback also failed: %v", rErr)
		}
	}()

	if err = fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}
