package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bitslow/identity"
	"bitslow/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=../service/mocks/mock_tx.go -package=mocks bitslow/repository Tx

// Tx is the set of coin ledger statements that must run inside one atomic
// scope.
type Tx interface {
	ExistingTriples(ctx context.Context) ([]identity.Triple, error)
	InsertCoin(ctx context.Context, triple identity.Triple, value decimal.Decimal, ownerID *int) (int, error)
	LockCoin(ctx context.Context, coinID int) (models.Coin, error)
	AssignOwner(ctx context.Context, coinID, ownerID int) (bool, error)
	AddTransaction(ctx context.Context, coinID, buyerID int, sellerID *int, amount decimal.Decimal) (int, error)
}

// InTx runs fn inside a SERIALIZABLE transaction. The transaction is rolled
// back on every path that does not commit. Serialization failures, deadlocks
// and triple collisions re-run fn from scratch; any other error is returned
// as is.
func (r PostgresRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("begin transaction: %w", err))
		}
		defer func() {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.log.Error("rollback failed", zap.Error(err), zap.Int("attempt", attempt))
			}
		}()

		if err := fn(sqlTx{tx: tx}); err != nil {
			return classify(err)
		}
		if err := tx.Commit(); err != nil {
			return classify(fmt.Errorf("commit transaction: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		r.log.Warn("retrying conflicting transaction",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
	})
}

func classify(err error) error {
	if IsRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}

// IsRetryable reports whether err is a conflict that a fresh attempt of the
// same transaction can resolve.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case serializationFailure, deadlockDetected:
		return true
	case uniqueViolation:
		return pqErr.Constraint == tripleConstraint
	}
	return false
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) ExistingTriples(ctx context.Context) ([]identity.Triple, error) {
	rows, err := t.tx.QueryContext(ctx, "SELECT bit1, bit2, bit3 FROM coins")
	if err != nil {
		return nil, fmt.Errorf("select triples: %w", err)
	}
	defer rows.Close()

	var triples []identity.Triple
	for rows.Next() {
		var tr identity.Triple
		if err := rows.Scan(&tr.Bit1, &tr.Bit2, &tr.Bit3); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		triples = append(triples, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triples: %w", err)
	}
	return triples, nil
}

func (t sqlTx) InsertCoin(
	ctx context.Context,
	triple identity.Triple,
	value decimal.Decimal,
	ownerID *int,
) (int, error) {
	var id int
	err := t.tx.QueryRowContext(
		ctx,
		"INSERT INTO coins (bit1, bit2, bit3, value, client_id) VALUES ($1, $2, $3, $4, $5) RETURNING coin_id",
		triple.Bit1, triple.Bit2, triple.Bit3, value, nullableID(ownerID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert coin: %w", err)
	}
	return id, nil
}

func (t sqlTx) LockCoin(ctx context.Context, coinID int) (models.Coin, error) {
	var (
		c       models.Coin
		ownerID sql.NullInt64
	)
	err := t.tx.QueryRowContext(
		ctx,
		"SELECT coin_id, bit1, bit2, bit3, value, client_id, created_at FROM coins WHERE coin_id=$1 FOR UPDATE",
		coinID,
	).Scan(&c.ID, &c.Bit1, &c.Bit2, &c.Bit3, &c.Value, &ownerID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coin{}, &models.NotFoundError{Msg: fmt.Sprintf("coin %d not found", coinID)}
		}
		return models.Coin{}, fmt.Errorf("lock coin: %w", err)
	}
	if ownerID.Valid {
		id := int(ownerID.Int64)
		c.OwnerID = &id
	}
	return c, nil
}

// AssignOwner sets the owner of a coin that has none. It reports false when
// the coin was already owned at execution time.
func (t sqlTx) AssignOwner(ctx context.Context, coinID, ownerID int) (bool, error) {
	res, err := t.tx.ExecContext(
		ctx,
		"UPDATE coins SET client_id=$1 WHERE coin_id=$2 AND client_id IS NULL",
		ownerID, coinID,
	)
	if err != nil {
		return false, fmt.Errorf("update coin owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update coin owner: %w", err)
	}
	return n == 1, nil
}

func (t sqlTx) AddTransaction(
	ctx context.Context,
	coinID, buyerID int,
	sellerID *int,
	amount decimal.Decimal,
) (int, error) {
	var id int
	err := t.tx.QueryRowContext(
		ctx,
		"INSERT INTO transactions (coin_id, buyer_id, seller_id, amount, transaction_date) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		coinID, buyerID, nullableID(sellerID), amount, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func nullableID(id *int) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
