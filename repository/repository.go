package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitslow/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"

	tripleConstraint = "coins_triple_key"
	emailConstraint  = "clients_email_key"
)

type PostgresRepository struct {
	db         *sql.DB
	log        *zap.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

type Option func(*PostgresRepository)

// WithMaxRetries bounds how many times InTx re-runs a transaction that lost
// a serialization conflict.
func WithMaxRetries(n uint64) Option {
	return func(r *PostgresRepository) {
		r.maxRetries = n
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *PostgresRepository) {
		r.newBackOff = newBackOff
	}
}

func NewPostgresRepository(db *sql.DB, log *zap.Logger, opts ...Option) PostgresRepository {
	r := PostgresRepository{
		db:         db,
		log:        log,
		maxRetries: 5,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

func (r PostgresRepository) CreateUser(
	ctx context.Context,
	user models.User,
) (int, error) {
	var id int
	err := r.db.QueryRowContext(
		ctx,
		"INSERT INTO clients (name, email, password, phone, address) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		user.Name, user.Email, user.Password, user.Phone, user.Address,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == emailConstraint {
			return 0, &models.ConflictError{Msg: fmt.Sprintf("email %s is already registered", user.Email)}
		}
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return id, nil
}

func (r PostgresRepository) GetUserByEmail(
	ctx context.Context,
	email string,
) (models.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r PostgresRepository) GetUserByID(
	ctx context.Context,
	id int,
) (models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r PostgresRepository) getUser(ctx context.Context, column string, arg any) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, name, email, password, phone, address FROM clients WHERE "+column+"=$1",
		arg,
	)
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Phone, &u.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, &models.NotFoundError{Msg: fmt.Sprintf("user with %s %v not found", column, arg)}
		}
		return models.User{}, fmt.Errorf("select client: %w", err)
	}
	return u, nil
}

const coinColumns = `c.coin_id, c.bit1, c.bit2, c.bit3, c.value, c.client_id, cl.name, c.created_at
	FROM coins c
	LEFT JOIN clients cl ON cl.id = c.client_id`

func (r PostgresRepository) GetCoin(
	ctx context.Context,
	coinID int,
) (models.Coin, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+coinColumns+" WHERE c.coin_id=$1", coinID)
	coin, err := scanCoin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coin{}, &models.NotFoundError{Msg: fmt.Sprintf("coin %d not found", coinID)}
		}
		return models.Coin{}, fmt.Errorf("select coin: %w", err)
	}
	return coin, nil
}

func (r PostgresRepository) GetCoinByTriple(
	ctx context.Context,
	bit1, bit2, bit3 int,
) (models.Coin, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+coinColumns+" WHERE c.bit1=$1 AND c.bit2=$2 AND c.bit3=$3",
		bit1, bit2, bit3,
	)
	coin, err := scanCoin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coin{}, &models.NotFoundError{Msg: "no coin carries this bitslow"}
		}
		return models.Coin{}, fmt.Errorf("select coin by triple: %w", err)
	}
	return coin, nil
}

func (r PostgresRepository) ListCoins(
	ctx context.Context,
	filter models.CoinFilter,
	page models.Page,
) (models.CoinPage, error) {
	var w where
	if filter.OwnerID != nil {
		w.add("c.client_id = $%d", *filter.OwnerID)
	}
	if filter.AvailableOnly {
		w.cond("c.client_id IS NULL")
	}
	if filter.MinValue != nil {
		w.add("c.value >= $%d", *filter.MinValue)
	}
	if filter.MaxValue != nil {
		w.add("c.value <= $%d", *filter.MaxValue)
	}

	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coins c"+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return models.CoinPage{}, fmt.Errorf("count coins: %w", err)
	}

	query := "SELECT " + coinColumns + w.sql() +
		fmt.Sprintf(" ORDER BY c.created_at DESC, c.coin_id DESC LIMIT $%d OFFSET $%d", len(w.args)+1, len(w.args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(w.args, page.Limit, page.Offset())...)
	if err != nil {
		return models.CoinPage{}, fmt.Errorf("select coins: %w", err)
	}
	defer rows.Close()

	items := []models.Coin{}
	for rows.Next() {
		coin, err := scanCoin(rows)
		if err != nil {
			return models.CoinPage{}, fmt.Errorf("scan coin: %w", err)
		}
		items = append(items, coin)
	}
	if err := rows.Err(); err != nil {
		return models.CoinPage{}, fmt.Errorf("iterate coins: %w", err)
	}
	return models.CoinPage{Items: items, Total: total}, nil
}

const transactionColumns = `t.id, t.coin_id, t.buyer_id, t.seller_id, b.name, s.name,
	t.amount, t.transaction_date, c.bit1, c.bit2, c.bit3
	FROM transactions t
	JOIN coins c ON c.coin_id = t.coin_id
	JOIN clients b ON b.id = t.buyer_id
	LEFT JOIN clients s ON s.id = t.seller_id`

func (r PostgresRepository) ListTransactions(
	ctx context.Context,
	filter models.TransactionFilter,
	page models.Page,
) (models.TransactionPage, error) {
	var w where
	if filter.UserID != nil {
		w.add("(t.buyer_id = $%[1]d OR t.seller_id = $%[1]d)", *filter.UserID)
	}
	if filter.CoinID != nil {
		w.add("t.coin_id = $%d", *filter.CoinID)
	}
	if filter.From != nil {
		w.add("t.transaction_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("t.transaction_date <= $%d", *filter.To)
	}

	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions t"+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return models.TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}

	query := "SELECT " + transactionColumns + w.sql() +
		fmt.Sprintf(" ORDER BY t.transaction_date DESC, t.id DESC LIMIT $%d OFFSET $%d", len(w.args)+1, len(w.args)+2)
	items, err := r.queryTransactions(ctx, query, append(w.args, page.Limit, page.Offset())...)
	if err != nil {
		return models.TransactionPage{}, err
	}
	return models.TransactionPage{Items: items, Total: total}, nil
}

// GetCoinTransactions returns the ledger of one coin, oldest first.
func (r PostgresRepository) GetCoinTransactions(
	ctx context.Context,
	coinID int,
) ([]models.Transaction, error) {
	return r.queryTransactions(
		ctx,
		"SELECT "+transactionColumns+" WHERE t.coin_id=$1 ORDER BY t.transaction_date ASC, t.id ASC",
		coinID,
	)
}

func (r PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var (
			t          models.Transaction
			sellerID   sql.NullInt64
			sellerName sql.NullString
		)
		if err := rows.Scan(
			&t.ID,
			&t.CoinID,
			&t.BuyerID,
			&sellerID,
			&t.BuyerName,
			&sellerName,
			&t.Amount,
			&t.CreatedAt,
			&t.Bit1,
			&t.Bit2,
			&t.Bit3,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if sellerID.Valid {
			id := int(sellerID.Int64)
			t.SellerID = &id
		}
		if sellerName.Valid {
			t.SellerName = &sellerName.String
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func (r PostgresRepository) GetUserStats(
	ctx context.Context,
	userID int,
) (models.UserStats, error) {
	var stats models.UserStats
	err := r.db.QueryRowContext(
		ctx,
		`SELECT
			(SELECT COUNT(*) FROM transactions WHERE buyer_id=$1 OR seller_id=$1),
			(SELECT COUNT(*) FROM coins WHERE client_id=$1),
			(SELECT COALESCE(SUM(value), 0) FROM coins WHERE client_id=$1)`,
		userID,
	).Scan(&stats.TotalTransactions, &stats.CoinsOwned, &stats.TotalValue)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("select user stats: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCoin(row scanner) (models.Coin, error) {
	var (
		c         models.Coin
		ownerID   sql.NullInt64
		ownerName sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Bit1, &c.Bit2, &c.Bit3, &c.Value, &ownerID, &ownerName, &c.CreatedAt); err != nil {
		return models.Coin{}, err
	}
	if ownerID.Valid {
		id := int(ownerID.Int64)
		c.OwnerID = &id
	}
	if ownerName.Valid {
		c.OwnerName = &ownerName.String
	}
	return c, nil
}

// where accumulates AND-ed conditions with positional placeholders.
type where struct {
	conds []string
	args  []any
}

// add appends a condition whose placeholder verb receives the next argument
// position.
func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *where) cond(c string) {
	w.conds = append(w.conds, c)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
