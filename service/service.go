package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"bitslow/identity"
	"bitslow/metrics"
	"bitslow/models"
	"bitslow/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=./mocks/mock_repository.go -package=mocks bitslow/service Repository

type Repository interface {
	CreateUser(ctx context.Context, user models.User) (int, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
	GetCoin(ctx context.Context, coinID int) (models.Coin, error)
	GetCoinByTriple(ctx context.Context, bit1, bit2, bit3 int) (models.Coin, error)
	ListCoins(ctx context.Context, filter models.CoinFilter, page models.Page) (models.CoinPage, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter, page models.Page) (models.TransactionPage, error)
	GetCoinTransactions(ctx context.Context, coinID int) ([]models.Transaction, error)
	GetUserStats(ctx context.Context, userID int) (models.UserStats, error)
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

// Invalidator drops cached read responses after a mutation commits.
type Invalidator interface {
	InvalidateAll()
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	tokens TokenIssuer
	cache  Invalidator
	space  *identity.Space
	log    *zap.Logger
}

type Option func(*Service)

func WithCache(cache Invalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func WithSpace(space *identity.Space) Option {
	return func(s *Service) {
		s.space = space
	}
}

func WithHasher(hasher PasswordHasher) Option {
	return func(s *Service) {
		s.hasher = hasher
	}
}

func NewService(repo Repository, tokens TokenIssuer, opts ...Option) Service {
	s := Service{
		repo:   repo,
		hasher: BcryptHasher{},
		tokens: tokens,
		space:  identity.NewSpace(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
}

func (s Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Name == "":
		return "", &models.ValidationError{Msg: "name is required"}
	case !strings.Contains(in.Email, "@"):
		return "", &models.ValidationError{Msg: "a valid email is required"}
	case len(in.Password) < 6:
		return "", &models.ValidationError{Msg: "password must be at least 6 characters"}
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: hashed,
		Phone:    in.Phone,
		Address:  in.Address,
	}
	user.ID, err = s.repo.CreateUser(ctx, user)
	if err != nil {
		return "", s.fail("register", err)
	}
	s.log.Info("client registered", zap.Int("user_id", user.ID))
	return s.tokens.Issue(user)
}

func (s Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, &models.NotFoundError{}) {
			return "", &models.UnauthorizedError{Msg: "invalid credentials"}
		}
		return "", s.fail("login", err)
	}
	if !s.hasher.Compare(user.Password, password) {
		return "", &models.UnauthorizedError{Msg: "invalid credentials"}
	}
	return s.tokens.Issue(user)
}

// Generate mints a new coin with an unused triple, owned by the requester,
// and records the mint transaction. Both rows are written or neither is.
func (s Service) Generate(
	ctx context.Context,
	requesterID int,
	value decimal.Decimal,
) (models.Coin, error) {
	if err := validateValue(value); err != nil {
		return models.Coin{}, err
	}

	var coin models.Coin
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.ExistingTriples(ctx)
		if err != nil {
			return err
		}
		if identity.IsExhausted(existing) {
			return &models.ExhaustionError{Msg: "no combinations left"}
		}
		triple, err := s.space.DrawUnused(existing)
		if err != nil {
			return err
		}
		owner := requesterID
		coinID, err := tx.InsertCoin(ctx, triple, value, &owner)
		if err != nil {
			return err
		}
		if _, err := tx.AddTransaction(ctx, coinID, requesterID, nil, value); err != nil {
			return err
		}
		coin = models.Coin{
			ID:      coinID,
			Bit1:    triple.Bit1,
			Bit2:    triple.Bit2,
			Bit3:    triple.Bit3,
			Value:   value,
			OwnerID: &owner,
		}
		return nil
	})
	if err != nil {
		return models.Coin{}, s.fail("generate", err)
	}

	s.committed("generate")
	s.log.Info("coin generated",
		zap.Int("coin_id", coin.ID),
		zap.Int("owner_id", requesterID),
		zap.Ints("triple", []int{coin.Bit1, coin.Bit2, coin.Bit3}),
		zap.String("value", value.String()),
	)
	return coin, nil
}

// Buy transfers an available coin to the requester. The mint path is the only
// one that creates an owner, so the recorded seller is always empty.
func (s Service) Buy(ctx context.Context, requesterID, coinID int) error {
	if coinID <= 0 {
		return &models.ValidationError{Msg: "invalid coin id"}
	}

	var amount decimal.Decimal
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		coin, err := tx.LockCoin(ctx, coinID)
		if err != nil {
			return err
		}
		if coin.OwnerID != nil {
			return &models.AlreadyOwnedError{Msg: fmt.Sprintf("coin %d is already owned", coinID)}
		}
		assigned, err := tx.AssignOwner(ctx, coinID, requesterID)
		if err != nil {
			return err
		}
		if !assigned {
			return &models.AlreadyOwnedError{Msg: fmt.Sprintf("coin %d is already owned", coinID)}
		}
		if _, err := tx.AddTransaction(ctx, coinID, requesterID, nil, coin.Value); err != nil {
			return err
		}
		amount = coin.Value
		return nil
	})
	if err != nil {
		return s.fail("buy", err)
	}

	s.committed("buy")
	s.log.Info("coin bought",
		zap.Int("coin_id", coinID),
		zap.Int("buyer_id", requesterID),
		zap.String("amount", amount.String()),
	)
	return nil
}

// SeedMarket inserts n unowned coins with values drawn from
// [minValue, maxValue]. No transaction rows are written: a seeded coin has no
// history until it is bought.
func (s Service) SeedMarket(ctx context.Context, n int, minValue, maxValue int64) ([]int, error) {
	if n <= 0 || minValue <= 0 || maxValue < minValue {
		return nil, &models.ValidationError{Msg: "invalid seed parameters"}
	}
	if err := validateValue(decimal.NewFromInt(maxValue)); err != nil {
		return nil, err
	}

	var ids []int
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		ids = ids[:0]
		existing, err := tx.ExistingTriples(ctx)
		if err != nil {
			return err
		}
		triples, err := s.space.DrawUnusedN(existing, n)
		if err != nil {
			return &models.ExhaustionError{Msg: fmt.Sprintf("fewer than %d combinations left", n)}
		}
		for _, triple := range triples {
			value := decimal.NewFromInt(minValue + rand.Int64N(maxValue-minValue+1))
			id, err := tx.InsertCoin(ctx, triple, value, nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("seed", err)
	}

	s.committed("seed")
	s.log.Info("market seeded", zap.Int("coins", len(ids)))
	return ids, nil
}

// MaxValue is the exclusive upper bound of a coin value. Values carry at most
// ValueScale fractional digits, matching the NUMERIC(14, 2) column.
var MaxValue = decimal.New(1, 12)

const ValueScale = 2

func validateValue(value decimal.Decimal) error {
	switch {
	case !value.IsPositive():
		return &models.ValidationError{Msg: "value must be positive"}
	case !value.Equal(value.Truncate(ValueScale)):
		return &models.ValidationError{Msg: "value must have at most 2 decimal places"}
	case value.GreaterThanOrEqual(MaxValue):
		return &models.ValidationError{Msg: "value must be less than " + MaxValue.String()}
	}
	return nil
}

func (s Service) committed(op string) {
	metrics.RecordLedger(op, "ok")
	if s.cache != nil {
		s.cache.InvalidateAll()
		metrics.RecordCacheInvalidation()
	}
}

// fail passes domain errors through and hides everything else behind a
// StorageError.
func (s Service) fail(op string, err error) error {
	var outcome string
	switch {
	case errors.Is(err, &models.ValidationError{}):
		outcome = "invalid"
	case errors.Is(err, &models.ExhaustionError{}):
		outcome = "exhausted"
	case errors.Is(err, &models.NotFoundError{}):
		outcome = "not_found"
	case errors.Is(err, &models.AlreadyOwnedError{}):
		outcome = "already_owned"
	case errors.Is(err, &models.ConflictError{}):
		outcome = "conflict"
	case errors.Is(err, &models.UnauthorizedError{}):
		outcome = "unauthorized"
	default:
		metrics.RecordLedger(op, "storage_error")
		s.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return &models.StorageError{Op: op, Err: err}
	}
	metrics.RecordLedger(op, outcome)
	s.log.Warn("operation rejected", zap.String("op", op), zap.String("reason", outcome), zap.Error(err))
	return err
}
