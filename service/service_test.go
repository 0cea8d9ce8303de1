package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bitslow/identity"
	"bitslow/models"
	"bitslow/repository"
	"bitslow/service"
	"bitslow/service/mocks"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type decimalMatcher struct {
	want decimal.Decimal
}

func (m decimalMatcher) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return fmt.Sprintf("is decimal %s", m.want)
}

func decimalEq(v int64) gomock.Matcher {
	return decimalMatcher{want: decimal.NewFromInt(v)}
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) InvalidateAll() {
	c.invalidations++
}

func runInTx(mr *mocks.MockRepository, mt *mocks.MockTx) {
	mr.EXPECT().
		InTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(repository.Tx) error) error {
			return fn(mt)
		})
}

func intPtr(v int) *int {
	return &v
}

func TestService_Generate(t *testing.T) {
	type fields struct {
		prepare func(*mocks.MockRepository, *mocks.MockTx)
	}
	type args struct {
		requesterID int
		value       decimal.Decimal
	}
	tests := []struct {
		name             string
		fields           fields
		args             args
		wantErr          error
		wantInvalidation int
	}{
		{
			name: "Mint for user A with value 500",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						ExistingTriples(gomock.Any()).
						Return([]identity.Triple{{Bit1: 1, Bit2: 1, Bit3: 1}}, nil)
					mt.EXPECT().
						InsertCoin(gomock.Any(), gomock.Not(identity.Triple{Bit1: 1, Bit2: 1, Bit3: 1}), decimalEq(500), intPtr(1)).
						Return(42, nil)
					mt.EXPECT().
						AddTransaction(gomock.Any(), 42, 1, nil, decimalEq(500)).
						Return(7, nil)
				},
			},
			args:             args{requesterID: 1, value: decimal.NewFromInt(500)},
			wantInvalidation: 1,
		},
		{
			name: "Non-positive value is rejected before any storage access",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {},
			},
			args:    args{requesterID: 1, value: decimal.Zero},
			wantErr: &models.ValidationError{},
		},
		{
			name: "Largest storable value",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().ExistingTriples(gomock.Any()).Return(nil, nil)
					mt.EXPECT().
						InsertCoin(gomock.Any(), gomock.Any(), decimalMatcher{want: decimal.RequireFromString("999999999999.99")}, intPtr(1)).
						Return(42, nil)
					mt.EXPECT().
						AddTransaction(gomock.Any(), 42, 1, nil, gomock.Any()).
						Return(8, nil)
				},
			},
			args:             args{requesterID: 1, value: decimal.RequireFromString("999999999999.99")},
			wantInvalidation: 1,
		},
		{
			name: "More than two decimal places",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {},
			},
			args:    args{requesterID: 1, value: decimal.RequireFromString("1.005")},
			wantErr: &models.ValidationError{},
		},
		{
			name: "Positive value that rounds to zero",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {},
			},
			args:    args{requesterID: 1, value: decimal.RequireFromString("0.001")},
			wantErr: &models.ValidationError{},
		},
		{
			name: "Value too large for storage",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {},
			},
			args:    args{requesterID: 1, value: decimal.New(1, 12)},
			wantErr: &models.ValidationError{},
		},
		{
			name: "Full occupancy",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						ExistingTriples(gomock.Any()).
						Return(identity.All(), nil)
				},
			},
			args:    args{requesterID: 1, value: decimal.NewFromInt(500)},
			wantErr: &models.ExhaustionError{},
		},
		{
			name: "Storage failure while appending the transaction",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().ExistingTriples(gomock.Any()).Return(nil, nil)
					mt.EXPECT().InsertCoin(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(3, nil)
					mt.EXPECT().
						AddTransaction(gomock.Any(), 3, 1, nil, gomock.Any()).
						Return(0, errors.New("connection reset"))
				},
			},
			args:    args{requesterID: 1, value: decimal.NewFromInt(10)},
			wantErr: &models.StorageError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := mocks.NewMockRepository(ctrl)
			mockTx := mocks.NewMockTx(ctrl)
			tt.fields.prepare(mockRepo, mockTx)

			cache := &countingCache{}
			svc := service.NewService(mockRepo, service.NewJWTAuth("secret", time.Hour), service.WithCache(cache))
			coin, err := svc.Generate(context.Background(), tt.args.requesterID, tt.args.value)
			require.Equal(t, tt.wantInvalidation, cache.invalidations)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 42, coin.ID)
			require.NotNil(t, coin.OwnerID)
			require.Equal(t, tt.args.requesterID, *coin.OwnerID)
			require.True(t, tt.args.value.Equal(coin.Value))
			require.True(t, identity.Triple{Bit1: coin.Bit1, Bit2: coin.Bit2, Bit3: coin.Bit3}.Valid())
		})
	}
}

func TestService_Buy(t *testing.T) {
	type fields struct {
		prepare func(*mocks.MockRepository, *mocks.MockTx)
	}
	type args struct {
		requesterID int
		coinID      int
	}
	tests := []struct {
		name             string
		fields           fields
		args             args
		wantErr          error
		wantInvalidation int
	}{
		{
			name: "Available coin",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						LockCoin(gomock.Any(), 9).
						Return(models.Coin{ID: 9, Value: decimal.NewFromInt(250)}, nil)
					mt.EXPECT().AssignOwner(gomock.Any(), 9, 2).Return(true, nil)
					mt.EXPECT().
						AddTransaction(gomock.Any(), 9, 2, nil, decimalEq(250)).
						Return(11, nil)
				},
			},
			args:             args{requesterID: 2, coinID: 9},
			wantInvalidation: 1,
		},
		{
			name: "Coin generated by user A cannot be bought by user B",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						LockCoin(gomock.Any(), 42).
						Return(models.Coin{ID: 42, Value: decimal.NewFromInt(500), OwnerID: intPtr(1)}, nil)
				},
			},
			args:    args{requesterID: 2, coinID: 42},
			wantErr: &models.AlreadyOwnedError{},
		},
		{
			name: "Race lost between lock and update",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						LockCoin(gomock.Any(), 9).
						Return(models.Coin{ID: 9, Value: decimal.NewFromInt(250)}, nil)
					mt.EXPECT().AssignOwner(gomock.Any(), 9, 2).Return(false, nil)
				},
			},
			args:    args{requesterID: 2, coinID: 9},
			wantErr: &models.AlreadyOwnedError{},
		},
		{
			name: "Unknown coin",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					runInTx(mr, mt)
					mt.EXPECT().
						LockCoin(gomock.Any(), 404).
						Return(models.Coin{}, &models.NotFoundError{Msg: "coin 404 not found"})
				},
			},
			args:    args{requesterID: 2, coinID: 404},
			wantErr: &models.NotFoundError{},
		},
		{
			name: "Invalid coin id",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {},
			},
			args:    args{requesterID: 2, coinID: 0},
			wantErr: &models.ValidationError{},
		},
		{
			name: "Storage failure",
			fields: fields{
				prepare: func(mr *mocks.MockRepository, mt *mocks.MockTx) {
					mr.EXPECT().InTx(gomock.Any(), gomock.Any()).Return(errors.New("begin transaction: refused"))
				},
			},
			args:    args{requesterID: 2, coinID: 9},
			wantErr: &models.StorageError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := mocks.NewMockRepository(ctrl)
			mockTx := mocks.NewMockTx(ctrl)
			tt.fields.prepare(mockRepo, mockTx)

			cache := &countingCache{}
			svc := service.NewService(mockRepo, service.NewJWTAuth("secret", time.Hour), service.WithCache(cache))
			err := svc.Buy(context.Background(), tt.args.requesterID, tt.args.coinID)
			require.Equal(t, tt.wantInvalidation, cache.invalidations)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestService_SeedMarket(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockRepository(ctrl)
	mockTx := mocks.NewMockTx(ctrl)
	runInTx(mockRepo, mockTx)
	mockTx.EXPECT().ExistingTriples(gomock.Any()).Return(identity.All()[:995], nil)

	seen := map[identity.Triple]bool{}
	next := 100
	mockTx.EXPECT().
		InsertCoin(gomock.Any(), gomock.Any(), gomock.Any(), nil).
		Times(3).
		DoAndReturn(func(_ context.Context, tr identity.Triple, value decimal.Decimal, _ *int) (int, error) {
			require.False(t, seen[tr])
			require.NotContains(t, identity.All()[:995], tr)
			require.True(t, value.GreaterThanOrEqual(decimal.NewFromInt(10)))
			require.True(t, value.LessThanOrEqual(decimal.NewFromInt(20)))
			seen[tr] = true
			next++
			return next, nil
		})

	svc := service.NewService(mockRepo, service.NewJWTAuth("secret", time.Hour), service.WithSpace(identity.NewSeededSpace(3, 4)))
	ids, err := svc.SeedMarket(context.Background(), 3, 10, 20)
	require.NoError(t, err)
	require.Equal(t, []int{101, 102, 103}, ids)
}

func TestService_SeedMarket_ValueTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := service.NewService(mocks.NewMockRepository(ctrl), service.NewJWTAuth("secret", time.Hour))
	_, err := svc.SeedMarket(context.Background(), 1, 10, 1_000_000_000_000)
	require.ErrorIs(t, err, &models.ValidationError{})
}

func TestService_SeedMarket_NotEnoughCombinations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockRepository(ctrl)
	mockTx := mocks.NewMockTx(ctrl)
	runInTx(mockRepo, mockTx)
	mockTx.EXPECT().ExistingTriples(gomock.Any()).Return(identity.All()[:999], nil)

	svc := service.NewService(mockRepo, service.NewJWTAuth("secret", time.Hour))
	_, err := svc.SeedMarket(context.Background(), 2, 10, 20)
	require.ErrorIs(t, err, &models.ExhaustionError{})
}

func TestService_Register(t *testing.T) {
	type fields struct {
		prepareRepository func(*mocks.MockRepository)
	}
	tests := []struct {
		name       string
		fields     fields
		input      service.RegisterInput
		wantErr    error
		wantUserID int
	}{
		{
			name: "New client",
			fields: fields{
				prepareRepository: func(mr *mocks.MockRepository) {
					mr.EXPECT().
						CreateUser(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, u models.User) (int, error) {
							require.Equal(t, "alice@example.com", u.Email)
							require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret1")))
							return 5, nil
						})
				},
			},
			input:      service.RegisterInput{Name: "Alice", Email: " Alice@Example.com ", Password: "secret1"},
			wantUserID: 5,
		},
		{
			name: "Duplicate email",
			fields: fields{
				prepareRepository: func(mr *mocks.MockRepository) {
					mr.EXPECT().
						CreateUser(gomock.Any(), gomock.Any()).
						Return(0, &models.ConflictError{Msg: "taken"})
				},
			},
			input:   service.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "secret1"},
			wantErr: &models.ConflictError{},
		},
		{
			name: "Short password",
			fields: fields{
				prepareRepository: func(mr *mocks.MockRepository) {},
			},
			input:   service.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "123"},
			wantErr: &models.ValidationError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := mocks.NewMockRepository(ctrl)
			tt.fields.prepareRepository(mockRepo)

			auth := service.NewJWTAuth("secret", time.Hour)
			svc := service.NewService(mockRepo, auth, service.WithHasher(service.BcryptHasher{Cost: bcrypt.MinCost}))
			token, err := svc.Register(context.Background(), tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			id, err := auth.Verify(token)
			require.NoError(t, err)
			require.Equal(t, tt.wantUserID, id.UserID)
			require.Equal(t, "alice@example.com", id.Email)
		})
	}
}

func TestService_Login(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{ID: 3, Name: "Bob", Email: "bob@example.com", Password: string(hashed)}

	tests := []struct {
		name     string
		prepare  func(*mocks.MockRepository)
		password string
		wantErr  error
	}{
		{
			name: "Correct password",
			prepare: func(mr *mocks.MockRepository) {
				mr.EXPECT().GetUserByEmail(gomock.Any(), "bob@example.com").Return(user, nil)
			},
			password: "pass123",
		},
		{
			name: "Wrong password",
			prepare: func(mr *mocks.MockRepository) {
				mr.EXPECT().GetUserByEmail(gomock.Any(), "bob@example.com").Return(user, nil)
			},
			password: "wrong",
			wantErr:  &models.UnauthorizedError{},
		},
		{
			name: "Unknown email",
			prepare: func(mr *mocks.MockRepository) {
				mr.EXPECT().
					GetUserByEmail(gomock.Any(), "bob@example.com").
					Return(models.User{}, &models.NotFoundError{Msg: "missing"})
			},
			password: "pass123",
			wantErr:  &models.UnauthorizedError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRepo := mocks.NewMockRepository(ctrl)
			tt.prepare(mockRepo)

			svc := service.NewService(mockRepo, service.NewJWTAuth("secret", time.Hour))
			token, err := svc.Login(context.Background(), "bob@example.com", tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
				return []byte("secret"), nil
			})
			require.NoError(t, err)
			claims, ok := parsed.Claims.(jwt.MapClaims)
			require.True(t, ok)
			require.Equal(t, 3, int(claims["user_id"].(float64)))
		})
	}
}

func TestJWTAuth_Verify(t *testing.T) {
	auth := service.NewJWTAuth("secret", time.Hour)
	token, err := auth.Issue(models.User{ID: 8, Email: "x@example.com"})
	require.NoError(t, err)

	id, err := auth.Verify(token)
	require.NoError(t, err)
	require.Equal(t, service.Identity{UserID: 8, Email: "x@example.com"}, id)

	_, err = service.NewJWTAuth("other", time.Hour).Verify(token)
	require.ErrorIs(t, err, &models.UnauthorizedError{})

	_, err = auth.Verify("garbage")
	require.ErrorIs(t, err, &models.UnauthorizedError{})
}
