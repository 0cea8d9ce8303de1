package service

import (
	"errors"
	"fmt"
	"time"

	"bitslow/models"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// Identity is the requester resolved from a verified token.
type Identity struct {
	UserID int
	Email  string
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) bool
}

type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

type AuthVerifier interface {
	Verify(token string) (Identity, error)
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h BcryptHasher) Compare(hashed, password string) bool {
	err := bcrypt.CompareHashAndPassword(
		[]byte(hashed),
		[]byte(password),
	)
	return err == nil
}

// JWTAuth issues and verifies HS256 tokens carrying the user id and email.
type JWTAuth struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTAuth(secret string, ttl time.Duration) JWTAuth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return JWTAuth{secret: []byte(secret), ttl: ttl}
}

func (a JWTAuth) Issue(user models.User) (string, error) {
	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		jwt.MapClaims{
			"user_id": user.ID,
			"email":   user.Email,
			"exp":     time.Now().Add(a.ttl).Unix(),
		},
	)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenStr, nil
}

func (a JWTAuth) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, &models.UnauthorizedError{Msg: "invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, &models.UnauthorizedError{Msg: "invalid token claims"}
	}
	uid, ok := claims["user_id"].(float64)
	if !ok || uid <= 0 {
		return Identity{}, &models.UnauthorizedError{Msg: "invalid user id in token"}
	}
	email, _ := claims["email"].(string)
	return Identity{UserID: int(uid), Email: email}, nil
}
