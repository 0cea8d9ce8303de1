package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID       int
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
}

// Coin is one BitSlow coin. OwnerID is nil while the coin is available for
// purchase.
type Coin struct {
	ID        int
	Bit1      int
	Bit2      int
	Bit3      int
	Value     decimal.Decimal
	OwnerID   *int
	OwnerName *string
	CreatedAt time.Time
}

// Transaction is an append-only ledger entry. SellerID is nil for coins that
// had no previous owner.
type Transaction struct {
	ID         int
	CoinID     int
	BuyerID    int
	SellerID   *int
	BuyerName  string
	SellerName *string
	Amount     decimal.Decimal
	Bit1       int
	Bit2       int
	Bit3       int
	CreatedAt  time.Time
}

type CoinFilter struct {
	OwnerID       *int
	AvailableOnly bool
	MinValue      *decimal.Decimal
	MaxValue      *decimal.Decimal
}

type TransactionFilter struct {
	UserID *int
	CoinID *int
	From   *time.Time
	To     *time.Time
}

type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

type CoinPage struct {
	Items []Coin
	Total int
}

type TransactionPage struct {
	Items []Transaction
	Total int
}

type UserStats struct {
	TotalTransactions int
	CoinsOwned        int
	TotalValue        decimal.Decimal
}
