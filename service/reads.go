package service

import (
	"context"
	"time"

	"bitslow/identity"
	"bitslow/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type CoinView struct {
	ID        int             `json:"coinId"`
	Bit1      int             `json:"bit1"`
	Bit2      int             `json:"bit2"`
	Bit3      int             `json:"bit3"`
	BitSlow   string          `json:"bitslow"`
	Value     decimal.Decimal `json:"value"`
	OwnerID   *int            `json:"ownerId"`
	OwnerName *string         `json:"ownerName"`
	Available bool            `json:"available"`
	CreatedAt time.Time       `json:"createdAt"`
}

type TransactionView struct {
	ID         int             `json:"id"`
	CoinID     int             `json:"coinId"`
	BitSlow    string          `json:"bitslow"`
	BuyerID    int             `json:"buyerId"`
	BuyerName  string          `json:"buyerName"`
	SellerID   *int            `json:"sellerId"`
	SellerName *string         `json:"sellerName"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"transactionDate"`
}

type CoinsResponse struct {
	Items      []CoinView `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

type TransactionsResponse struct {
	Items      []TransactionView `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

type StatsResponse struct {
	TotalTransactions int             `json:"totalTransactions"`
	CoinsOwned        int             `json:"coinsOwned"`
	TotalValue        decimal.Decimal `json:"totalValue"`
}

// NormalizePage fills in defaults and clamps the limit.
func NormalizePage(p models.Page) models.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}

func (s Service) ListCoins(
	ctx context.Context,
	filter models.CoinFilter,
	page models.Page,
) (CoinsResponse, error) {
	if filter.MinValue != nil && filter.MaxValue != nil && filter.MinValue.GreaterThan(*filter.MaxValue) {
		return CoinsResponse{}, &models.ValidationError{Msg: "min_value is greater than max_value"}
	}
	page = NormalizePage(page)
	res, err := s.repo.ListCoins(ctx, filter, page)
	if err != nil {
		return CoinsResponse{}, s.fail("list_coins", err)
	}

	items := make([]CoinView, 0, len(res.Items))
	for _, c := range res.Items {
		items = append(items, ViewCoin(c))
	}
	return CoinsResponse{
		Items:      items,
		Total:      res.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages(res.Total, page.Limit),
	}, nil
}

func (s Service) ListTransactions(
	ctx context.Context,
	filter models.TransactionFilter,
	page models.Page,
) (TransactionsResponse, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return TransactionsResponse{}, &models.ValidationError{Msg: "from is after to"}
	}
	page = NormalizePage(page)
	res, err := s.repo.ListTransactions(ctx, filter, page)
	if err != nil {
		return TransactionsResponse{}, s.fail("list_transactions", err)
	}

	items := make([]TransactionView, 0, len(res.Items))
	for _, t := range res.Items {
		items = append(items, TransactionView{
			ID:         t.ID,
			CoinID:     t.CoinID,
			BitSlow:    identity.Encode(identity.Triple{Bit1: t.Bit1, Bit2: t.Bit2, Bit3: t.Bit3}),
			BuyerID:    t.BuyerID,
			BuyerName:  t.BuyerName,
			SellerID:   t.SellerID,
			SellerName: t.SellerName,
			Amount:     t.Amount,
			Date:       t.CreatedAt,
		})
	}
	return TransactionsResponse{
		Items:      items,
		Total:      res.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages(res.Total, page.Limit),
	}, nil
}

// CoinByBitSlow resolves a coin from its BitSlow identity.
func (s Service) CoinByBitSlow(ctx context.Context, bitslow string) (CoinView, error) {
	triple, ok := identity.Decode(bitslow)
	if !ok {
		return CoinView{}, &models.NotFoundError{Msg: "unknown bitslow"}
	}
	coin, err := s.repo.GetCoinByTriple(ctx, triple.Bit1, triple.Bit2, triple.Bit3)
	if err != nil {
		return CoinView{}, s.fail("coin_by_bitslow", err)
	}
	return ViewCoin(coin), nil
}

func (s Service) UserStats(ctx context.Context, userID int) (StatsResponse, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return StatsResponse{}, s.fail("user_stats", err)
	}
	stats, err := s.repo.GetUserStats(ctx, userID)
	if err != nil {
		return StatsResponse{}, s.fail("user_stats", err)
	}
	return StatsResponse{
		TotalTransactions: stats.TotalTransactions,
		CoinsOwned:        stats.CoinsOwned,
		TotalValue:        stats.TotalValue,
	}, nil
}

func ViewCoin(c models.Coin) CoinView {
	return CoinView{
		ID:        c.ID,
		Bit1:      c.Bit1,
		Bit2:      c.Bit2,
		Bit3:      c.Bit3,
		BitSlow:   identity.Encode(identity.Triple{Bit1: c.Bit1, Bit2: c.Bit2, Bit3: c.Bit3}),
		Value:     c.Value,
		OwnerID:   c.OwnerID,
		OwnerName: c.OwnerName,
		Available: c.OwnerID == nil,
		CreatedAt: c.CreatedAt,
	}
}
