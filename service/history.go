package service

import (
	"context"
	"sort"
	"time"

	"bitslow/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventGenerated EventKind = "generated"
	EventTransfer  EventKind = "transfer"
	EventCurrent   EventKind = "current"
)

const (
	OriginalIssuer       = "Original Issuer"
	AvailableForPurchase = "Available for Purchase"
)

type OwnershipEvent struct {
	Kind            EventKind        `json:"type"`
	OwnerID         *int             `json:"ownerId"`
	Owner           string           `json:"owner"`
	PreviousOwnerID *int             `json:"previousOwnerId"`
	PreviousOwner   string           `json:"previousOwner"`
	TransactionID   *int             `json:"transactionId,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Timestamp       *time.Time       `json:"timestamp,omitempty"`
}

// History rebuilds the ownership timeline of a coin from its transactions.
func (s Service) History(ctx context.Context, coinID int) ([]OwnershipEvent, error) {
	if coinID <= 0 {
		return nil, &models.ValidationError{Msg: "invalid coin id"}
	}
	coin, err := s.repo.GetCoin(ctx, coinID)
	if err != nil {
		return nil, s.fail("history", err)
	}
	txs, err := s.repo.GetCoinTransactions(ctx, coinID)
	if err != nil {
		return nil, s.fail("history", err)
	}

	if n := len(txs); n > 0 && !sameOwner(coin.OwnerID, &txs[n-1].BuyerID) {
		s.log.Warn("coin owner differs from last ledger buyer",
			zap.Int("coin_id", coinID),
			zap.Int("last_buyer_id", txs[n-1].BuyerID),
		)
	}
	return ProjectHistory(coin, txs), nil
}

// ProjectHistory classifies the first transaction as the mint, every later
// one as a transfer, and closes with the coin's present owner. The previous
// owner of the closing event is the seller of the last transaction.
func ProjectHistory(coin models.Coin, txs []models.Transaction) []OwnershipEvent {
	ordered := make([]models.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	events := make([]OwnershipEvent, 0, len(ordered)+1)
	previousID, previous := (*int)(nil), OriginalIssuer
	for i, t := range ordered {
		kind := EventTransfer
		if i == 0 {
			kind = EventGenerated
		}
		buyerID, txID, amount, at := t.BuyerID, t.ID, t.Amount, t.CreatedAt

		sellerID, seller := (*int)(nil), OriginalIssuer
		if kind == EventTransfer && t.SellerID != nil {
			id := *t.SellerID
			sellerID = &id
			if t.SellerName != nil {
				seller = *t.SellerName
			}
		}
		events = append(events, OwnershipEvent{
			Kind:            kind,
			OwnerID:         &buyerID,
			Owner:           t.BuyerName,
			PreviousOwnerID: sellerID,
			PreviousOwner:   seller,
			TransactionID:   &txID,
			Amount:          &amount,
			Timestamp:       &at,
		})
		previousID, previous = sellerID, seller
	}

	current := OwnershipEvent{
		Kind:            EventCurrent,
		Owner:           AvailableForPurchase,
		PreviousOwnerID: previousID,
		PreviousOwner:   previous,
	}
	if coin.OwnerID != nil {
		id := *coin.OwnerID
		current.OwnerID = &id
		current.Owner = ownerName(coin, ordered)
	}
	return append(events, current)
}

func ownerName(coin models.Coin, ordered []models.Transaction) string {
	if coin.OwnerName != nil {
		return *coin.OwnerName
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].BuyerID == *coin.OwnerID {
			return ordered[i].BuyerName
		}
	}
	return ""
}

func sameOwner(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
