package dto

import "time"

type BetResponse struct {
	BetID                string     `json:"betId"`
	UserID               string     `json:"userId"`
	LeagueID             string     `json:"leagueId"`
	BetType              string     `json:"betType"`
	EventID              string     `json:"eventId"`
	PickRef              string     `json:"pickRef"`
	StakeCents           int64      `json:"stake_cents"`
	OddsMilli            int64      `json:"odds_milli"`
	PotentialPayoutCents int64      `json:"potential_payout_cents"`
	Status               string     `json:"status"`
	PlacedAt             time.Time  `json:"placedAt"`
	SettledAt            *time.Time `json:"settledAt,omitempty"`
}

type BalanceResponse struct {
	UserID         string `json:"userId"`
	WalletID       string `json:"walletId"`
	AvailableCents int64  `json:"available_cents"`
	LockedCents    int64  `json:"locked_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type TransactionResponse struct {
	ID                  string    `json:"id"`
	AmountCents         int64     `json:"amount_cents"`
	Kind                string    `json:"kind"`
	RelatedBetID        string    `json:"relatedBetId,omitempty"`
	AvailableAfterCents int64     `json:"available_after_cents"`
	LockedAfterCents    int64     `json:"locked_after_cents"`
	CreatedAt           time.Time `json:"createdAt"`
}

type OddsResponse struct {
	BetType   string `json:"betType"`
	EventID   string `json:"eventId"`
	PickRef   string `json:"pickRef"`
	OddsMilli int64  `json:"odds_milli"`
}

type PayoutResponse struct {
	PayoutCents int64 `json:"payout_cents"`
}

type RecommendStakeResponse struct {
	RecommendedCents int64 `json:"recommended_cents"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
