package dto

type PlaceBetRequest struct {
	UserID     string `json:"userId"`
	LeagueID   string `json:"leagueId"`
	BetType    string `json:"betType"` // MATCHUP | GAME
	EventID    string `json:"eventId"`
	PickRef    string `json:"pickRef"`
	StakeCents int64  `json:"stake_cents"`
}

type CancelBetRequest struct {
	UserID string `json:"userId"`
}

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}

type PayoutRequest struct {
	StakeCents int64 `json:"stake_cents"`
	OddsMilli  int64 `json:"odds_milli"`
}

type RecommendStakeRequest struct {
	BankrollCents  int64   `json:"bankroll_cents"`
	OddsMilli      int64   `json:"odds_milli"`
	WinProbability float64 `json:"win_probability"`
}
