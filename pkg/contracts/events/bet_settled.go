package events

import "time"

// Evento emitido pelo settlement-worker após aplicar uma transição terminal.
// Não é emitido para reentregas ignoradas (no-op idempotente).
type BetSettled struct {
	BetID       string    `json:"betId"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"` // "WON" | "LOST" | "PUSHED"
	PayoutCents int64     `json:"payout_cents,omitempty"`
	Ts          time.Time `json:"ts"`
}
