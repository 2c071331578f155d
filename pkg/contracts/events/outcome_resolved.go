package events

import "time"

// Evento consumido do tópico "bet_outcomes".
// Entrega at-least-once: o consumidor precisa tratar reentrega sem
// liquidar a mesma aposta duas vezes.
type OutcomeResolved struct {
	BetID      string    `json:"bet_id"`
	EventID    string    `json:"event_id"`
	Outcome    string    `json:"outcome"` // "WIN" | "LOSS" | "PUSH"
	ResolvedAt time.Time `json:"resolved_at"`
	Source     string    `json:"source"`
}
