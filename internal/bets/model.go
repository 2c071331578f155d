package bets

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Type distingue aposta em confronto de fantasy (MATCHUP) e em jogo real (GAME)
type Type string

const (
	TypeMatchup Type = "MATCHUP"
	TypeGame    Type = "GAME"
)

func (t Type) Valid() bool { return t == TypeMatchup || t == TypeGame }

// Status é a máquina de estados da aposta:
// PENDING -> {WON, LOST, PUSHED, CANCELLED}, todos terminais.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusWon       Status = "WON"
	StatusLost      Status = "LOST"
	StatusPushed    Status = "PUSHED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Terminal() bool { return s != StatusPending }

// Outcome é o resultado entregue pelo feed de apuração externo
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	// PUSH: evento anulado/empatado sem lado vencedor; stake devolvido
	OutcomePush Outcome = "PUSH"
)

func (o Outcome) Valid() bool { return o == OutcomeWin || o == OutcomeLoss || o == OutcomePush }

// Selection identifica o que foi apostado: o evento e o lado escolhido
type Selection struct {
	BetType Type   `json:"betType"`
	EventID string `json:"eventId"`
	PickRef string `json:"pickRef"` // participante escolhido (roster ou time)
}

// Key é a identidade da seleção, usada para bloquear aposta duplicada idêntica
func (s Selection) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.BetType, s.EventID, s.PickRef)
}

// Bet é o registro persistido. Odds são congeladas no momento da colocação
// (OddsMilli) e nunca recalculadas: payout = stake * odds da colocação.
type Bet struct {
	ID       string
	UserID   string
	LeagueID string
	Selection
	StakeCents           int64
	OddsMilli            int64
	PotentialPayoutCents int64
	Status               Status
	PlacedAt             time.Time
	SettledAt            *time.Time
}

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("bet not found")
	ErrForbidden        = errors.New("bet belongs to another user")
	ErrConflict         = errors.New("bet is not pending")
	ErrMarketClosed     = errors.New("market closed")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInternal         = errors.New("internal error")
)

type Filter struct {
	Status Status // vazio = todos
}

type Page struct {
	Limit  int
	Offset int
}

// Store persiste apostas e executa as unidades atômicas que tocam
// aposta + carteira juntas. Transições de status são sempre
// compare-and-set sobre PENDING, no mesmo escopo que a mutação da carteira.
type Store interface {
	// PlacePending reserva o stake e insere a aposta PENDING atomicamente.
	PlacePending(ctx context.Context, b *Bet) error

	// Cancel faz PENDING -> CANCELLED e devolve o stake (STAKE_REVERSAL).
	// ErrNotFound / ErrForbidden / ErrConflict conforme o caso.
	Cancel(ctx context.Context, userID, betID string) (*Bet, error)

	// Settle aplica o resultado. Reentrega em status terminal é no-op:
	// retorna a aposta e applied=false, sem tocar a carteira.
	Settle(ctx context.Context, betID string, outcome Outcome) (bet *Bet, applied bool, err error)

	Get(ctx context.Context, betID string) (*Bet, error)
	ListByUser(ctx context.Context, userID string, f Filter, p Page) ([]Bet, error)

	// HasSelection informa se o usuário já tem aposta não cancelada
	// nessa seleção exata.
	HasSelection(ctx context.Context, userID string, sel Selection) (bool, error)
}
