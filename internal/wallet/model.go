package wallet

import (
	"context"
	"errors"
	"time"
)

// Kind classifica cada lançamento do ledger.
type Kind string

const (
	KindPurchase      Kind = "PURCHASE"       // crédito externo (compra de tokens)
	KindStake         Kind = "STAKE"          // reserva de stake (available -> locked)
	KindStakeReversal Kind = "STAKE_REVERSAL" // devolução de stake (locked -> available)
	KindPayout        Kind = "PAYOUT"         // crédito de prêmio (available +)
	KindForfeit       Kind = "FORFEIT"        // stake perdido (locked -, sem devolução)
)

// Wallet é a carteira de tokens de um usuário. Uma por usuário,
// criada de forma preguiçosa no primeiro acesso.
// Invariante: available e locked nunca ficam negativos e
// available+locked só muda via PURCHASE, PAYOUT ou FORFEIT.
type Wallet struct {
	ID             string
	UserID         string
	AvailableCents int64
	LockedCents    int64
	UpdatedAt      time.Time
}

// TotalCents retorna o saldo total (disponível + bloqueado)
func (w *Wallet) TotalCents() int64 { return w.AvailableCents + w.LockedCents }

// Transaction é um lançamento imutável do ledger (append-only).
// AmountCents é sinalizado: positivo para créditos, negativo para débitos.
type Transaction struct {
	ID                  string
	WalletID            string
	AmountCents         int64
	Kind                Kind
	RelatedBetID        string // vazio quando não há aposta associada (ex: PURCHASE)
	AvailableAfterCents int64
	LockedAfterCents    int64
	CreatedAt           time.Time
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")

	// ErrInvariantViolation indica inconsistência interna (ex: release maior
	// que o saldo bloqueado). Nunca deve acontecer; não é erro de usuário.
	ErrInvariantViolation = errors.New("wallet invariant violation")
)

// clampPage normaliza a paginação do histórico: os valores chegam crus da
// query string e nunca podem derrubar a listagem
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Ledger é o único componente autorizado a mutar saldos.
// Todas as mutações de uma mesma carteira são serializadas
// (row lock no Postgres, mutex por usuário na implementação em memória).
type Ledger interface {
	GetOrCreate(ctx context.Context, userID string) (*Wallet, error)

	// Reserve move amount de available para locked e registra STAKE.
	// Falha com ErrInsufficientFunds quando available < amount.
	Reserve(ctx context.Context, userID string, amountCents int64, relatedBetID string) (*Wallet, error)

	// Release remove amount de locked: com KindStakeReversal devolve para
	// available (cancelamento/push); com KindForfeit apenas baixa (derrota).
	Release(ctx context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error)

	// Credit soma amount em available (PURCHASE ou PAYOUT).
	Credit(ctx context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error)

	// Transactions lista o histórico do ledger, mais recente primeiro.
	Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
}
