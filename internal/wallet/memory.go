package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa o Ledger em memória, com um mutex por usuário.
// Usado nos testes e em execução single-node de desenvolvimento; a
// serialização por carteira que o Postgres resolve com row lock aqui é
// resolvida com mutex keyed por userID.
type Memory struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	wallets map[string]*Wallet
	entries map[string][]Transaction // userID -> lançamentos, mais antigos primeiro
}

func NewMemory() *Memory {
	return &Memory{
		locks:   make(map[string]*sync.Mutex),
		wallets: make(map[string]*Wallet),
		entries: make(map[string][]Transaction),
	}
}

// userLock retorna (criando se preciso) o mutex da carteira do usuário
func (m *Memory) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

func (m *Memory) getOrCreate(userID string) *Wallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &Wallet{ID: uuid.NewString(), UserID: userID, UpdatedAt: time.Now().UTC()}
		m.wallets[userID] = w
	}
	return w
}

func (m *Memory) append(w *Wallet, amountCents int64, kind Kind, relatedBetID string) {
	m.entries[w.UserID] = append(m.entries[w.UserID], Transaction{
		ID:                  uuid.NewString(),
		WalletID:            w.ID,
		AmountCents:         amountCents,
		Kind:                kind,
		RelatedBetID:        relatedBetID,
		AvailableAfterCents: w.AvailableCents,
		LockedAfterCents:    w.LockedCents,
		CreatedAt:           time.Now().UTC(),
	})
}

func (m *Memory) GetOrCreate(_ context.Context, userID string) (*Wallet, error) {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	w := m.getOrCreate(userID)
	cp := *w
	return &cp, nil
}

func (m *Memory) Reserve(_ context.Context, userID string, amountCents int64, relatedBetID string) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	w := m.getOrCreate(userID)
	if w.AvailableCents < amountCents {
		return nil, ErrInsufficientFunds
	}
	w.AvailableCents -= amountCents
	w.LockedCents += amountCents
	w.UpdatedAt = time.Now().UTC()
	m.append(w, -amountCents, KindStake, relatedBetID)

	cp := *w
	return &cp, nil
}

func (m *Memory) Release(_ context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if kind != KindStakeReversal && kind != KindForfeit {
		return nil, ErrInvalidAmount
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	w := m.getOrCreate(userID)
	if w.LockedCents < amountCents {
		return nil, ErrInvariantViolation
	}
	w.LockedCents -= amountCents
	amount := -amountCents
	if kind == KindStakeReversal {
		w.AvailableCents += amountCents
		amount = amountCents
	}
	w.UpdatedAt = time.Now().UTC()
	m.append(w, amount, kind, relatedBetID)

	cp := *w
	return &cp, nil
}

func (m *Memory) Credit(_ context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if kind != KindPurchase && kind != KindPayout {
		return nil, ErrInvalidAmount
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	w := m.getOrCreate(userID)
	w.AvailableCents += amountCents
	w.UpdatedAt = time.Now().UTC()
	m.append(w, amountCents, kind, relatedBetID)

	cp := *w
	return &cp, nil
}

func (m *Memory) Transactions(_ context.Context, userID string, limit, offset int) ([]Transaction, error) {
	limit, offset = clampPage(limit, offset)

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	all := m.entries[userID]
	// mais recentes primeiro
	out := make([]Transaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
