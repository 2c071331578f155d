package bets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

// Memory implementa o Store em memória para testes e execução local.
// Um único mutex cobre as unidades atômicas aposta+carteira, equivalente
// single-node do escopo de transação do Postgres.
type Memory struct {
	mu     sync.Mutex
	bets   map[string]*Bet
	ledger wallet.Ledger
}

func NewMemory(ledger wallet.Ledger) *Memory {
	return &Memory{bets: make(map[string]*Bet), ledger: ledger}
}

func (m *Memory) PlacePending(ctx context.Context, b *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// espelha o índice único parcial: uma aposta ativa por seleção exata
	for _, ex := range m.bets {
		if ex.UserID == b.UserID && ex.Status != StatusCancelled && ex.Selection.Key() == b.Selection.Key() {
			return ErrConflict
		}
	}

	if _, err := m.ledger.Reserve(ctx, b.UserID, b.StakeCents, b.ID); err != nil {
		return err
	}
	cp := *b
	m.bets[b.ID] = &cp
	return nil
}

func (m *Memory) Cancel(ctx context.Context, userID, betID string) (*Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[betID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.Status != StatusPending {
		return nil, ErrConflict
	}

	if _, err := m.ledger.Release(ctx, b.UserID, b.StakeCents, b.ID, wallet.KindStakeReversal); err != nil {
		return nil, err
	}
	b.Status = StatusCancelled

	cp := *b
	return &cp, nil
}

func (m *Memory) Settle(ctx context.Context, betID string, outcome Outcome) (*Bet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[betID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if b.Status.Terminal() {
		cp := *b
		return &cp, false, nil
	}

	switch outcome {
	case OutcomeWin:
		if _, err := m.ledger.Credit(ctx, b.UserID, b.PotentialPayoutCents, b.ID, wallet.KindPayout); err != nil {
			return nil, false, err
		}
		if _, err := m.ledger.Release(ctx, b.UserID, b.StakeCents, b.ID, wallet.KindForfeit); err != nil {
			return nil, false, err
		}
		b.Status = StatusWon
	case OutcomeLoss:
		if _, err := m.ledger.Release(ctx, b.UserID, b.StakeCents, b.ID, wallet.KindForfeit); err != nil {
			return nil, false, err
		}
		b.Status = StatusLost
	case OutcomePush:
		if _, err := m.ledger.Release(ctx, b.UserID, b.StakeCents, b.ID, wallet.KindStakeReversal); err != nil {
			return nil, false, err
		}
		b.Status = StatusPushed
	default:
		return nil, false, ErrValidation
	}

	now := time.Now().UTC()
	b.SettledAt = &now

	cp := *b
	return &cp, true, nil
}

func (m *Memory) Get(_ context.Context, betID string) (*Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[betID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) ListByUser(_ context.Context, userID string, f Filter, p Page) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Bet
	for _, b := range m.bets {
		if b.UserID != userID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PlacedAt.After(all[j].PlacedAt) })

	if p.Offset >= len(all) {
		return nil, nil
	}
	all = all[p.Offset:]
	if p.Limit > 0 && p.Limit < len(all) {
		all = all[:p.Limit]
	}
	return all, nil
}

func (m *Memory) HasSelection(_ context.Context, userID string, sel Selection) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bets {
		if b.UserID == userID && b.Status != StatusCancelled && b.Selection.Key() == sel.Key() {
			return true, nil
		}
	}
	return false, nil
}
