package bets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/external"
	"github.com/radieske/fantasy-bet-core/internal/pricing"
	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

// Quote é o preço corrente de uma seleção, resolvido pelo catálogo
type Quote struct {
	OddsMilli int64
	StartsAt  time.Time
}

// Quoter resolve odds atuais de uma seleção.
// ErrInvalidSelection quando o evento/lado não existe,
// ErrMarketClosed quando o evento já começou.
type Quoter interface {
	Quote(ctx context.Context, sel Selection) (*Quote, error)
}

// Config do ciclo de vida de apostas
type Config struct {
	MinStakeCents int64
	MaxStakeCents int64
	Retries       int // tentativas extras para falhas transitórias de storage
}

// Manager orquestra o ciclo de vida: é o único escritor de registros Bet.
// Validação e resolução de odds acontecem aqui; as unidades atômicas
// aposta+carteira ficam no Store.
type Manager struct {
	log      *zap.Logger
	store    Store
	quoter   Quoter
	pricing  *pricing.Engine
	schedule external.ScheduleProvider
	cfg      Config

	OnPlaced    func()              // métricas (counter++)
	OnCancelled func()              // métricas
	OnSettled   func(Outcome, bool) // métricas por resultado; bool = aplicado
}

func NewManager(log *zap.Logger, store Store, quoter Quoter, eng *pricing.Engine, schedule external.ScheduleProvider, cfg Config) *Manager {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &Manager{log: log, store: store, quoter: quoter, pricing: eng, schedule: schedule, cfg: cfg}
}

// PlaceBet valida, congela as odds correntes e reserva stake + insere a
// aposta numa unidade atômica. Odds nunca são recalculadas depois daqui.
func (m *Manager) PlaceBet(ctx context.Context, userID, leagueID string, sel Selection, stakeCents int64) (*Bet, error) {
	if userID == "" || leagueID == "" {
		return nil, fmt.Errorf("%w: userId and leagueId required", ErrValidation)
	}
	if !sel.BetType.Valid() || sel.EventID == "" || sel.PickRef == "" {
		return nil, fmt.Errorf("%w: incomplete selection", ErrValidation)
	}
	if stakeCents < m.cfg.MinStakeCents || stakeCents > m.cfg.MaxStakeCents {
		return nil, fmt.Errorf("%w: stake out of bounds [%d,%d]", ErrValidation, m.cfg.MinStakeCents, m.cfg.MaxStakeCents)
	}

	q, err := m.quoter.Quote(ctx, sel)
	if err != nil {
		return nil, err
	}

	payout, err := m.pricing.PayoutCents(stakeCents, q.OddsMilli)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	b := &Bet{
		ID:                   uuid.NewString(),
		UserID:               userID,
		LeagueID:             leagueID,
		Selection:            sel,
		StakeCents:           stakeCents,
		OddsMilli:            q.OddsMilli,
		PotentialPayoutCents: payout,
		Status:               StatusPending,
		PlacedAt:             time.Now().UTC(),
	}

	if err := m.withRetry(ctx, func() error { return m.store.PlacePending(ctx, b) }); err != nil {
		return nil, err
	}

	if m.OnPlaced != nil {
		m.OnPlaced()
	}
	m.log.Info("bet placed",
		zap.String("betId", b.ID),
		zap.String("userId", userID),
		zap.String("selection", sel.Key()),
		zap.Int64("stake_cents", stakeCents),
		zap.Int64("odds_milli", b.OddsMilli),
	)
	return b, nil
}

// CancelBet devolve o stake de uma aposta PENDING. A janela de cancelamento
// fecha junto com o mercado: depois do início do evento não cancela mais.
func (m *Manager) CancelBet(ctx context.Context, userID, betID string) (*Bet, error) {
	b, err := m.store.Get(ctx, betID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.Status != StatusPending {
		return nil, ErrConflict
	}

	ev, err := m.schedule.GetEvent(ctx, b.EventID)
	if err != nil {
		if errors.Is(err, external.ErrEventNotFound) {
			// evento sumiu da agenda: assume janela fechada em vez de liberar cancelamento
			return nil, ErrMarketClosed
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if ev.Started(time.Now().UTC()) {
		return nil, ErrMarketClosed
	}

	var cancelled *Bet
	if err := m.withRetry(ctx, func() error {
		cancelled, err = m.store.Cancel(ctx, userID, betID)
		return err
	}); err != nil {
		return nil, err
	}

	if m.OnCancelled != nil {
		m.OnCancelled()
	}
	m.log.Info("bet cancelled", zap.String("betId", betID), zap.String("userId", userID))
	return cancelled, nil
}

// Settle aplica o resultado entregue pelo feed externo. Reentrega após
// status terminal é no-op garantido (applied=false), nunca paga duas vezes.
func (m *Manager) Settle(ctx context.Context, betID string, outcome Outcome) (*Bet, bool, error) {
	if !outcome.Valid() {
		return nil, false, fmt.Errorf("%w: unknown outcome %q", ErrValidation, outcome)
	}

	var (
		b       *Bet
		applied bool
	)
	if err := m.withRetry(ctx, func() error {
		var err error
		b, applied, err = m.store.Settle(ctx, betID, outcome)
		return err
	}); err != nil {
		if errors.Is(err, wallet.ErrInvariantViolation) {
			m.log.Error("wallet invariant violated during settlement",
				zap.String("betId", betID), zap.String("outcome", string(outcome)))
		}
		return nil, false, err
	}

	if m.OnSettled != nil {
		m.OnSettled(outcome, applied)
	}
	if applied {
		m.log.Info("bet settled",
			zap.String("betId", betID),
			zap.String("status", string(b.Status)),
			zap.Int64("payout_cents", b.PotentialPayoutCents),
		)
	}
	return b, applied, nil
}

func (m *Manager) GetBet(ctx context.Context, betID string) (*Bet, error) {
	return m.store.Get(ctx, betID)
}

// ListBets retorna as apostas do usuário com filtro de status e paginação
func (m *Manager) ListBets(ctx context.Context, userID string, f Filter, p Page) ([]Bet, error) {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return m.store.ListByUser(ctx, userID, f, p)
}

// withRetry repete a operação para falhas transitórias de storage, com
// backoff linear. Erros de domínio não são repetidos; esgotadas as
// tentativas, o erro vira ErrInternal e nenhuma mutação parcial fica visível
// (as unidades atômicas do Store garantem rollback completo).
func (m *Manager) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= m.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(100*attempt) * time.Millisecond):
			}
		}
		if err = op(); err == nil || !isTransient(err) {
			return err
		}
		m.log.Warn("transient storage failure, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// isTransient: tudo que não é erro de domínio conhecido é tratável por retry
func isTransient(err error) bool {
	for _, sentinel := range []error{
		ErrValidation, ErrNotFound, ErrForbidden, ErrConflict,
		ErrMarketClosed, ErrInvalidSelection,
		wallet.ErrInsufficientFunds, wallet.ErrInvalidAmount, wallet.ErrInvariantViolation,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
