package bets

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

// Postgres implementa o Store compondo, na mesma transação, a mutação da
// carteira (via variantes *In do ledger) e a escrita da aposta. O row lock
// da carteira serializa colocações concorrentes do mesmo usuário; o FOR
// UPDATE na linha da aposta serializa cancelamento vs liquidação.
type Postgres struct {
	db     *sql.DB
	ledger *wallet.Postgres
}

func NewPostgres(db *sql.DB, ledger *wallet.Postgres) *Postgres {
	return &Postgres{db: db, ledger: ledger}
}

// PlacePending reserva o stake e insere a aposta numa única transação.
// Se o insert falhar, o rollback desfaz a reserva junto: nunca há
// reserva órfã nem aposta sem stake bloqueado.
func (p *Postgres) PlacePending(ctx context.Context, b *Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := p.ledger.ReserveIn(ctx, tx, b.UserID, b.StakeCents, b.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, league_id, bet_type, event_id, pick_ref,
		                  stake_cents, odds_milli, potential_payout_cents, status, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		b.ID, b.UserID, b.LeagueID, string(b.BetType), b.EventID, b.PickRef,
		b.StakeCents, b.OddsMilli, b.PotentialPayoutCents, string(b.Status), b.PlacedAt,
	); err != nil {
		// índice único parcial: já existe aposta ativa nessa seleção
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	return tx.Commit()
}

// isUniqueViolation detecta SQLSTATE 23505 (unique_violation) do Postgres
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Cancel faz o CAS PENDING -> CANCELLED e devolve o stake na mesma transação
func (p *Postgres) Cancel(ctx context.Context, userID, betID string) (*Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := getForUpdate(ctx, tx, betID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.Status != StatusPending {
		return nil, ErrConflict
	}

	if _, err := p.ledger.ReleaseIn(ctx, tx, b.UserID, b.StakeCents, b.ID, wallet.KindStakeReversal); err != nil {
		return nil, err
	}

	b.Status = StatusCancelled
	if _, err := tx.ExecContext(ctx,
		`UPDATE bets SET status=$1, updated_at=NOW() WHERE id=$2 AND status='PENDING'`,
		string(StatusCancelled), b.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// Settle aplica o resultado do feed. Reentrega (status terminal) retorna
// applied=false sem tocar a carteira (o feed é at-least-once).
func (p *Postgres) Settle(ctx context.Context, betID string, outcome Outcome) (*Bet, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	b, err := getForUpdate(ctx, tx, betID)
	if err != nil {
		return nil, false, err
	}
	if b.Status.Terminal() {
		return b, false, tx.Commit()
	}

	switch outcome {
	case OutcomeWin:
		// o payout já inclui o stake; o bloqueio é só baixado, nunca re-creditado
		if _, err := p.ledger.CreditIn(ctx, tx, b.UserID, b.PotentialPayoutCents, b.ID, wallet.KindPayout); err != nil {
			return nil, false, err
		}
		if _, err := p.ledger.ReleaseIn(ctx, tx, b.UserID, b.StakeCents, b.ID, wallet.KindForfeit); err != nil {
			return nil, false, err
		}
		b.Status = StatusWon
	case OutcomeLoss:
		if _, err := p.ledger.ReleaseIn(ctx, tx, b.UserID, b.StakeCents, b.ID, wallet.KindForfeit); err != nil {
			return nil, false, err
		}
		b.Status = StatusLost
	case OutcomePush:
		if _, err := p.ledger.ReleaseIn(ctx, tx, b.UserID, b.StakeCents, b.ID, wallet.KindStakeReversal); err != nil {
			return nil, false, err
		}
		b.Status = StatusPushed
	default:
		return nil, false, ErrValidation
	}

	now := time.Now().UTC()
	b.SettledAt = &now
	if _, err := tx.ExecContext(ctx,
		`UPDATE bets SET status=$1, settled_at=$2, updated_at=NOW() WHERE id=$3 AND status='PENDING'`,
		string(b.Status), now, b.ID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Postgres) Get(ctx context.Context, betID string) (*Bet, error) {
	return scanBet(p.db.QueryRowContext(ctx, selectBet+` WHERE id=$1`, betID))
}

func (p *Postgres) ListByUser(ctx context.Context, userID string, f Filter, pg Page) ([]Bet, error) {
	q := selectBet + ` WHERE user_id=$1`
	args := []any{userID}
	if f.Status != "" {
		q += ` AND status=$2`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY placed_at DESC, id DESC`
	args = append(args, pg.Limit, pg.Offset)
	if f.Status != "" {
		q += ` LIMIT $3 OFFSET $4`
	} else {
		q += ` LIMIT $2 OFFSET $3`
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (p *Postgres) HasSelection(ctx context.Context, userID string, sel Selection) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bets
			WHERE user_id=$1 AND bet_type=$2 AND event_id=$3 AND pick_ref=$4
			  AND status <> 'CANCELLED')`,
		userID, string(sel.BetType), sel.EventID, sel.PickRef).Scan(&exists)
	return exists, err
}

const selectBet = `
	SELECT id, user_id, league_id, bet_type, event_id, pick_ref,
	       stake_cents, odds_milli, potential_payout_cents, status, placed_at, settled_at
	FROM bets`

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(r rowScanner) (*Bet, error) {
	var b Bet
	var betType, status string
	var settled sql.NullTime
	err := r.Scan(&b.ID, &b.UserID, &b.LeagueID, &betType, &b.EventID, &b.PickRef,
		&b.StakeCents, &b.OddsMilli, &b.PotentialPayoutCents, &status, &b.PlacedAt, &settled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.BetType = Type(betType)
	b.Status = Status(status)
	if settled.Valid {
		t := settled.Time
		b.SettledAt = &t
	}
	return &b, nil
}

func getForUpdate(ctx context.Context, tx *sql.Tx, betID string) (*Bet, error) {
	return scanBet(tx.QueryRowContext(ctx, selectBet+` WHERE id=$1 FOR UPDATE`, betID))
}
