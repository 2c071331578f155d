package wallet

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa o Ledger sobre Postgres.
// Serialização por carteira via SELECT ... FOR UPDATE na linha do usuário;
// cada operação pública roda em uma transação própria.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetOrCreate retorna a carteira do usuário, criando com saldo zero se não existir
func (p *Postgres) GetOrCreate(ctx context.Context, userID string) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := getOrCreateIn(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reserve move amount de available para locked dentro de uma transação própria
func (p *Postgres) Reserve(ctx context.Context, userID string, amountCents int64, relatedBetID string) (*Wallet, error) {
	return p.inTx(ctx, func(tx *sql.Tx) (*Wallet, error) {
		return p.ReserveIn(ctx, tx, userID, amountCents, relatedBetID)
	})
}

// Release remove amount de locked (devolvendo ou não, conforme o kind)
func (p *Postgres) Release(ctx context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	return p.inTx(ctx, func(tx *sql.Tx) (*Wallet, error) {
		return p.ReleaseIn(ctx, tx, userID, amountCents, relatedBetID, kind)
	})
}

// Credit soma amount em available
func (p *Postgres) Credit(ctx context.Context, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	return p.inTx(ctx, func(tx *sql.Tx) (*Wallet, error) {
		return p.CreditIn(ctx, tx, userID, amountCents, relatedBetID, kind)
	})
}

// inTx executa fn numa transação e faz commit/rollback
func (p *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) (*Wallet, error)) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := fn(tx)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

// ReserveIn é a variante com escopo de transação explícito: permite que o
// orquestrador de apostas componha reserva + insert da aposta numa única
// unidade atômica. O row lock da carteira é adquirido aqui.
func (p *Postgres) ReserveIn(ctx context.Context, tx *sql.Tx, userID string, amountCents int64, relatedBetID string) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	w, err := getOrCreateIn(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	if w.AvailableCents < amountCents {
		return nil, ErrInsufficientFunds
	}

	w.AvailableCents -= amountCents
	w.LockedCents += amountCents

	if err := updateBalancesIn(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := appendEntryIn(ctx, tx, w, -amountCents, KindStake, relatedBetID); err != nil {
		return nil, err
	}
	return w, nil
}

// ReleaseIn baixa amount do saldo bloqueado. KindStakeReversal devolve para
// available; KindForfeit apenas remove. locked < amount é violação de
// invariante (erro interno fatal, nunca exposto como erro de usuário).
func (p *Postgres) ReleaseIn(ctx context.Context, tx *sql.Tx, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if kind != KindStakeReversal && kind != KindForfeit {
		return nil, ErrInvalidAmount
	}

	w, err := getOrCreateIn(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	if w.LockedCents < amountCents {
		return nil, ErrInvariantViolation
	}

	w.LockedCents -= amountCents
	amount := -amountCents
	if kind == KindStakeReversal {
		w.AvailableCents += amountCents
		amount = amountCents
	}

	if err := updateBalancesIn(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := appendEntryIn(ctx, tx, w, amount, kind, relatedBetID); err != nil {
		return nil, err
	}
	return w, nil
}

// CreditIn soma amount em available (PURCHASE ou PAYOUT)
func (p *Postgres) CreditIn(ctx context.Context, tx *sql.Tx, userID string, amountCents int64, relatedBetID string, kind Kind) (*Wallet, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if kind != KindPurchase && kind != KindPayout {
		return nil, ErrInvalidAmount
	}

	w, err := getOrCreateIn(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	w.AvailableCents += amountCents

	if err := updateBalancesIn(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := appendEntryIn(ctx, tx, w, amountCents, kind, relatedBetID); err != nil {
		return nil, err
	}
	return w, nil
}

// Transactions lista lançamentos do ledger do usuário, mais recentes primeiro
func (p *Postgres) Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	limit, offset = clampPage(limit, offset)

	const q = `
		SELECT l.id, l.wallet_id, l.amount_cents, l.kind, COALESCE(l.related_bet_id, ''),
		       l.available_after_cents, l.locked_after_cents, l.created_at
		FROM wallet_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := p.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.AmountCents, &t.Kind, &t.RelatedBetID,
			&t.AvailableAfterCents, &t.LockedAfterCents, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// getOrCreateIn busca a carteira do usuário (com ou sem FOR UPDATE),
// criando com saldo zero quando não existe
func getOrCreateIn(ctx context.Context, tx *sql.Tx, userID string, forUpdate bool) (*Wallet, error) {
	q := `SELECT id, available_cents, locked_cents, updated_at FROM wallets WHERE user_id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	w := &Wallet{UserID: userID}
	err := tx.QueryRowContext(ctx, q, userID).Scan(&w.ID, &w.AvailableCents, &w.LockedCents, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		w.ID = uuid.NewString()
		w.UpdatedAt = time.Now().UTC()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, available_cents, locked_cents, version, updated_at)
			 VALUES($1,$2,0,0,1,$3)`,
			w.ID, userID, w.UpdatedAt); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// updateBalancesIn grava os novos saldos da carteira
func updateBalancesIn(ctx context.Context, tx *sql.Tx, w *Wallet) error {
	w.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET available_cents=$1, locked_cents=$2, version=version+1, updated_at=$3 WHERE id=$4`,
		w.AvailableCents, w.LockedCents, w.UpdatedAt, w.ID)
	return err
}

// appendEntryIn insere o lançamento correspondente no ledger (append-only)
func appendEntryIn(ctx context.Context, tx *sql.Tx, w *Wallet, amountCents int64, kind Kind, relatedBetID string) error {
	var betID any
	if relatedBetID != "" {
		betID = relatedBetID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, amount_cents, kind, related_bet_id,
		                          available_after_cents, locked_after_cents, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,NOW())`,
		uuid.NewString(), w.ID, amountCents, string(kind), betID,
		w.AvailableCents, w.LockedCents)
	return err
}
