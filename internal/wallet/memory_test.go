package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_CarteiraNovaComSaldoZero(t *testing.T) {
	m := NewMemory()

	w, err := m.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.AvailableCents)
	assert.Equal(t, int64(0), w.LockedCents)
	assert.NotEmpty(t, w.ID)

	// segunda chamada retorna a mesma carteira
	w2, err := m.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, w2.ID)
}

func TestReserve_SaldoInsuficiente(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Credit(ctx, "user-1", 1000, "", KindPurchase)
	require.NoError(t, err)

	_, err = m.Reserve(ctx, "user-1", 1001, "bet-1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// falha não deixa rastro: saldo intacto
	w, err := m.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.AvailableCents)
	assert.Equal(t, int64(0), w.LockedCents)
}

func TestReserve_MoveDisponivelParaBloqueado(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Credit(ctx, "user-1", 10000, "", KindPurchase)
	require.NoError(t, err)

	w, err := m.Reserve(ctx, "user-1", 4000, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), w.AvailableCents)
	assert.Equal(t, int64(4000), w.LockedCents)
	// conservação: total não muda numa reserva
	assert.Equal(t, int64(10000), w.TotalCents())
}

func TestRelease_Reversao_DevolveParaDisponivel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 10000, "", KindPurchase)
	m.Reserve(ctx, "user-1", 4000, "bet-1")

	w, err := m.Release(ctx, "user-1", 4000, "bet-1", KindStakeReversal)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), w.AvailableCents)
	assert.Equal(t, int64(0), w.LockedCents)
}

func TestRelease_Forfeit_BaixaSemDevolver(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 10000, "", KindPurchase)
	m.Reserve(ctx, "user-1", 4000, "bet-1")

	w, err := m.Release(ctx, "user-1", 4000, "bet-1", KindForfeit)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), w.AvailableCents)
	assert.Equal(t, int64(0), w.LockedCents)
}

func TestRelease_MaiorQueBloqueado_ViolaInvariante(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 10000, "", KindPurchase)
	m.Reserve(ctx, "user-1", 1000, "bet-1")

	_, err := m.Release(ctx, "user-1", 2000, "bet-1", KindStakeReversal)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRelease_TipoInvalido(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 1000, "", KindPurchase)
	m.Reserve(ctx, "user-1", 500, "bet-1")

	_, err := m.Release(ctx, "user-1", 500, "bet-1", KindPayout)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCredit_ValorInvalido(t *testing.T) {
	m := NewMemory()

	_, err := m.Credit(context.Background(), "user-1", 0, "", KindPurchase)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = m.Credit(context.Background(), "user-1", -100, "", KindPurchase)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransactions_HistoricoComSnapshotDeSaldo(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 10000, "", KindPurchase)
	m.Reserve(ctx, "user-1", 4000, "bet-1")
	m.Release(ctx, "user-1", 4000, "bet-1", KindStakeReversal)

	txs, err := m.Transactions(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// mais recente primeiro
	assert.Equal(t, KindStakeReversal, txs[0].Kind)
	assert.Equal(t, KindStake, txs[1].Kind)
	assert.Equal(t, KindPurchase, txs[2].Kind)

	// sinal: débito negativo no STAKE, crédito positivo na reversão
	assert.Equal(t, int64(-4000), txs[1].AmountCents)
	assert.Equal(t, int64(4000), txs[0].AmountCents)

	// snapshot de saldo após cada lançamento
	assert.Equal(t, int64(6000), txs[1].AvailableAfterCents)
	assert.Equal(t, int64(4000), txs[1].LockedAfterCents)
	assert.Equal(t, int64(10000), txs[0].AvailableAfterCents)
	assert.Equal(t, int64(0), txs[0].LockedAfterCents)
}

func TestTransactions_Paginacao(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Credit(ctx, "user-1", 100, "", KindPurchase)
	}

	page1, err := m.Transactions(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := m.Transactions(ctx, "user-1", 2, 4)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

// Paginação vem crua da query string: valores negativos ou absurdos são
// normalizados em vez de quebrar a listagem
func TestTransactions_PaginacaoInvalidaNormalizada(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 100, "", KindPurchase)

	txs, err := m.Transactions(ctx, "user-1", -1, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	txs, err = m.Transactions(ctx, "user-1", 10, -5)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	txs, err = m.Transactions(ctx, "user-1", 0, -1)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	// limit acima do teto cai para o default
	txs, err = m.Transactions(ctx, "user-1", 10000, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// Reservas concorrentes nunca deixam o saldo negativo: com 1000 de saldo e
// 50 goroutines reservando 100, exatamente 10 têm sucesso.
func TestReserve_ConcorrenteSemOverdraft(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Credit(ctx, "user-1", 1000, "", KindPurchase)
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Reserve(ctx, "user-1", 100, "bet-x"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	w, err := m.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.AvailableCents)
	assert.Equal(t, int64(1000), w.LockedCents)
	assert.GreaterOrEqual(t, w.AvailableCents, int64(0))
}

// Conservação: PURCHASE/PAYOUT/FORFEIT são as únicas operações que mudam
// o total; reservas e reversões apenas movem entre os dois lados.
func TestConservacaoDoTotal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Credit(ctx, "user-1", 10000, "", KindPurchase)

	m.Reserve(ctx, "user-1", 3000, "bet-1")
	w, _ := m.GetOrCreate(ctx, "user-1")
	assert.Equal(t, int64(10000), w.TotalCents())

	m.Release(ctx, "user-1", 3000, "bet-1", KindStakeReversal)
	w, _ = m.GetOrCreate(ctx, "user-1")
	assert.Equal(t, int64(10000), w.TotalCents())

	// derrota: o forfeit reduz o total pelo stake
	m.Reserve(ctx, "user-1", 3000, "bet-2")
	m.Release(ctx, "user-1", 3000, "bet-2", KindForfeit)
	w, _ = m.GetOrCreate(ctx, "user-1")
	assert.Equal(t, int64(7000), w.TotalCents())
}
