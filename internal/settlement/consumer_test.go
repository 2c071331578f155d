package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/bets"
	ev "github.com/radieske/fantasy-bet-core/pkg/contracts/events"
)

// queueReader entrega as mensagens enfileiradas e depois cancela o
// contexto para encerrar o loop de consumo
type queueReader struct {
	msgs   []kafkago.Message
	cancel context.CancelFunc
	i      int
}

func (r *queueReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if r.i >= len(r.msgs) {
		r.cancel()
		return kafkago.Message{}, context.Canceled
	}
	m := r.msgs[r.i]
	r.i++
	return m, nil
}

func newQueueReader(msgs ...kafkago.Message) (*queueReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &queueReader{msgs: msgs, cancel: cancel}, ctx
}

type captureWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type stubSettler struct {
	bet     *bets.Bet
	applied bool
	err     error
	calls   int
}

func (s *stubSettler) Settle(context.Context, string, bets.Outcome) (*bets.Bet, bool, error) {
	s.calls++
	return s.bet, s.applied, s.err
}

func outcomeMsg(t *testing.T, betID, outcome string) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(ev.OutcomeResolved{
		BetID:      betID,
		EventID:    "evt-1",
		Outcome:    outcome,
		ResolvedAt: time.Now(),
		Source:     "test",
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(betID), Value: b}
}

func TestRun_LiquidaEPublicaBetSettled(t *testing.T) {
	settler := &stubSettler{
		bet: &bets.Bet{
			ID:                   "bet-1",
			UserID:               "user-1",
			Status:               bets.StatusWon,
			PotentialPayoutCents: 8000,
		},
		applied: true,
	}
	settled := &captureWriter{}
	dlq := &captureWriter{}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-1", "WIN"))

	var consumed, appliedCount int
	c := &Consumer{
		Log:        zap.NewNop(),
		Reader:     reader,
		Manager:    settler,
		Settled:    settled,
		DLQ:        dlq,
		OnConsumed: func() { consumed++ },
		OnApplied:  func(bets.Outcome) { appliedCount++ },
	}

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, appliedCount)
	assert.Empty(t, dlq.msgs)

	require.Len(t, settled.msgs, 1)
	var out ev.BetSettled
	require.NoError(t, json.Unmarshal(settled.msgs[0].Value, &out))
	assert.Equal(t, "bet-1", out.BetID)
	assert.Equal(t, "user-1", out.UserID)
	assert.Equal(t, string(bets.StatusWon), out.Status)
	assert.Equal(t, int64(8000), out.PayoutCents)
}

// Derrota não carrega payout no evento publicado
func TestRun_DerrotaSemPayout(t *testing.T) {
	settler := &stubSettler{
		bet:     &bets.Bet{ID: "bet-1", UserID: "user-1", Status: bets.StatusLost, PotentialPayoutCents: 8000},
		applied: true,
	}
	settled := &captureWriter{}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-1", "LOSS"))
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: settled,
	}
	_ = c.Run(ctx)

	require.Len(t, settled.msgs, 1)
	var out ev.BetSettled
	require.NoError(t, json.Unmarshal(settled.msgs[0].Value, &out))
	assert.Equal(t, int64(0), out.PayoutCents)
}

// Reentrega (applied=false): consome sem publicar nada
func TestRun_ReentregaNaoPublica(t *testing.T) {
	settler := &stubSettler{
		bet:     &bets.Bet{ID: "bet-1", Status: bets.StatusWon},
		applied: false,
	}
	settled := &captureWriter{}
	dlq := &captureWriter{}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-1", "WIN"))
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: settled,
		DLQ:     dlq,
	}
	_ = c.Run(ctx)

	assert.Empty(t, settled.msgs)
	assert.Empty(t, dlq.msgs)
}

func TestRun_MensagemInvalidaVaiParaDLQ(t *testing.T) {
	settler := &stubSettler{}
	dlq := &captureWriter{}

	reader, ctx := newQueueReader(kafkago.Message{Value: []byte("not json")})

	var errStage string
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: &captureWriter{},
		DLQ:     dlq,
		OnError: func(stage string) { errStage = stage },
	}
	_ = c.Run(ctx)

	assert.Equal(t, 0, settler.calls)
	assert.Equal(t, "decode", errStage)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, []byte("not json"), dlq.msgs[0].Value)
}

// Erro de domínio não é repetido: uma tentativa e direto para a DLQ
func TestRun_ErroDeDominioSemRetry(t *testing.T) {
	settler := &stubSettler{err: bets.ErrNotFound}
	dlq := &captureWriter{}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-x", "WIN"))
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: &captureWriter{},
		DLQ:     dlq,
	}
	_ = c.Run(ctx)

	assert.Equal(t, 1, settler.calls)
	assert.Len(t, dlq.msgs, 1)
}

// Falha persistente esgota os retries antes de ir para a DLQ
func TestRun_FalhaPersistenteEsgotaRetries(t *testing.T) {
	settler := &stubSettler{err: errors.New("db down")}
	dlq := &captureWriter{}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-1", "WIN"))
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: &captureWriter{},
		DLQ:     dlq,
	}
	_ = c.Run(ctx)

	assert.Equal(t, 3, settler.calls)
	assert.Len(t, dlq.msgs, 1)
}

func TestRun_SemDLQConfigurada(t *testing.T) {
	settler := &stubSettler{err: bets.ErrNotFound}

	reader, ctx := newQueueReader(outcomeMsg(t, "bet-x", "WIN"))
	c := &Consumer{
		Log:     zap.NewNop(),
		Reader:  reader,
		Manager: settler,
		Settled: &captureWriter{},
	}
	// não entra em pânico sem DLQ
	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
