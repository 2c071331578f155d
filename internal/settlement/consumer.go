package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/bets"
	ev "github.com/radieske/fantasy-bet-core/pkg/contracts/events"
)

// Settler aplica o resultado de uma aposta (implementado pelo bets.Manager)
type Settler interface {
	Settle(ctx context.Context, betID string, outcome bets.Outcome) (*bets.Bet, bool, error)
}

// MessageReader abstrai o kafka.Reader para permitir teste do loop
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
}

// MessageWriter abstrai o kafka.Writer (bet_settled e DLQ)
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consumer consome o feed de resultados (at-least-once) e liquida apostas.
// Reentregas viram no-op no Settle; mensagens inválidas ou falhas
// persistentes vão para a DLQ.
type Consumer struct {
	Log     *zap.Logger
	Reader  MessageReader
	Manager Settler
	Settled MessageWriter // publica bet_settled após transição aplicada
	DLQ     MessageWriter // nil = sem DLQ

	OnConsumed func()             // métricas (counter++)
	OnApplied  func(bets.Outcome) // métricas por resultado
	OnError    func(string)       // métricas por estágio
}

// Run inicia o loop principal de consumo do feed de resultados
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		var outcome ev.OutcomeResolved
		if err := json.Unmarshal(m.Value, &outcome); err != nil {
			c.Log.Warn("invalid outcome message", zap.Error(err))
			c.fail("decode")
			c.toDLQ(ctx, m.Value)
			continue
		}

		if err := c.processOne(ctx, &outcome); err != nil {
			c.Log.Error("settle failed", zap.String("betId", outcome.BetID), zap.Error(err))
			c.fail("settle")
			c.toDLQ(ctx, m.Value)
		}
	}
}

// processOne liquida uma aposta com retries para falha transitória.
// Erros de domínio (resultado inválido, aposta inexistente) não são
// repetidos: vão direto para a DLQ.
func (c *Consumer) processOne(ctx context.Context, outcome *ev.OutcomeResolved) error {
	var (
		bet     *bets.Bet
		applied bool
		err     error
	)

	const retries = 3
	for i := 0; i < retries; i++ {
		bet, applied, err = c.Manager.Settle(ctx, outcome.BetID, bets.Outcome(outcome.Outcome))
		if err == nil || errors.Is(err, bets.ErrValidation) || errors.Is(err, bets.ErrNotFound) {
			break
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	if err != nil {
		return err
	}

	if !applied {
		// reentrega do feed; já liquidada, nada a publicar
		c.Log.Debug("outcome redelivery ignored", zap.String("betId", outcome.BetID))
		return nil
	}

	if c.OnApplied != nil {
		c.OnApplied(bets.Outcome(outcome.Outcome))
	}

	settled := ev.BetSettled{
		BetID:  bet.ID,
		UserID: bet.UserID,
		Status: string(bet.Status),
		Ts:     time.Now(),
	}
	if bet.Status == bets.StatusWon {
		settled.PayoutCents = bet.PotentialPayoutCents
	}
	b, _ := json.Marshal(settled)
	return c.Settled.WriteMessages(ctx, kafkago.Message{Key: []byte(bet.ID), Value: b, Time: time.Now()})
}

func (c *Consumer) toDLQ(ctx context.Context, payload []byte) {
	if c.DLQ == nil {
		return
	}
	if err := c.DLQ.WriteMessages(ctx, kafkago.Message{Value: payload, Time: time.Now()}); err != nil {
		c.Log.Error("dlq write failed", zap.Error(err))
	}
}

func (c *Consumer) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
