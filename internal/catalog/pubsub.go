package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelBoardBroadcast é o canal Redis Pub/Sub de boards recalculados
const ChannelBoardBroadcast = "market_board_broadcast"

// BoardUpdate é o payload enviado para o hub WebSocket
type BoardUpdate struct {
	LeagueID string `json:"leagueId"`
	Payload  any    `json:"payload"`
}

// RedisBroadcaster publica boards recalculados no Pub/Sub
type RedisBroadcaster struct {
	r       *redis.Client
	log     *zap.Logger
	channel string
}

func NewRedisBroadcaster(r *redis.Client, log *zap.Logger, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelBoardBroadcast
	}
	return &RedisBroadcaster{r: r, log: log, channel: channel}
}

// PublishBoard envia o board para os assinantes; falha de broadcast não
// interrompe o fluxo de leitura do catálogo
func (b *RedisBroadcaster) PublishBoard(ctx context.Context, board *Board) {
	msg, _ := json.Marshal(BoardUpdate{LeagueID: board.LeagueID, Payload: board})

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := b.r.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.log.Warn("board broadcast publish failed", zap.Error(err))
	}
}
