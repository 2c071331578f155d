package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/catalog"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// de boards recalculados e repassa para os clientes WebSocket inscritos
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub, channel string, log *zap.Logger) {
	if channel == "" {
		channel = catalog.ChannelBoardBroadcast
	}
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd catalog.BoardUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(upd.LeagueID, upd)
			}
		}
	}()
}
