package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BoardCache guarda o board precificado de cada liga no Redis com TTL curto.
// O board em cache é pré-exclusão: o filtro por usuário acontece depois.
type BoardCache struct {
	Client *redis.Client
}

func NewBoardCache(c *redis.Client) *BoardCache { return &BoardCache{Client: c} }

func key(leagueID string) string { return "board:league:" + leagueID }

func (c *BoardCache) Get(ctx context.Context, leagueID string, dst any) (bool, error) {
	b, err := c.Client.Get(ctx, key(leagueID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *BoardCache) Set(ctx context.Context, leagueID string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(leagueID), b, ttl).Err()
}
