package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/bets"
	"github.com/radieske/fantasy-bet-core/internal/external"
	"github.com/radieske/fantasy-bet-core/internal/pricing"
)

// Option é um mercado aberto derivado sob demanda: referência do evento,
// lado escolhível e odds correntes. Nada disso é persistido: o mercado
// fecha quando o evento começa.
type Option struct {
	Selection bets.Selection `json:"selection"`
	Opponent  string         `json:"opponent"`
	OddsMilli int64          `json:"odds_milli"`
	StartsAt  time.Time      `json:"startsAt"`
}

// Board agrupa as opções abertas de uma liga
type Board struct {
	LeagueID    string    `json:"leagueId"`
	Matchups    []Option  `json:"matchups"`
	Games       []Option  `json:"games"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SelectionChecker responde se o usuário já apostou na seleção exata
type SelectionChecker interface {
	HasSelection(ctx context.Context, userID string, sel bets.Selection) (bool, error)
}

// Catalog monta os mercados abertos combinando agenda da liga, projeções
// e o motor de pricing. Somente leitura; sem efeitos colaterais além de
// cache e broadcast.
type Catalog struct {
	log         *zap.Logger
	schedule    external.ScheduleProvider
	projections external.ProjectionProvider
	pricing     *pricing.Engine
	bets        SelectionChecker
	cache       *BoardCache       // opcional
	broadcaster *RedisBroadcaster // opcional
	boardTTL    time.Duration
}

func New(log *zap.Logger, schedule external.ScheduleProvider, projections external.ProjectionProvider,
	eng *pricing.Engine, checker SelectionChecker) *Catalog {
	return &Catalog{
		log:         log,
		schedule:    schedule,
		projections: projections,
		pricing:     eng,
		bets:        checker,
		boardTTL:    15 * time.Second,
	}
}

// WithCache habilita o cache Redis do board por liga
func (c *Catalog) WithCache(cache *BoardCache) *Catalog {
	c.cache = cache
	return c
}

// WithBroadcaster publica boards recalculados no Pub/Sub (consumido pelo hub WS)
func (c *Catalog) WithBroadcaster(b *RedisBroadcaster) *Catalog {
	c.broadcaster = b
	return c
}

// AvailableBets retorna os mercados abertos da liga, excluindo as seleções
// em que o usuário já tem aposta ativa (apostar em outro lado do mesmo
// evento continua permitido).
func (c *Catalog) AvailableBets(ctx context.Context, userID, leagueID string) (*Board, error) {
	board, err := c.leagueBoard(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	out := &Board{LeagueID: leagueID, GeneratedAt: board.GeneratedAt}
	out.Matchups, err = c.filterTaken(ctx, userID, board.Matchups)
	if err != nil {
		return nil, err
	}
	out.Games, err = c.filterTaken(ctx, userID, board.Games)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Quote resolve as odds correntes de uma seleção específica.
// bets.ErrInvalidSelection quando o evento ou o lado não existem;
// bets.ErrMarketClosed quando o evento já começou.
func (c *Catalog) Quote(ctx context.Context, sel bets.Selection) (*bets.Quote, error) {
	ev, err := c.schedule.GetEvent(ctx, sel.EventID)
	if err != nil {
		if errors.Is(err, external.ErrEventNotFound) {
			return nil, bets.ErrInvalidSelection
		}
		return nil, err
	}
	if string(sel.BetType) != ev.Kind {
		return nil, bets.ErrInvalidSelection
	}
	if ev.Started(time.Now().UTC()) {
		return nil, bets.ErrMarketClosed
	}

	var opponent string
	switch sel.PickRef {
	case ev.HomeRef:
		opponent = ev.AwayRef
	case ev.AwayRef:
		opponent = ev.HomeRef
	default:
		return nil, bets.ErrInvalidSelection
	}

	p, err := c.winProbability(ctx, sel.PickRef, opponent)
	if err != nil {
		return nil, err
	}
	odds, err := c.pricing.OddsMilli(p)
	if err != nil {
		return nil, err
	}
	return &bets.Quote{OddsMilli: odds, StartsAt: ev.StartsAt}, nil
}

// leagueBoard retorna o board da liga, preferencialmente do cache.
// Um recálculo bem sucedido é publicado para os clientes WS.
func (c *Catalog) leagueBoard(ctx context.Context, leagueID string) (*Board, error) {
	if c.cache != nil {
		var cached Board
		if ok, _ := c.cache.Get(ctx, leagueID, &cached); ok {
			return &cached, nil
		}
	}

	board, err := c.buildBoard(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, leagueID, board, c.boardTTL); err != nil {
			c.log.Warn("board cache set failed", zap.Error(err))
		}
	}
	if c.broadcaster != nil {
		c.broadcaster.PublishBoard(ctx, board)
	}
	return board, nil
}

// buildBoard consulta a agenda e precifica os dois lados de cada evento aberto
func (c *Catalog) buildBoard(ctx context.Context, leagueID string) (*Board, error) {
	events, err := c.schedule.ListOpenEvents(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	board := &Board{LeagueID: leagueID, GeneratedAt: now}

	for _, ev := range events {
		if ev.Started(now) {
			continue // mercado fechado
		}

		pHome, err := c.winProbability(ctx, ev.HomeRef, ev.AwayRef)
		if err != nil {
			c.log.Warn("skipping event without projection",
				zap.String("eventId", ev.ID), zap.Error(err))
			continue
		}

		opts, err := c.priceSides(ev, pHome)
		if err != nil {
			c.log.Warn("skipping unpriceable event", zap.String("eventId", ev.ID), zap.Error(err))
			continue
		}

		switch ev.Kind {
		case string(bets.TypeMatchup):
			board.Matchups = append(board.Matchups, opts...)
		case string(bets.TypeGame):
			board.Games = append(board.Games, opts...)
		}
	}
	return board, nil
}

// priceSides gera as duas opções (casa e visitante) de um evento
func (c *Catalog) priceSides(ev external.Event, pHome float64) ([]Option, error) {
	oddsHome, err := c.pricing.OddsMilli(pHome)
	if err != nil {
		return nil, err
	}
	oddsAway, err := c.pricing.OddsMilli(1 - pHome)
	if err != nil {
		return nil, err
	}

	return []Option{
		{
			Selection: bets.Selection{BetType: bets.Type(ev.Kind), EventID: ev.ID, PickRef: ev.HomeRef},
			Opponent:  ev.AwayRef,
			OddsMilli: oddsHome,
			StartsAt:  ev.StartsAt,
		},
		{
			Selection: bets.Selection{BetType: bets.Type(ev.Kind), EventID: ev.ID, PickRef: ev.AwayRef},
			Opponent:  ev.HomeRef,
			OddsMilli: oddsAway,
			StartsAt:  ev.StartsAt,
		},
	}, nil
}

// winProbability deriva a probabilidade do lado escolhido a partir do
// diferencial de pontos projetados, via curva logística do pricing
func (c *Catalog) winProbability(ctx context.Context, pickRef, opponentRef string) (float64, error) {
	projPick, err := c.projections.GetProjection(ctx, pickRef)
	if err != nil {
		return 0, err
	}
	projOpp, err := c.projections.GetProjection(ctx, opponentRef)
	if err != nil {
		return 0, err
	}
	return c.pricing.WinProbability(projPick - projOpp), nil
}

func (c *Catalog) filterTaken(ctx context.Context, userID string, opts []Option) ([]Option, error) {
	out := make([]Option, 0, len(opts))
	for _, o := range opts {
		taken, err := c.bets.HasSelection(ctx, userID, o.Selection)
		if err != nil {
			return nil, err
		}
		if !taken {
			out = append(out, o)
		}
	}
	return out, nil
}
