package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrEventNotFound = errors.New("event not found")

// Event é um evento apostável vindo do serviço de liga/agenda:
// um confronto de fantasy (MATCHUP) ou um jogo real (GAME).
type Event struct {
	ID       string    `json:"eventId"`
	LeagueID string    `json:"leagueId"`
	Kind     string    `json:"kind"` // "MATCHUP" | "GAME"
	HomeRef  string    `json:"homeRef"`
	AwayRef  string    `json:"awayRef"`
	StartsAt time.Time `json:"startsAt"`
}

// Started informa se o evento já começou (mercado fechado)
func (e *Event) Started(now time.Time) bool { return !now.Before(e.StartsAt) }

// ScheduleProvider é o contrato com o serviço de liga/agenda.
type ScheduleProvider interface {
	ListOpenEvents(ctx context.Context, leagueID string) ([]Event, error)
	GetEvent(ctx context.Context, eventID string) (*Event, error)
}

// ScheduleClient consome a API REST do serviço de liga/agenda
type ScheduleClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewScheduleClient(base string) *ScheduleClient {
	return &ScheduleClient{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// ListOpenEvents retorna os eventos ainda não iniciados da liga
func (c *ScheduleClient) ListOpenEvents(ctx context.Context, leagueID string) ([]Event, error) {
	url := fmt.Sprintf("%s/v1/leagues/%s/events?status=open", c.BaseURL, leagueID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("schedule list http %d", res.StatusCode)
	}
	var out []Event
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEvent busca um evento pelo id; ErrEventNotFound para 404
func (c *ScheduleClient) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	url := fmt.Sprintf("%s/v1/events/%s", c.BaseURL, eventID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrEventNotFound
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("schedule get http %d", res.StatusCode)
	}
	var out Event
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
