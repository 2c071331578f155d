package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProjectionProvider é o contrato com o serviço de projeções de desempenho.
// O valor retornado é a estimativa de pontos do participante (time de
// fantasy ou time real), usada para derivar probabilidade de vitória.
type ProjectionProvider interface {
	GetProjection(ctx context.Context, participantRef string) (float64, error)
}

// ProjectionClient consome a API REST do serviço de projeções
type ProjectionClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewProjectionClient(base string) *ProjectionClient {
	return &ProjectionClient{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *ProjectionClient) GetProjection(ctx context.Context, participantRef string) (float64, error) {
	url := fmt.Sprintf("%s/v1/projections/%s", c.BaseURL, participantRef)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("projection http %d", res.StatusCode)
	}
	var out struct {
		ParticipantRef  string  `json:"participantRef"`
		ProjectedPoints float64 `json:"projectedPoints"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.ProjectedPoints, nil
}
