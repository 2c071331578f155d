package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// LeagueID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type     string `json:"type"`
	LeagueID string `json:"leagueId"`
}

// client serializa as escritas numa conexão: o broadcast e a resposta de
// ping partem de goroutines diferentes e a conexão aceita um escritor por vez
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.send(b)
}

// Hub gerencia conexões WebSocket e assinaturas do board de mercados
// subs: mapeia leagueID para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe por liga e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.LeagueID]; !ok {
				h.subs[msg.LeagueID] = make(map[*client]struct{})
			}
			h.subs[msg.LeagueID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.LeagueID]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.LeagueID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.sendJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for league, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, league)
		}
	}
	h.mu.Unlock()
}

// Broadcast envia o board atualizado para os clientes inscritos na liga.
// A lista de conexões é copiada sob o lock; as escritas acontecem fora
// dele, serializadas por conexão.
func (h *Hub) Broadcast(leagueID string, payload any) {
	h.mu.RLock()
	set := h.subs[leagueID]
	targets := make([]*client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, c := range targets {
		_ = c.send(b)
	}
}
