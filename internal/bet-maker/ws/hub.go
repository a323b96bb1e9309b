package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// client serializa as escritas: a lib só aceita um writer por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas de liquidação por evento
// subs: mapeia eventID para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode se inscrever em vários eventIDs
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.EventID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.EventID]; !ok {
				h.subs[msg.EventID] = make(map[*client]struct{})
			}
			h.subs[msg.EventID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.remove(c, msg.EventID)
		case "ping":
			_ = c.write(map[string]string{"type": "pong"})
		}
	}

	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[eventID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, eventID)
		}
	}
}

// Subscribers retorna quantos clientes estão inscritos no evento
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// Broadcast envia a atualização para todos os clientes inscritos no eventID
func (h *Hub) Broadcast(update SettlementUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.EventID]))
	for c := range h.subs[update.EventID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		return
	}
	for _, c := range targets {
		if err := c.write(json.RawMessage(b)); err != nil {
			h.log.Debug("ws write failed", zap.String("event_id", update.EventID), zap.Error(err))
		}
	}
}

// PublishUpdate entrega direto no Hub, sem passar pelo Redis.
// Usado quando o Redis não está disponível e só há uma instância do serviço.
func (h *Hub) PublishUpdate(_ context.Context, eventID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Broadcast(SettlementUpdate{EventID: eventID, Payload: b})
	return nil
}
