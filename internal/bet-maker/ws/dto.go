package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// EventID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	EventID string `json:"eventId"` // requerido em subscribe/unsubscribe
}

// SettlementUpdate é a liquidação de uma aposta enviada aos inscritos do evento.
// Payload é repassado como veio do Pub/Sub.
type SettlementUpdate struct {
	EventID string          `json:"eventId"`
	Payload json.RawMessage `json:"payload"`
}
