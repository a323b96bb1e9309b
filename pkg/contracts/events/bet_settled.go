package events

import "time"

// Evento emitido pelo bet-maker para cada aposta liquidada.
type BetSettled struct {
	BetID     string    `json:"bet_id"`
	EventID   string    `json:"event_id"`
	Status    BetStatus `json:"status"` // "WIN" | "LOSE"
	Amount    string    `json:"amount"` // decimal, 2 casas
	SettledAt time.Time `json:"settled_at"`
}
