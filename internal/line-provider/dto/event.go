package dto

import (
	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// Event é a representação pública de um evento.
// coefficient sai como string decimal com ao menos duas casas ("1.30");
// coefficient e deadline saem como null quando não definidos; deadline em unix segundos.
type Event struct {
	EventID     string            `json:"event_id"`
	Coefficient *string           `json:"coefficient"`
	Deadline    *int64            `json:"deadline"`
	State       events.EventState `json:"state"`
}

// Detail é o corpo de resposta simples ({"detail": "..."}).
type Detail struct {
	Detail string `json:"detail"`
}

func FromEvent(e store.Event) Event {
	out := Event{EventID: e.ID, State: e.State}
	if e.Coefficient.Valid {
		d := e.Coefficient.Decimal
		c := d.StringFixed(max(2, -d.Exponent()))
		out.Coefficient = &c
	}
	if e.Deadline != nil {
		d := e.Deadline.Unix()
		out.Deadline = &d
	}
	return out
}

func FromEvents(evs []store.Event) []Event {
	out := make([]Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, FromEvent(e))
	}
	return out
}
