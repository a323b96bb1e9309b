package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

var ErrNotFound = errors.New("event not found")

// Event é o registro mantido pelo line-provider.
// Coefficient inválido (Valid=false) e Deadline nil significam "não definido".
type Event struct {
	ID          string
	Coefficient decimal.NullDecimal
	Deadline    *time.Time
	State       events.EventState
}

// Active reporta se o evento tem deadline definido e estritamente depois de now.
func (e Event) Active(now time.Time) bool {
	return e.Deadline != nil && e.Deadline.After(now)
}

func (e Event) clone() Event {
	if e.Deadline != nil {
		d := *e.Deadline
		e.Deadline = &d
	}
	return e
}

// Memory é a tabela de eventos em memória, criada no start do serviço e
// descartada no shutdown. Seguro para uso concorrente.
type Memory struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]Event)}
}

// Get retorna uma cópia do evento ou ErrNotFound.
func (m *Memory) Get(_ context.Context, id string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e.clone(), nil
}

// Put insere ou substitui o evento pela chave ID.
func (m *Memory) Put(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e.clone()
	return nil
}

// ListActive retorna os eventos ativos em now, ordenados por ID.
func (m *Memory) ListActive(_ context.Context, now time.Time) ([]Event, error) {
	m.mu.RLock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Active(now) {
			out = append(out, e.clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len retorna a quantidade de eventos registrados.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
