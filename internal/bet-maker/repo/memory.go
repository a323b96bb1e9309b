package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// Memory é o livro de apostas em memória (LEDGER_STORE=memory e testes).
type Memory struct {
	mu    sync.Mutex
	bets  map[string]*Bet
	order []string
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]*Bet), now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Create(_ context.Context, eventID string, amount decimal.Decimal) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	b := &Bet{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Amount:    amount.Round(2),
		Status:    events.BetNew,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	m.bets[b.ID] = b
	m.order = append(m.order, b.ID)
	return *b, nil
}

func (m *Memory) Get(_ context.Context, id string) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return *b, nil
}

func (m *Memory) List(_ context.Context) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Bet, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.bets[id])
	}
	return out, nil
}

func (m *Memory) ActiveEventIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	ids := []string{}
	for _, b := range m.bets {
		if b.Status != events.BetNew {
			continue
		}
		if _, ok := seen[b.EventID]; ok {
			continue
		}
		seen[b.EventID] = struct{}{}
		ids = append(ids, b.EventID)
	}
	sort.Strings(ids)
	return ids, nil
}

// SettleEvent roda inteiro sob o lock, equivalente ao UPDATE condicional.
func (m *Memory) SettleEvent(_ context.Context, eventID string, status events.BetStatus) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	settled := []Bet{}
	for _, id := range m.order {
		b := m.bets[id]
		if b.EventID != eventID || b.Status != events.BetNew {
			continue
		}
		b.Status = status
		b.UpdatedAt = ts
		settled = append(settled, *b)
	}
	return settled, nil
}
