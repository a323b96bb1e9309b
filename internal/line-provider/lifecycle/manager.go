package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

var (
	ErrValidation = errors.New("invalid event")
	// ErrPublishFailed: o evento foi gravado, mas a notificação não chegou ao broker.
	ErrPublishFailed = errors.New("outcome notification failed")
)

// Store é a tabela de eventos usada pelo Manager.
type Store interface {
	Get(ctx context.Context, id string) (store.Event, error)
	Put(ctx context.Context, e store.Event) error
	ListActive(ctx context.Context, now time.Time) ([]store.Event, error)
}

// Publisher entrega a notificação de evento encerrado ao broker.
type Publisher interface {
	PublishOutcome(ctx context.Context, o events.Outcome) error
}

// Result informa se o create-or-update criou ou atualizou o evento.
type Result struct {
	Created bool
	Event   store.Event
}

// Manager aplica create-or-update sobre o Store e dispara a notificação
// quando uma atualização deixa o evento em estado terminal.
type Manager struct {
	log   *zap.Logger
	store Store
	pub   Publisher

	// serializa o read-modify-write por evento
	mu sync.Mutex
}

func NewManager(log *zap.Logger, s Store, p Publisher) *Manager {
	return &Manager{log: log, store: s, pub: p}
}

// CreateOrUpdate cria o evento com defaults (state NEW) se o id é novo, ou
// aplica só os campos presentes no patch. Toda atualização que termina em
// FINISHED_WIN/FINISHED_LOSE publica uma notificação, mesmo repetida.
// Nenhuma transição de estado é recusada.
func (m *Manager) CreateOrUpdate(ctx context.Context, id string, p Patch) (Result, error) {
	if id == "" {
		return Result{}, fmt.Errorf("%w: event_id is required", ErrValidation)
	}
	if err := p.validate(); err != nil {
		return Result{}, err
	}

	res, err := m.write(ctx, id, p)
	if err != nil {
		return Result{}, err
	}

	if res.Created {
		m.log.Info("event created", zap.String("event_id", id), zap.String("state", string(res.Event.State)))
		return res, nil
	}
	m.log.Info("event updated", zap.String("event_id", id), zap.String("state", string(res.Event.State)))

	if !res.Event.State.Terminal() {
		return res, nil
	}

	outcome, err := events.NewOutcome(id, res.Event.State)
	if err != nil {
		return res, err
	}
	if err := m.pub.PublishOutcome(ctx, outcome); err != nil {
		m.log.Error("outcome publish failed", zap.String("event_id", id), zap.Error(err))
		return res, fmt.Errorf("event %s: %w: %w", id, ErrPublishFailed, err)
	}
	m.log.Info("outcome published", zap.String("event_id", id), zap.String("state", string(outcome.State)))
	return res, nil
}

func (m *Manager) write(ctx context.Context, id string, p Patch) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.store.Get(ctx, id)
	created := errors.Is(err, store.ErrNotFound)
	if err != nil && !created {
		return Result{}, fmt.Errorf("load event %s: %w", id, err)
	}
	if created {
		cur = store.Event{ID: id, State: events.StateNew}
	}

	p.apply(&cur)
	if err := m.store.Put(ctx, cur); err != nil {
		return Result{}, fmt.Errorf("save event %s: %w", id, err)
	}
	return Result{Created: created, Event: cur}, nil
}

// Get retorna o evento ou store.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (store.Event, error) {
	return m.store.Get(ctx, id)
}

// ListActive lista eventos com deadline definido e maior que now.
func (m *Manager) ListActive(ctx context.Context, now time.Time) ([]store.Event, error) {
	return m.store.ListActive(ctx, now)
}

// Seed registra eventos iniciais sem disparar notificações.
func (m *Manager) Seed(ctx context.Context, evs ...store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range evs {
		if e.State == "" {
			e.State = events.StateNew
		}
		if err := m.store.Put(ctx, e); err != nil {
			return fmt.Errorf("seed event %s: %w", e.ID, err)
		}
	}
	m.log.Info("events seeded", zap.Int("count", len(evs)))
	return nil
}
