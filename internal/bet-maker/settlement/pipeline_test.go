package settlement

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/internal/line-provider/lifecycle"
	"github.com/radieske/bet-settlement/internal/line-provider/publisher"
	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
	"github.com/radieske/bet-settlement/pkg/contracts/topics"
)

// broker liga o publisher do line-provider ao consumer do bet-maker em memória
type broker struct {
	mu    sync.Mutex
	tag   uint64
	ack   *fakeAck
	queue chan amqp.Delivery
}

func (b *broker) Publish(_ context.Context, exchange, key string, msg amqp.Publishing) error {
	if exchange != topics.ExchangeEvents || key != topics.RoutingKeyEventFinished {
		return nil // sem fila ligada: o broker descarta
	}
	b.mu.Lock()
	b.tag++
	d := amqp.Delivery{Acknowledger: b.ack, DeliveryTag: b.tag, Body: msg.Body, ContentType: msg.ContentType}
	b.mu.Unlock()
	b.queue <- d
	return nil
}

func (b *broker) Close() error { return nil }

type pipeline struct {
	manager *lifecycle.Manager
	bets    *repo.Memory
	ack     *fakeAck
}

func startPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := zaptest.NewLogger(t)
	ack := newFakeAck()
	b := &broker{ack: ack, queue: make(chan amqp.Delivery, 16)}

	pub := publisher.NewAMQPPublisher(log, func() (publisher.Channel, error) { return b, nil },
		topics.ExchangeEvents, topics.RoutingKeyEventFinished, time.Second)
	bets := repo.NewMemory()

	c := newConsumer(t, bets, func(context.Context) (<-chan amqp.Delivery, io.Closer, error) {
		return b.queue, nopCloser{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	return &pipeline{
		manager: lifecycle.NewManager(log, store.NewMemory(), pub),
		bets:    bets,
		ack:     ack,
	}
}

func (p *pipeline) put(t *testing.T, id string, patch lifecycle.Patch) {
	t.Helper()
	if _, err := p.manager.CreateOrUpdate(context.Background(), id, patch); err != nil {
		t.Fatalf("createOrUpdate %s: %v", id, err)
	}
}

func (p *pipeline) status(t *testing.T, betID string) events.BetStatus {
	t.Helper()
	b, err := p.bets.Get(context.Background(), betID)
	if err != nil {
		t.Fatal(err)
	}
	return b.Status
}

func TestEventFinishedWinSettlesOpenBet(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.put(t, "E1", lifecycle.Patch{
		Deadline: lifecycle.Value(time.Now().Add(600 * time.Second)),
		State:    lifecycle.Value(events.StateNew),
	})
	w1, _ := p.bets.Create(ctx, "E1", decimalOf(t, "100.50"))
	if p.status(t, w1.ID) != events.BetNew {
		t.Fatal("new bet must start as NEW")
	}

	p.put(t, "E1", lifecycle.Patch{State: lifecycle.Value(events.StateFinishedWin)})
	p.ack.wait(t, 1)

	if got := p.status(t, w1.ID); got != events.BetWin {
		t.Fatalf("W1: want WIN, got %s", got)
	}
}

func TestDuplicateSettlementKeepsTerminalBets(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.put(t, "E2", lifecycle.Patch{})
	w1, _ := p.bets.Create(ctx, "E2", decimalOf(t, "10"))
	p.put(t, "E2", lifecycle.Patch{State: lifecycle.Value(events.StateFinishedWin)})
	p.ack.wait(t, 1)

	// aposta criada depois da liquidação não é liquidada retroativamente
	w2, _ := p.bets.Create(ctx, "E2", decimalOf(t, "20"))
	if p.status(t, w2.ID) != events.BetNew {
		t.Fatal("late bet should stay NEW until the next notification")
	}

	p.put(t, "E2", lifecycle.Patch{State: lifecycle.Value(events.StateFinishedLose)})
	p.put(t, "E2", lifecycle.Patch{State: lifecycle.Value(events.StateFinishedLose)})
	p.ack.wait(t, 2)

	if got := p.status(t, w1.ID); got != events.BetWin {
		t.Errorf("W1: want WIN, got %s", got)
	}
	if got := p.status(t, w2.ID); got != events.BetLose {
		t.Errorf("W2: want LOSE, got %s", got)
	}
	if acked, rejected, nacked := p.ack.counts(); acked != 3 || rejected != 0 || nacked != 0 {
		t.Errorf("ack=%d reject=%d nack=%d", acked, rejected, nacked)
	}
}

func TestSettlementIsolatedPerEvent(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.put(t, "A", lifecycle.Patch{})
	p.put(t, "B", lifecycle.Patch{})
	a, _ := p.bets.Create(ctx, "A", decimalOf(t, "1"))
	b, _ := p.bets.Create(ctx, "B", decimalOf(t, "1"))

	p.put(t, "A", lifecycle.Patch{State: lifecycle.Value(events.StateFinishedLose)})
	p.ack.wait(t, 1)

	if got := p.status(t, a.ID); got != events.BetLose {
		t.Errorf("A: %s", got)
	}
	if got := p.status(t, b.ID); got != events.BetNew {
		t.Errorf("B must stay NEW, got %s", got)
	}
}
