package settlement

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// fakeAck registra o destino de cada entrega
type fakeAck struct {
	mu      sync.Mutex
	acked   []uint64
	rejects []uint64
	nacks   []uint64
	done    chan struct{}
}

func newFakeAck() *fakeAck { return &fakeAck{done: make(chan struct{}, 64)} }

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	if !requeue {
		return errors.New("nack without requeue")
	}
	a.mu.Lock()
	a.nacks = append(a.nacks, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	if requeue {
		return errors.New("reject with requeue")
	}
	a.mu.Lock()
	a.rejects = append(a.rejects, tag)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAck) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-a.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d/%d", i+1, n)
		}
	}
}

func (a *fakeAck) counts() (acked, rejected, nacked int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.rejects), len(a.nacks)
}

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

type nopCloser struct{ closed *int }

func (c nopCloser) Close() error {
	if c.closed != nil {
		*c.closed++
	}
	return nil
}

// flakyStore falha as primeiras n chamadas
type flakyStore struct {
	*repo.Memory
	mu    sync.Mutex
	fails int
}

func (s *flakyStore) SettleEvent(ctx context.Context, id string, st events.BetStatus) ([]repo.Bet, error) {
	s.mu.Lock()
	if s.fails > 0 {
		s.fails--
		s.mu.Unlock()
		return nil, errors.New("db down")
	}
	s.mu.Unlock()
	return s.Memory.SettleEvent(ctx, id, st)
}

func newConsumer(t *testing.T, store Settler, sub SubscribeFunc) *Consumer {
	t.Helper()
	log := zaptest.NewLogger(t)
	return &Consumer{
		Log:              log,
		Subscribe:        sub,
		Handler:          &Handler{Log: log, Store: store},
		ReconnectInitial: time.Millisecond,
		ReconnectMax:     5 * time.Millisecond,
		RequeueDelay:     time.Millisecond,
	}
}

func singleSubscription(ch <-chan amqp.Delivery) SubscribeFunc {
	return func(context.Context) (<-chan amqp.Delivery, io.Closer, error) {
		return ch, nopCloser{}, nil
	}
}

func TestConsumerDecisions(t *testing.T) {
	store := &flakyStore{Memory: repo.NewMemory(), fails: 1}
	w1, _ := store.Create(context.Background(), "E1", decimalOf(t, "100.50"))

	ack := newFakeAck()
	ch := make(chan amqp.Delivery, 4)
	c := newConsumer(t, store, singleSubscription(ch))

	var (
		mu        sync.Mutex
		settled   []repo.Bet
		malformed [][]byte
	)
	c.OnSettled = func(_ context.Context, _ events.Outcome, bets []repo.Bet) {
		mu.Lock()
		settled = append(settled, bets...)
		mu.Unlock()
	}
	c.OnMalformed = func(_ context.Context, body []byte, _ error) {
		mu.Lock()
		malformed = append(malformed, body)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	ch <- delivery(ack, 1, "E1-FINISHED_WIN")
	ch <- delivery(ack, 2, "E1:FINISHED_WIN") // store falha: requeue
	ch <- delivery(ack, 3, "E1:FINISHED_WIN") // redelivery
	ack.wait(t, 3)

	acked, rejected, nacked := ack.counts()
	if acked != 1 || rejected != 1 || nacked != 1 {
		t.Fatalf("ack=%d reject=%d nack=%d", acked, rejected, nacked)
	}
	got, _ := store.Get(context.Background(), w1.ID)
	if got.Status != events.BetWin {
		t.Fatalf("W1 status %s", got.Status)
	}

	mu.Lock()
	if len(settled) != 1 || settled[0].ID != w1.ID {
		t.Errorf("settled callback: %+v", settled)
	}
	if len(malformed) != 1 || string(malformed[0]) != "E1-FINISHED_WIN" {
		t.Errorf("malformed callback: %q", malformed)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerMalformedPayloads(t *testing.T) {
	store := repo.NewMemory()
	b, _ := store.Create(context.Background(), "E1", decimalOf(t, "1"))

	ack := newFakeAck()
	ch := make(chan amqp.Delivery, 8)
	c := newConsumer(t, store, singleSubscription(ch))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() { cancel(); <-done }()

	bodies := []string{"", "E1", "E1:NEW", "E1:WIN", ":FINISHED_WIN", "\xff:FINISHED_LOSE"}
	for i, body := range bodies {
		ch <- delivery(ack, uint64(i+1), body)
	}
	ack.wait(t, len(bodies))

	if _, rejected, _ := ack.counts(); rejected != len(bodies) {
		t.Fatalf("rejected %d of %d", rejected, len(bodies))
	}
	if got, _ := store.Get(context.Background(), b.ID); got.Status != events.BetNew {
		t.Fatalf("malformed message changed a bet: %s", got.Status)
	}
}

func TestConsumerResubscribesAfterFailures(t *testing.T) {
	store := repo.NewMemory()
	ack := newFakeAck()

	first := make(chan amqp.Delivery, 1)
	second := make(chan amqp.Delivery, 1)
	first <- delivery(ack, 1, "E1:FINISHED_LOSE")
	close(first)
	second <- delivery(ack, 2, "E2:FINISHED_WIN")

	var (
		mu     sync.Mutex
		calls  int
		closed int
	)
	sub := func(context.Context) (<-chan amqp.Delivery, io.Closer, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch calls {
		case 1:
			return first, nopCloser{&closed}, nil
		case 2, 3:
			return nil, nil, errors.New("connection refused")
		default:
			return second, nopCloser{&closed}, nil
		}
	}

	c := newConsumer(t, store, sub)
	resubs := 0
	c.OnResubscribe = func() { resubs++ }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	ack.wait(t, 2)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if calls != 4 {
		t.Fatalf("subscribe calls: %d", calls)
	}
	if closed < 1 {
		t.Fatalf("lost subscription was not closed")
	}
	if resubs != 3 {
		t.Fatalf("resubscriptions: %d", resubs)
	}
	if acked, _, _ := ack.counts(); acked != 2 {
		t.Fatalf("acked: %d", acked)
	}
}

func TestConsumerStopsWhileWaitingToResubscribe(t *testing.T) {
	sub := func(context.Context) (<-chan amqp.Delivery, io.Closer, error) {
		return nil, nil, errors.New("broker down")
	}
	c := newConsumer(t, repo.NewMemory(), sub)
	c.ReconnectInitial = time.Hour
	c.ReconnectMax = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backoff wait ignored cancellation")
	}
}
