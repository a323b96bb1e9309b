package producer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

type fakeWriter struct{ msgs []kafka.Message }

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishBetSettled(t *testing.T) {
	settled := &fakeWriter{}
	p := NewKafkaPublisher(settled, &fakeWriter{})

	ev := events.BetSettled{
		BetID:     "W1",
		EventID:   "E1",
		Status:    events.BetWin,
		Amount:    "100.50",
		SettledAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := p.PublishBetSettled(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(settled.msgs) != 1 || string(settled.msgs[0].Key) != "W1" {
		t.Fatalf("msgs: %+v", settled.msgs)
	}
	var got events.BetSettled
	if err := json.Unmarshal(settled.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.BetID != ev.BetID || got.Status != ev.Status || got.Amount != ev.Amount || !got.SettledAt.Equal(ev.SettledAt) {
		t.Fatalf("got %+v", got)
	}
}

func TestPublishDeadLetterKeepsRawBody(t *testing.T) {
	dlq := &fakeWriter{}
	p := NewKafkaPublisher(&fakeWriter{}, dlq)

	if err := p.PublishDeadLetter(context.Background(), []byte("\xffbroken"), "malformed"); err != nil {
		t.Fatal(err)
	}
	m := dlq.msgs[0]
	if string(m.Value) != "\xffbroken" || m.Key != nil {
		t.Fatalf("msg: %+v", m)
	}
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["reason"] != "malformed" || headers["source"] != "events.finished" {
		t.Fatalf("headers: %v", headers)
	}
}
