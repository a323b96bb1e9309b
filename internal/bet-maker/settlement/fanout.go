package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// EventsProducer publica os eventos de domínio do bet-maker no Kafka.
type EventsProducer interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishDeadLetter(ctx context.Context, body []byte, reason string) error
}

// Broadcaster leva a liquidação até os clientes WebSocket inscritos no evento.
type Broadcaster interface {
	PublishUpdate(ctx context.Context, eventID string, payload any) error
}

// Invalidator descarta a listagem de eventos ativos em cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Fanout anuncia liquidações para fora do serviço. Tudo aqui é best effort:
// erros são logados e contados, nunca propagados. Campos nil são ignorados.
type Fanout struct {
	Log         *zap.Logger
	Producer    EventsProducer
	Broadcaster Broadcaster
	Cache       Invalidator
	Timeout     time.Duration

	OnError func(stage string) // métricas por fase
}

// Announce publica um bet_settled por aposta, faz o broadcast para o
// WebSocket e invalida o cache de eventos ativos.
func (f *Fanout) Announce(ctx context.Context, o events.Outcome, bets []repo.Bet) {
	if len(bets) == 0 {
		return
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	for _, b := range bets {
		ev := events.BetSettled{
			BetID:     b.ID,
			EventID:   b.EventID,
			Status:    b.Status,
			Amount:    b.Amount.StringFixed(2),
			SettledAt: b.UpdatedAt.UTC(),
		}

		if f.Producer != nil {
			if err := f.Producer.PublishBetSettled(ctx, ev); err != nil {
				f.fail("kafka", err, zap.String("bet_id", b.ID))
			}
		}

		if f.Broadcaster != nil {
			if err := f.Broadcaster.PublishUpdate(ctx, o.EventID, ev); err != nil {
				f.fail("broadcast", err, zap.String("bet_id", b.ID))
			}
		}
	}

	if f.Cache != nil {
		if err := f.Cache.Invalidate(ctx); err != nil {
			f.fail("cache", err, zap.String("event_id", o.EventID))
		}
	}
}

// DeadLetter copia um payload rejeitado para o tópico de DLQ.
func (f *Fanout) DeadLetter(ctx context.Context, body []byte, reason error) {
	if f.Producer == nil {
		return
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	msg := "unknown"
	if reason != nil {
		msg = reason.Error()
	}
	if err := f.Producer.PublishDeadLetter(ctx, body, msg); err != nil {
		f.fail("dlq", err)
	}
}

func (f *Fanout) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.Timeout)
}

func (f *Fanout) fail(stage string, err error, fields ...zap.Field) {
	f.Log.Warn("settlement fan-out failed", append(fields, zap.String("stage", stage), zap.Error(err))...)
	if f.OnError != nil {
		f.OnError(stage)
	}
}
