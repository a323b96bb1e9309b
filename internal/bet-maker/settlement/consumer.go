package settlement

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

var errSubscriptionLost = errors.New("deliveries channel closed")

// SubscribeFunc abre uma assinatura da fila de eventos encerrados.
// O io.Closer libera a conexão quando a assinatura termina.
type SubscribeFunc func(ctx context.Context) (<-chan amqp.Delivery, io.Closer, error)

// Consumer é o loop de longa duração que liquida apostas a partir das
// notificações. Processa uma entrega por vez e reassina para sempre, com
// backoff exponencial limitado, até o contexto ser cancelado.
type Consumer struct {
	Log       *zap.Logger
	Subscribe SubscribeFunc
	Handler   *Handler

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	RequeueDelay     time.Duration

	// Chamados depois do ack; falhas aqui não afetam a entrega.
	OnSettled   func(ctx context.Context, o events.Outcome, bets []repo.Bet)
	OnMalformed func(ctx context.Context, body []byte, err error)

	OnConsumed    func() // métricas
	OnRejected    func() // métricas
	OnRequeued    func() // métricas
	OnResubscribe func() // métricas
}

// Run bloqueia até ctx ser cancelado e então retorna ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	if c.ReconnectInitial > 0 {
		bo.InitialInterval = c.ReconnectInitial
	}
	if c.ReconnectMax > 0 {
		bo.MaxInterval = c.ReconnectMax
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, closer, err := c.Subscribe(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			c.Log.Warn("subscribe failed; retrying", zap.Duration("in", wait), zap.Error(err))
			if !c.resubscribe(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		bo.Reset()
		c.Log.Info("consuming outcome notifications")

		err = c.consume(ctx, deliveries)
		if closer != nil {
			_ = closer.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		c.Log.Warn("subscription lost; resubscribing", zap.Duration("in", wait), zap.Error(err))
		if !c.resubscribe(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) resubscribe(ctx context.Context, wait time.Duration) bool {
	if c.OnResubscribe != nil {
		c.OnResubscribe()
	}
	return sleep(ctx, wait)
}

func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errSubscriptionLost
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	if c.OnConsumed != nil {
		c.OnConsumed()
	}

	res := c.Handler.Handle(ctx, d.Body)
	switch res.Decision {
	case Ack:
		if err := d.Ack(false); err != nil {
			c.Log.Warn("ack failed", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
			return
		}
		if c.OnSettled != nil {
			c.OnSettled(ctx, res.Outcome, res.Settled)
		}

	case Reject:
		if err := d.Reject(false); err != nil {
			c.Log.Warn("reject failed", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
		}
		if c.OnRejected != nil {
			c.OnRejected()
		}
		if c.OnMalformed != nil {
			c.OnMalformed(ctx, d.Body, res.Err)
		}

	case Requeue:
		// espera curta para um banco fora do ar não virar loop quente
		sleep(ctx, c.RequeueDelay)
		if err := d.Nack(false, true); err != nil {
			c.Log.Warn("nack failed", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
		}
		if c.OnRequeued != nil {
			c.OnRequeued()
		}
	}
}

// sleep retorna false se ctx terminou antes de d.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
