package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/shared/rabbitmq"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// ErrPublish indica que o broker não aceitou a notificação (inalcançável, nack ou timeout).
var ErrPublish = errors.New("publish failure")

// Channel é o canal com confirmação usado para publicar.
type Channel interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	Close() error
}

// Dialer abre um novo Channel.
type Dialer func() (Channel, error)

// DialRabbit retorna um Dialer que abre um ConfirmChannel e declara o exchange.
func DialRabbit(url, exchange string) Dialer {
	return func() (Channel, error) {
		ch, err := rabbitmq.OpenConfirmChannel(url, exchange)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// AMQPPublisher publica notificações de evento encerrado no exchange topic.
// O canal é aberto sob demanda; após uma falha ele é descartado e a próxima
// publicação reconecta. Canal fechado (amqp.ErrClosed) reconecta na hora, uma vez.
type AMQPPublisher struct {
	log        *zap.Logger
	dial       Dialer
	exchange   string
	routingKey string
	timeout    time.Duration

	mu sync.Mutex
	ch Channel

	OnPublished func() // métricas
	OnError     func() // métricas
}

func NewAMQPPublisher(log *zap.Logger, dial Dialer, exchange, routingKey string, timeout time.Duration) *AMQPPublisher {
	return &AMQPPublisher{
		log:        log,
		dial:       dial,
		exchange:   exchange,
		routingKey: routingKey,
		timeout:    timeout,
	}
}

// PublishOutcome retorna quando o broker confirmou a mensagem. Não espera
// nenhum consumidor processar.
func (p *AMQPPublisher) PublishOutcome(ctx context.Context, o events.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return p.fail(o, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         o.Encode(),
	}
	err = ch.Publish(ctx, p.exchange, p.routingKey, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// conexão derrubada pelo broker só aparece aqui; uma nova tentativa imediata
		p.log.Warn("amqp channel closed, redialing", zap.String("event_id", o.EventID))
		p.reset()
		if ch, err = p.channel(); err != nil {
			return p.fail(o, err)
		}
		err = ch.Publish(ctx, p.exchange, p.routingKey, msg)
	}
	if err != nil {
		p.reset()
		return p.fail(o, err)
	}

	if p.OnPublished != nil {
		p.OnPublished()
	}
	p.log.Debug("outcome sent",
		zap.String("event_id", o.EventID),
		zap.String("state", string(o.State)),
		zap.String("exchange", p.exchange),
		zap.String("routing_key", p.routingKey),
	)
	return nil
}

// Connect abre o canal antecipadamente (ex.: no start do serviço).
func (p *AMQPPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.channel()
	return err
}

// Close libera o canal atual, se houver.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

func (p *AMQPPublisher) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	p.log.Info("amqp publisher connected", zap.String("exchange", p.exchange))
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

func (p *AMQPPublisher) fail(o events.Outcome, err error) error {
	if p.OnError != nil {
		p.OnError()
	}
	return fmt.Errorf("%w: event %s: %w", ErrPublish, o.EventID, err)
}
