package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const (
	dialTimeout = 5 * time.Second
	heartbeat   = 10 * time.Second
)

// ErrNotConfirmed indica que o broker recusou (basic.nack) a publicação.
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// Topology descreve exchange, routing key e fila da notificação de evento encerrado.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Dial abre uma conexão AMQP com timeout de conexão e heartbeat curtos,
// para que uma queda do broker seja percebida rapidamente.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return conn, nil
}

// DeclareExchange declara o exchange topic durável. Idempotente no broker.
func DeclareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// ConfirmChannel publica com publisher confirms: Publish só retorna depois
// que o broker aceitou (ack) a mensagem.
type ConfirmChannel struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
}

// OpenConfirmChannel conecta, declara o exchange e coloca o canal em modo confirm.
func OpenConfirmChannel(url, exchange string) (*ConfirmChannel, error) {
	conn, err := Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := DeclareExchange(ch, exchange); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &ConfirmChannel{conn: conn, ch: ch, confirms: confirms}, nil
}

// Publish envia a mensagem e espera o confirm correspondente.
// As publicações são serializadas para que cada confirm pertença à última mensagem.
func (c *ConfirmChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.Publish(exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case conf, ok := <-c.confirms:
		if !ok {
			return fmt.Errorf("publish: %w", amqp.ErrClosed)
		}
		if !conf.Ack {
			return ErrNotConfirmed
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait confirm: %w", ctx.Err())
	}
}

// Close fecha a conexão (e com ela o canal).
func (c *ConfirmChannel) Close() error {
	return c.conn.Close()
}

// Subscriber abre a assinatura da fila durável ligada ao exchange.
type Subscriber struct {
	URL         string
	Topology    Topology
	Prefetch    int
	ConsumerTag string
}

// Subscribe declara a topologia (exchange, fila durável, bind), aplica o prefetch
// e inicia o consumo com ack manual. O canal de entregas é fechado pela lib
// quando a conexão cai; o io.Closer encerra a conexão.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan amqp.Delivery, io.Closer, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	conn, err := Dial(s.URL)
	if err != nil {
		return nil, nil, err
	}

	deliveries, err := s.setup(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return deliveries, conn, nil
}

func (s *Subscriber) setup(conn *amqp.Connection) (<-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	prefetch := s.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := DeclareExchange(ch, s.Topology.Exchange); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		s.Topology.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", s.Topology.Queue, err)
	}

	if err := ch.QueueBind(q.Name, s.Topology.RoutingKey, s.Topology.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		s.ConsumerTag,
		false, // auto-ack desligado: ack/nack explícito
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}
