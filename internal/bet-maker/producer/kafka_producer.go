package producer

import (
	"context"
	"encoding/json"

	sharedkafka "github.com/radieske/bet-settlement/internal/shared/kafka"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
	"github.com/radieske/bet-settlement/pkg/contracts/topics"
)

// KafkaPublisher publica liquidações (bet_settled) e payloads rejeitados (DLQ).
type KafkaPublisher struct {
	Settled sharedkafka.MessageWriter
	DLQ     sharedkafka.MessageWriter
}

func NewKafkaPublisher(settled, dlq sharedkafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Settled: settled, DLQ: dlq}
}

// PublishBetSettled usa o id da aposta como chave, então as mensagens de uma
// mesma aposta caem na mesma partição.
func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.Settled, e.BetID, b)
}

// PublishDeadLetter envia o corpo original intacto com o motivo no header.
func (p *KafkaPublisher) PublishDeadLetter(ctx context.Context, body []byte, reason string) error {
	return sharedkafka.WriteWithHeaders(ctx, p.DLQ, "", body, map[string]string{
		"reason": reason,
		"source": topics.QueueEventsFinished,
	})
}
