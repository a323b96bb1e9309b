package topics

const (
	// RabbitMQ: notificação de evento encerrado (line-provider -> bet-maker)
	ExchangeEvents          = "events_exchange"
	RoutingKeyEventFinished = "event.finished"
	QueueEventsFinished     = "events.finished"

	// Kafka: apostas liquidadas
	BetSettled = "bet_settled"

	// DLQs
	EventFinishedDLQ = "event_finished_dlq"

	// Redis Pub/Sub
	ChannelBetSettledBroadcast = "bet_settled_broadcast"
)
