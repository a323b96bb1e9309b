package settlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// Decision é o destino de uma entrega depois de processada.
type Decision int

const (
	Ack     Decision = iota // aplicado (ou nada a aplicar)
	Reject                  // payload inválido, descartado sem requeue
	Requeue                 // falha transitória, volta para a fila
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Reject:
		return "reject"
	case Requeue:
		return "requeue"
	}
	return "unknown"
}

// Settler aplica o resultado de um evento às apostas abertas.
type Settler interface {
	SettleEvent(ctx context.Context, eventID string, status events.BetStatus) ([]repo.Bet, error)
}

// Result descreve o processamento de uma mensagem.
type Result struct {
	Decision Decision
	Outcome  events.Outcome
	Settled  []repo.Bet
	Err      error
}

// Handler converte o corpo da notificação em liquidação. Não faz retry:
// quem decide o que fazer com a entrega é o Consumer.
type Handler struct {
	Log   *zap.Logger
	Store Settler
}

func (h *Handler) Handle(ctx context.Context, body []byte) Result {
	o, err := events.ParseOutcome(body)
	if err != nil {
		h.Log.Warn("malformed outcome rejected", zap.ByteString("body", body), zap.Error(err))
		return Result{Decision: Reject, Err: err}
	}

	settled, err := h.Store.SettleEvent(ctx, o.EventID, o.BetStatus())
	if err != nil {
		h.Log.Warn("settlement failed; will requeue",
			zap.String("event_id", o.EventID),
			zap.String("state", string(o.State)),
			zap.Error(err),
		)
		return Result{Decision: Requeue, Outcome: o, Err: err}
	}

	h.Log.Info("event settled",
		zap.String("event_id", o.EventID),
		zap.String("state", string(o.State)),
		zap.Int("bets", len(settled)),
	)
	return Result{Decision: Ack, Outcome: o, Settled: settled}
}
