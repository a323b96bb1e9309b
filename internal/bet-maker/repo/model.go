package repo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

var ErrNotFound = errors.New("bet not found")

// Bet é o modelo persistido da aposta.
type Bet struct {
	ID        string
	EventID   string
	Amount    decimal.Decimal
	Status    events.BetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store é o contrato do livro de apostas usado pelo HTTP e pelo consumidor.
type Store interface {
	Create(ctx context.Context, eventID string, amount decimal.Decimal) (Bet, error)
	Get(ctx context.Context, id string) (Bet, error)
	List(ctx context.Context) ([]Bet, error)
	ActiveEventIDs(ctx context.Context) ([]string, error)
	// SettleEvent move todas as apostas NEW do evento para status, numa única
	// operação atômica, e retorna as apostas alteradas. Apostas já liquidadas
	// não são tocadas, então repetir a chamada devolve lista vazia.
	SettleEvent(ctx context.Context, eventID string, status events.BetStatus) ([]Bet, error)
}
