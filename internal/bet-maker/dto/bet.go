package dto

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/internal/bet-maker/repo"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// limite do NUMERIC(10,2)
var maxAmount = decimal.New(1, 8)

var ErrInvalid = errors.New("invalid bet")

type CreateBetRequest struct {
	EventID string          `json:"event_id"`
	Amount  decimal.Decimal `json:"amount"` // aceita número ou string
}

// Validate exige event_id e amount positivo com no máximo duas casas.
func (r CreateBetRequest) Validate() error {
	switch {
	case r.EventID == "":
		return errors.Join(ErrInvalid, errors.New("event_id is required"))
	case !r.Amount.IsPositive():
		return errors.Join(ErrInvalid, errors.New("amount must be greater than 0"))
	case !r.Amount.Equal(r.Amount.Round(2)):
		return errors.Join(ErrInvalid, errors.New("amount must have at most 2 decimal places"))
	case r.Amount.GreaterThanOrEqual(maxAmount):
		return errors.Join(ErrInvalid, errors.New("amount is too large"))
	}
	return nil
}

type Bet struct {
	ID        string           `json:"id"`
	EventID   string           `json:"event_id"`
	Amount    string           `json:"amount"` // string decimal com duas casas, ex.: "100.50"
	Status    events.BetStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ActiveEvents struct {
	ActiveEvents []string `json:"active_events"`
}

type Detail struct {
	Detail string `json:"detail"`
}

func FromBet(b repo.Bet) Bet {
	return Bet{
		ID:        b.ID,
		EventID:   b.EventID,
		Amount:    b.Amount.StringFixed(2),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func FromBets(bs []repo.Bet) []Bet {
	out := make([]Bet, 0, len(bs))
	for _, b := range bs {
		out = append(out, FromBet(b))
	}
	return out
}
