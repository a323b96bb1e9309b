package lifecycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// Field é um campo de atualização parcial.
// Set=false: campo ausente na requisição, valor atual preservado.
// Set=true, Null=true: campo enviado como null, valor atual limpo.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Value cria um campo presente com valor.
func Value[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

// Null cria um campo presente e nulo.
func Null[T any]() Field[T] { return Field[T]{Set: true, Null: true} }

// Patch carrega só os campos enviados em um create-or-update.
type Patch struct {
	Coefficient Field[decimal.Decimal]
	Deadline    Field[time.Time]
	State       Field[events.EventState]
}

func (p Patch) validate() error {
	if c := p.Coefficient; c.Set && !c.Null && !c.Value.IsPositive() {
		return fmt.Errorf("%w: coefficient must be positive", ErrValidation)
	}
	if s := p.State; s.Set {
		if s.Null {
			return fmt.Errorf("%w: state cannot be null", ErrValidation)
		}
		if !s.Value.Valid() {
			return fmt.Errorf("%w: unknown state %q", ErrValidation, s.Value)
		}
	}
	return nil
}

// apply grava no evento apenas os campos presentes.
func (p Patch) apply(e *store.Event) {
	if c := p.Coefficient; c.Set {
		if c.Null {
			e.Coefficient = decimal.NullDecimal{}
		} else {
			e.Coefficient = decimal.NewNullDecimal(c.Value)
		}
	}
	if d := p.Deadline; d.Set {
		if d.Null {
			e.Deadline = nil
		} else {
			v := d.Value
			e.Deadline = &v
		}
	}
	if s := p.State; s.Set {
		e.State = s.Value
	}
}
