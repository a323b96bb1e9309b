package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/internal/line-provider/store"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// DemoEvents são os eventos registrados no start quando SEED_EVENTS=true.
func DemoEvents(now time.Time) []store.Event {
	mk := func(id, coef string, in time.Duration) store.Event {
		d := now.Add(in).Truncate(time.Second)
		return store.Event{
			ID:          id,
			Coefficient: decimal.NewNullDecimal(decimal.RequireFromString(coef)),
			Deadline:    &d,
			State:       events.StateNew,
		}
	}
	return []store.Event{
		mk("1", "1.20", 600*time.Second),
		mk("2", "1.15", 60*time.Second),
		mk("3", "1.67", 90*time.Second),
	}
}
