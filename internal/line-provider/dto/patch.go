package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/bet-settlement/internal/line-provider/lifecycle"
	"github.com/radieske/bet-settlement/pkg/contracts/events"
)

// DecodePatch lê o corpo do PUT /event distinguindo campo ausente de campo null.
func DecodePatch(body []byte) (string, lifecycle.Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", lifecycle.Patch{}, fmt.Errorf("%w: bad json", lifecycle.ErrValidation)
	}

	var id string
	if v, ok := raw["event_id"]; !ok || isNull(v) {
		return "", lifecycle.Patch{}, fmt.Errorf("%w: event_id is required", lifecycle.ErrValidation)
	} else if err := json.Unmarshal(v, &id); err != nil {
		return "", lifecycle.Patch{}, fmt.Errorf("%w: event_id must be a string", lifecycle.ErrValidation)
	}

	var p lifecycle.Patch
	if v, ok := raw["coefficient"]; ok {
		if isNull(v) {
			p.Coefficient = lifecycle.Null[decimal.Decimal]()
		} else {
			var c decimal.Decimal
			if err := c.UnmarshalJSON(v); err != nil {
				return "", lifecycle.Patch{}, fmt.Errorf("%w: coefficient must be a decimal", lifecycle.ErrValidation)
			}
			p.Coefficient = lifecycle.Value(c)
		}
	}
	if v, ok := raw["deadline"]; ok {
		if isNull(v) {
			p.Deadline = lifecycle.Null[time.Time]()
		} else {
			sec, err := unixSeconds(v)
			if err != nil {
				return "", lifecycle.Patch{}, fmt.Errorf("%w: deadline must be unix seconds", lifecycle.ErrValidation)
			}
			p.Deadline = lifecycle.Value(time.Unix(sec, 0))
		}
	}
	if v, ok := raw["state"]; ok {
		if isNull(v) {
			p.State = lifecycle.Null[events.EventState]()
		} else {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return "", lifecycle.Patch{}, fmt.Errorf("%w: state must be a string", lifecycle.ErrValidation)
			}
			p.State = lifecycle.Value(events.EventState(s))
		}
	}
	return id, p, nil
}

// unixSeconds aceita inteiros e números inteiros escritos com fração ("1700000000.0")
func unixSeconds(v json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() || d.Abs().GreaterThan(decimal.New(math.MaxInt64, 0)) {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	return d.IntPart(), nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
