package events

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// EventState é o estado de um evento no line-provider.
type EventState string

const (
	StateNew          EventState = "NEW"
	StateFinishedWin  EventState = "FINISHED_WIN"
	StateFinishedLose EventState = "FINISHED_LOSE"
)

// Valid reporta se o valor é um dos estados conhecidos.
func (s EventState) Valid() bool {
	switch s {
	case StateNew, StateFinishedWin, StateFinishedLose:
		return true
	}
	return false
}

// Terminal reporta se o estado encerra o evento (FINISHED_WIN | FINISHED_LOSE).
func (s EventState) Terminal() bool {
	return s == StateFinishedWin || s == StateFinishedLose
}

// BetStatus é o status de uma aposta no bet-maker.
type BetStatus string

const (
	BetNew  BetStatus = "NEW"
	BetWin  BetStatus = "WIN"
	BetLose BetStatus = "LOSE"
)

// ErrMalformedOutcome indica um corpo de mensagem que nunca vai ser interpretado.
// Erro permanente: a mensagem não deve ser reentregue.
var ErrMalformedOutcome = errors.New("malformed outcome notification")

// Outcome é a notificação publicada no exchange quando um evento termina.
// Formato no fio: "<event_id>:<FINISHED_WIN|FINISHED_LOSE>", texto UTF-8.
type Outcome struct {
	EventID string
	State   EventState
}

// NewOutcome valida o par (evento, estado terminal).
func NewOutcome(eventID string, state EventState) (Outcome, error) {
	if eventID == "" {
		return Outcome{}, fmt.Errorf("%w: empty event id", ErrMalformedOutcome)
	}
	if !state.Terminal() {
		return Outcome{}, fmt.Errorf("%w: state %q is not terminal", ErrMalformedOutcome, state)
	}
	return Outcome{EventID: eventID, State: state}, nil
}

// Encode serializa a notificação no formato do fio.
func (o Outcome) Encode() []byte {
	return []byte(o.EventID + ":" + string(o.State))
}

// BetStatus mapeia o estado terminal do evento para o status das apostas.
func (o Outcome) BetStatus() BetStatus {
	if o.State == StateFinishedWin {
		return BetWin
	}
	return BetLose
}

// ParseOutcome interpreta o corpo da mensagem.
// O separador considerado é o último ':' porque o estado nunca contém ':',
// enquanto o event_id é opaco.
func ParseOutcome(body []byte) (Outcome, error) {
	if !utf8.Valid(body) {
		return Outcome{}, fmt.Errorf("%w: body is not valid utf-8", ErrMalformedOutcome)
	}
	s := string(body)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Outcome{}, fmt.Errorf("%w: missing separator in %q", ErrMalformedOutcome, s)
	}
	return NewOutcome(s[:i], EventState(s[i+1:]))
}
