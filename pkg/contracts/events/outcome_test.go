package events

import (
	"errors"
	"testing"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		body string
		want Outcome
	}{
		{"1:FINISHED_WIN", Outcome{EventID: "1", State: StateFinishedWin}},
		{"E2:FINISHED_LOSE", Outcome{EventID: "E2", State: StateFinishedLose}},
		{"league:42:FINISHED_WIN", Outcome{EventID: "league:42", State: StateFinishedWin}},
	}
	for _, test := range tests {
		got, err := ParseOutcome([]byte(test.body))
		if err != nil {
			t.Errorf("parse %q: %v", test.body, err)
			continue
		}
		if got != test.want {
			t.Errorf("parse %q: want %+v got %+v", test.body, test.want, got)
		}
	}
}

func TestParseOutcomeMalformed(t *testing.T) {
	tests := []string{
		"",
		"no-separator",
		":FINISHED_WIN",
		"E1:",
		"E1:NEW",
		"E1:finished_win",
		"E1:FINISHED_DRAW",
		"E1:FINISHED_WIN ",
		"\xff\xfe:FINISHED_WIN",
	}
	for _, body := range tests {
		_, err := ParseOutcome([]byte(body))
		if !errors.Is(err, ErrMalformedOutcome) {
			t.Errorf("parse %q: want ErrMalformedOutcome got %v", body, err)
		}
	}
}

func TestOutcomeEncodeRoundTrip(t *testing.T) {
	o, err := NewOutcome("E1", StateFinishedLose)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(o.Encode()); got != "E1:FINISHED_LOSE" {
		t.Fatalf("encode: got %q", got)
	}
	back, err := ParseOutcome(o.Encode())
	if err != nil || back != o {
		t.Fatalf("round trip: got %+v, %v", back, err)
	}
}

func TestOutcomeBetStatus(t *testing.T) {
	if s := (Outcome{EventID: "x", State: StateFinishedWin}).BetStatus(); s != BetWin {
		t.Errorf("win maps to %s", s)
	}
	if s := (Outcome{EventID: "x", State: StateFinishedLose}).BetStatus(); s != BetLose {
		t.Errorf("lose maps to %s", s)
	}
}

func TestNewOutcomeRejectsNonTerminal(t *testing.T) {
	if _, err := NewOutcome("E1", StateNew); !errors.Is(err, ErrMalformedOutcome) {
		t.Fatalf("want ErrMalformedOutcome got %v", err)
	}
}
