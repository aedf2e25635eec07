package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestFeedSplitRecordMatchesUnsplit(t *testing.T) {
	whole := NewReader(nil).Feed([]byte(`{"type":"state","moves":""}` + "\n"))

	r := NewReader(nil)
	first := r.Feed([]byte(`{"type":"st`))
	if len(first) != 0 {
		t.Fatalf("partial chunk produced %d events", len(first))
	}
	if r.Pending() == 0 {
		t.Fatalf("expected pending fragment")
	}
	second := r.Feed([]byte(`ate","moves":""}` + "\n"))
	if len(whole) != 1 || len(second) != 1 {
		t.Fatalf("want 1 event each, got whole=%d split=%d", len(whole), len(second))
	}
	if whole[0].Kind != KindState || second[0].Kind != KindState {
		t.Fatalf("unexpected kinds: %v %v", whole[0].Kind, second[0].Kind)
	}
	if *whole[0].State != *second[0].State {
		t.Fatalf("split decode differs: %+v vs %+v", *whole[0].State, *second[0].State)
	}
	if r.Pending() != 0 {
		t.Fatalf("pending not drained: %d", r.Pending())
	}
}

func TestFeedKeepAliveLinesAreSkipped(t *testing.T) {
	r := NewReader(nil)
	in := `{"type":"gameState","moves":"e2e4"}` + "\n\n" + `{"type":"gameState","moves":"e2e4 e7e5"}` + "\n"
	evs := r.Feed([]byte(in))
	if len(evs) != 2 {
		t.Fatalf("want 2 events, got %d", len(evs))
	}
	if evs[1].State.Moves != "e2e4 e7e5" {
		t.Fatalf("order not preserved: %q", evs[1].State.Moves)
	}
	if r.Dropped() != 0 {
		t.Fatalf("blank line counted as dropped")
	}
}

func TestFeedDropsMalformedLines(t *testing.T) {
	r := NewReader(nil)
	evs := r.Feed([]byte("not json\r\n{\"type\":\"chatLine\",\"username\":\"bob\",\"text\":\"hi\"}\r\n"))
	if len(evs) != 1 || evs[0].Kind != KindChat || evs[0].Chat.Username != "bob" {
		t.Fatalf("unexpected events: %+v", evs)
	}
	if r.Dropped() != 1 {
		t.Fatalf("want 1 dropped, got %d", r.Dropped())
	}
}

func TestFeedByteAtATime(t *testing.T) {
	in := `{"type":"gameFull","id":"abc","white":{"id":"alice","name":"Alice"},"black":{"id":"bob"},` +
		`"initialFen":"startpos","state":{"type":"gameState","moves":"e2e4","wtime":60000,"btime":59000,"status":"started"}}` + "\n" +
		`{"type":"opponentGone","gone":true}` + "\n"
	r := NewReader(nil)
	var evs []Event
	for i := 0; i < len(in); i++ {
		evs = append(evs, r.Feed([]byte{in[i]})...)
	}
	if len(evs) != 2 {
		t.Fatalf("want 2 events, got %d", len(evs))
	}
	full := evs[0].Full
	if evs[0].Kind != KindFull || full == nil {
		t.Fatalf("first event not full: %+v", evs[0])
	}
	if full.ID != "abc" || full.White.DisplayName() != "Alice" || full.Black.DisplayName() != "bob" {
		t.Fatalf("players not decoded: %+v", full)
	}
	if !full.State.HasClock || full.State.WhiteTimeMs != 60000 || full.State.BlackTimeMs != 59000 {
		t.Fatalf("clock not decoded: %+v", full.State)
	}
	if evs[1].Kind != KindOther || evs[1].Type != "opponentGone" || len(evs[1].Raw) == 0 {
		t.Fatalf("unknown tag should be kept as other: %+v", evs[1])
	}
}

func TestDecodeClockFieldAliases(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"state","moves":"e2e4","status":"Started","whiteTimeMs":1000,"blackTimeMs":2000,"winner":"White","bdraw":true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	st := ev.State
	if st.WhiteTimeMs != 1000 || st.BlackTimeMs != 2000 || !st.HasClock {
		t.Fatalf("clock aliases not honoured: %+v", st)
	}
	if st.Status != "started" || st.Winner != "white" || !st.BlackDrawOffer {
		t.Fatalf("normalisation failed: %+v", st)
	}

	ev, err = Decode([]byte(`{"type":"state","moves":""}`))
	if err != nil || ev.State.HasClock {
		t.Fatalf("missing clocks must leave HasClock false: %+v %v", ev.State, err)
	}
}

func TestFlushTrailingRecord(t *testing.T) {
	r := NewReader(nil)
	if evs := r.Feed([]byte(`{"type":"state","moves":"d2d4"}`)); len(evs) != 0 {
		t.Fatalf("unterminated record should wait")
	}
	evs := r.Flush()
	if len(evs) != 1 || evs[0].State.Moves != "d2d4" {
		t.Fatalf("flush failed: %+v", evs)
	}
}

func TestConsumeReportsDisconnect(t *testing.T) {
	body := strings.NewReader(`{"type":"state","moves":"e2e4"}` + "\n" + `{"type":"state","moves":"e2e4 e7e5"}`)
	var got []string
	err := NewReader(nil).Consume(context.Background(), iotest.OneByteReader(body), func(ev Event) {
		got = append(got, ev.State.Moves)
	})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("want ErrDisconnected, got %v", err)
	}
	if len(got) != 2 || got[1] != "e2e4 e7e5" {
		t.Fatalf("events: %v", got)
	}
}

func TestConsumeTransportError(t *testing.T) {
	boom := errors.New("reset by peer")
	body := io.MultiReader(strings.NewReader(`{"type":"state","moves":""}`+"\n"), iotest.ErrReader(boom))
	n := 0
	err := NewReader(nil).Consume(context.Background(), body, func(Event) { n++ })
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, boom) {
		t.Fatalf("want TransportError wrapping boom, got %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 event before failure, got %d", n)
	}
}

func TestConsumeHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewReader(nil).Consume(ctx, strings.NewReader("{}\n"), func(Event) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestStartedGameID(t *testing.T) {
	cases := map[string]string{
		`{"id":"abc123"}`:                             "abc123",
		`{"type":"gameStart","game":{"gameId":"g7"}}`: "g7",
		`{"type":"gameStart","game":{"id":"g8"}}`:     "g8",
		`{"type":"opponentGone","gone":true}`:         "",
		`{"type":"gameState","moves":"e2e4"}`:         "",
	}
	for line, want := range cases {
		ev, err := Decode([]byte(line))
		if err != nil {
			t.Fatalf("Decode(%s): %v", line, err)
		}
		if got := ev.StartedGameID(); got != want {
			t.Fatalf("StartedGameID(%s) = %q, want %q", line, got, want)
		}
	}
}
