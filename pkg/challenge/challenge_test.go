package challenge

import (
	"math/rand/v2"
	"testing"

	"github.com/MrCodeEU/facepunch/pkg/liveness"
)

// fixedPerm returns the same permutation on every draw.
type fixedPerm []int

func (f fixedPerm) Perm(n int) []int { return append([]int(nil), f[:n]...) }

func TestNext_DrawsDistinctKinds(t *testing.T) {
	seq := NewSequencer(rand.New(rand.NewPCG(1, 2)), 2)

	for i := 0; i < 200; i++ {
		q := seq.Next(nil)
		if len(q) != 2 {
			t.Fatalf("expected 2 challenges, got %d", len(q))
		}
		if q[0] == q[1] {
			t.Fatalf("challenges must be distinct, got %v", q)
		}
		for _, k := range q {
			if _, ok := instructions[k]; !ok {
				t.Fatalf("unknown kind %q", k)
			}
		}
	}
}

func TestNext_CoversAllKinds(t *testing.T) {
	seq := NewSequencer(rand.New(rand.NewPCG(7, 7)), 2)
	seen := make(map[Kind]bool)
	for i := 0; i < 200; i++ {
		for _, k := range seq.Next(nil) {
			seen[k] = true
		}
	}
	if len(seen) != len(Kinds) {
		t.Errorf("expected every kind to be drawn, saw %v", seen)
	}
}

func TestNext_KeepsExistingQueue(t *testing.T) {
	seq := NewSequencer(fixedPerm{0, 1, 2, 3}, 2)
	existing := Queue{TurnRight}

	got := seq.Next(existing)
	if len(got) != 1 || got[0] != TurnRight {
		t.Errorf("existing queue should be returned unchanged, got %v", got)
	}
}

func TestNext_UsesSourcePermutation(t *testing.T) {
	seq := NewSequencer(fixedPerm{1, 2, 0, 3}, 2)

	got := seq.Next(nil)
	if len(got) != 2 || got[0] != Smile || got[1] != TurnLeft {
		t.Errorf("expected [SMILE TURN_LEFT], got %v", got)
	}
}

func TestNewSequencer_ClampsSteps(t *testing.T) {
	if s := NewSequencer(nil, 0).Steps(); s != 1 {
		t.Errorf("steps 0 should clamp to 1, got %d", s)
	}
	if s := NewSequencer(nil, 9).Steps(); s != len(Kinds) {
		t.Errorf("steps 9 should clamp to %d, got %d", len(Kinds), s)
	}
	if q := NewSequencer(nil, 4).Next(nil); len(q) != 4 {
		t.Errorf("expected full permutation, got %v", q)
	}
}

func TestPasses(t *testing.T) {
	tests := []struct {
		kind    Kind
		signals liveness.Signals
		want    bool
	}{
		{Blink, liveness.Signals{Blinking: true, Orientation: liveness.Center}, true},
		{Blink, liveness.Signals{Smiling: true, Orientation: liveness.Center}, false},
		{Smile, liveness.Signals{Smiling: true, Orientation: liveness.Center}, true},
		{Smile, liveness.None, false},
		{TurnLeft, liveness.Signals{Orientation: liveness.TurnLeft}, true},
		{TurnLeft, liveness.Signals{Orientation: liveness.TurnRight}, false},
		{TurnRight, liveness.Signals{Orientation: liveness.TurnRight}, true},
		{TurnRight, liveness.None, false},
		{Kind("NOD"), liveness.Signals{Blinking: true, Smiling: true}, false},
	}

	for _, tt := range tests {
		if got := tt.kind.Passes(tt.signals); got != tt.want {
			t.Errorf("%s.Passes(%v) = %v, want %v", tt.kind, tt.signals, got, tt.want)
		}
	}
}

func TestEvaluate_SmileThenTurnLeft(t *testing.T) {
	seq := NewSequencer(nil, 2)
	q := Queue{Smile, TurnLeft}

	ev := seq.Evaluate(q, liveness.Signals{Smiling: true, Orientation: liveness.Center})
	if !ev.Advanced || ev.Completed {
		t.Fatalf("frame 1: expected advance without completion, got %+v", ev)
	}
	if len(ev.Queue) != 1 || ev.Queue[0] != TurnLeft {
		t.Fatalf("frame 1: expected [TURN_LEFT], got %v", ev.Queue)
	}
	if len(q) != 2 {
		t.Error("input queue must not be modified")
	}

	ev = seq.Evaluate(ev.Queue, liveness.Signals{Orientation: liveness.TurnLeft})
	if !ev.Advanced || !ev.Completed || len(ev.Queue) != 0 {
		t.Fatalf("frame 2: expected completion, got %+v", ev)
	}
}

func TestEvaluate_OutOfOrderDoesNotCount(t *testing.T) {
	seq := NewSequencer(nil, 2)
	q := Queue{Smile, TurnLeft}

	ev := seq.Evaluate(q, liveness.Signals{Orientation: liveness.TurnLeft})
	if ev.Advanced || len(ev.Queue) != 2 {
		t.Errorf("second challenge must not pass before the first, got %+v", ev)
	}
}

func TestEvaluate_OneStepPerFrame(t *testing.T) {
	seq := NewSequencer(nil, 2)
	q := Queue{Blink, Smile}

	ev := seq.Evaluate(q, liveness.Signals{Blinking: true, Smiling: true, Orientation: liveness.Center})
	if ev.Completed || len(ev.Queue) != 1 {
		t.Errorf("a single frame must pop at most one challenge, got %+v", ev)
	}
}

func TestEvaluate_EmptyQueue(t *testing.T) {
	ev := NewSequencer(nil, 2).Evaluate(nil, liveness.Signals{Blinking: true})
	if ev.Advanced || ev.Completed {
		t.Errorf("empty queue should neither advance nor complete, got %+v", ev)
	}
}

func TestPrompt(t *testing.T) {
	seq := NewSequencer(nil, 2)

	if got := seq.Prompt(Queue{Smile, TurnLeft}); got != "Step 1/2: Please smile!" {
		t.Errorf("unexpected prompt: %q", got)
	}
	if got := seq.Prompt(Queue{TurnLeft}); got != "Step 2/2: Please turn your head left!" {
		t.Errorf("unexpected prompt: %q", got)
	}
	if got := seq.Prompt(nil); got != "" {
		t.Errorf("empty queue prompt should be empty, got %q", got)
	}
}
