// Package challenge sequences the randomized liveness challenges a
// recognized subject must perform before being verified.
//
// A queue holds distinct challenge kinds drawn without replacement. Only
// the head of the queue is evaluated against a frame, so one favorable
// frame can never satisfy two steps at once.
package challenge

import (
	"fmt"
	"math/rand/v2"

	"github.com/MrCodeEU/facepunch/pkg/liveness"
)

// Kind is a single liveness action.
type Kind string

const (
	Blink     Kind = "BLINK"
	Smile     Kind = "SMILE"
	TurnLeft  Kind = "TURN_LEFT"
	TurnRight Kind = "TURN_RIGHT"
)

// Kinds is the full challenge set, in a fixed order that Source
// permutations index into.
var Kinds = []Kind{Blink, Smile, TurnLeft, TurnRight}

var instructions = map[Kind]string{
	Blink:     "blink",
	Smile:     "smile",
	TurnLeft:  "turn your head left",
	TurnRight: "turn your head right",
}

// Instruction returns the human-readable action for a kind.
func (k Kind) Instruction() string {
	if s, ok := instructions[k]; ok {
		return s
	}
	return string(k)
}

// Passes reports whether the signals satisfy the challenge.
func (k Kind) Passes(s liveness.Signals) bool {
	switch k {
	case Blink:
		return s.Blinking
	case Smile:
		return s.Smiling
	case TurnLeft:
		return s.Orientation == liveness.TurnLeft
	case TurnRight:
		return s.Orientation == liveness.TurnRight
	default:
		return false
	}
}

// Queue is an ordered sequence of pending challenges; the head is active.
type Queue []Kind

// Head returns the active challenge.
func (q Queue) Head() (Kind, bool) {
	if len(q) == 0 {
		return "", false
	}
	return q[0], true
}

// Source supplies random permutations. *rand.Rand satisfies it, which keeps
// sequencing replayable in tests.
type Source interface {
	Perm(n int) []int
}

type globalSource struct{}

func (globalSource) Perm(n int) []int { return rand.Perm(n) }

// Evaluation is the result of checking one frame against a queue.
type Evaluation struct {
	Queue     Queue
	Advanced  bool // the head was popped this frame
	Completed bool // the queue is now empty
}

// Sequencer draws and evaluates challenge queues.
type Sequencer struct {
	src   Source
	steps int
}

// NewSequencer creates a Sequencer drawing steps challenges per attempt.
// A nil source uses the auto-seeded package generator. steps is clamped
// to the size of the challenge set.
func NewSequencer(src Source, steps int) *Sequencer {
	if src == nil {
		src = globalSource{}
	}
	if steps < 1 {
		steps = 1
	}
	if steps > len(Kinds) {
		steps = len(Kinds)
	}
	return &Sequencer{src: src, steps: steps}
}

// Steps returns the number of challenges per attempt.
func (s *Sequencer) Steps() int {
	return s.steps
}

// Next returns q unchanged when it still has pending challenges, otherwise
// a freshly drawn queue of distinct kinds.
func (s *Sequencer) Next(q Queue) Queue {
	if len(q) > 0 {
		return q
	}

	perm := s.src.Perm(len(Kinds))
	next := make(Queue, s.steps)
	for i := range next {
		next[i] = Kinds[perm[i]]
	}
	return next
}

// Evaluate checks the head challenge against the frame's signals and pops
// it on a pass. The input queue is not modified.
func (s *Sequencer) Evaluate(q Queue, signals liveness.Signals) Evaluation {
	head, ok := q.Head()
	if !ok {
		return Evaluation{Queue: q}
	}
	if !head.Passes(signals) {
		return Evaluation{Queue: q}
	}

	rest := make(Queue, len(q)-1)
	copy(rest, q[1:])
	return Evaluation{
		Queue:     rest,
		Advanced:  true,
		Completed: len(rest) == 0,
	}
}

// Prompt renders the instruction for the active challenge, e.g.
// "Step 1/2: Please smile!". It returns "" for an empty queue.
func (s *Sequencer) Prompt(q Queue) string {
	head, ok := q.Head()
	if !ok {
		return ""
	}
	step := s.steps - len(q) + 1
	if step < 1 {
		step = 1
	}
	return fmt.Sprintf("Step %d/%d: Please %s!", step, s.steps, head.Instruction())
}
