// internal/puzzle/types.go
//
// Core type definitions for the puzzle state machine.
// Defines:
//   - Kind: the mini-game variant (sequence, matching, choice, click_order,
//     quiz).
//   - ClearMode / Policy: what happens to the slots after a wrong submission.
//   - Stage: the immutable definition of one mini-game instance.
//   - Assignment: the current slot → element mapping.
//   - State: the lifecycle of a stage activation.

package puzzle

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies a mini-game variant. The machine is shared by all kinds;
// the kind only selects the evaluation strategy and the default Policy.
type Kind string

const (
	KindSequence   Kind = "sequence"    // drag elements into ordered slots
	KindMatching   Kind = "matching"    // drag elements onto named slots
	KindChoice     Kind = "choice"      // drop a single element on one slot
	KindClickOrder Kind = "click_order" // click elements in order, checked per click
	KindQuiz       Kind = "quiz"        // one answer per question, no retry
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSequence, KindMatching, KindChoice, KindClickOrder, KindQuiz:
		return true
	default:
		return false
	}
}

// ClearMode selects which slots are emptied after an incorrect submission.
type ClearMode string

const (
	ClearWrong ClearMode = "wrong" // keep slots that were already correct
	ClearAll   ClearMode = "all"   // start over
)

// Policy is the per-kind behaviour of the machine.
type Policy struct {
	Clear ClearMode
	// EagerSubmit makes the machine evaluate on its own as soon as a
	// placement is wrong or the last slot is filled (click-order input).
	EagerSubmit bool
	// OneShot completes the stage on its first evaluation, right or wrong.
	// A wrong answer reveals the accepted one and earns nothing.
	OneShot bool
}

// DefaultPolicy returns the policy a kind uses unless its stage overrides
// the clear mode.
func DefaultPolicy(k Kind) Policy {
	switch k {
	case KindChoice:
		return Policy{Clear: ClearAll}
	case KindClickOrder:
		return Policy{Clear: ClearAll, EagerSubmit: true}
	case KindQuiz:
		return Policy{Clear: ClearAll, EagerSubmit: true, OneShot: true}
	default:
		return Policy{Clear: ClearWrong}
	}
}

// Stage is one mini-game instance within a level. Treat it as immutable once
// loaded: the machine keeps its own copy.
type Stage struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Slots       []string          `json:"slots"`       // required slots, presentation order
	Answer      map[string]string `json:"-"`           // slot → accepted element
	Distractors []string          `json:"distractors"` // selectable elements that fit no slot
	BasePoints  int               `json:"basePoints"`
	MaxHints    int               `json:"maxHints"`
	Clear       ClearMode         `json:"clear,omitempty"` // empty = kind default
}

// OrderedStage builds a stage whose answer is an ordered element sequence.
// Slots are named "1".."n".
func OrderedStage(id string, kind Kind, order []string) Stage {
	st := Stage{ID: id, Kind: kind, Answer: make(map[string]string, len(order))}
	for i, el := range order {
		slot := strconv.Itoa(i + 1)
		st.Slots = append(st.Slots, slot)
		st.Answer[slot] = el
	}
	return st
}

// MatchingStage builds a stage from slot → element pairs. Slots are kept in
// lexical order so presentation is stable.
func MatchingStage(id string, pairs map[string]string) Stage {
	st := Stage{ID: id, Kind: KindMatching, Answer: make(map[string]string, len(pairs))}
	for slot, el := range pairs {
		st.Slots = append(st.Slots, slot)
		st.Answer[slot] = el
	}
	sort.Strings(st.Slots)
	return st
}

// ChoiceStage builds a single-slot stage; options other than the answer
// become distractors.
func ChoiceStage(id, slot, answer string, options []string) Stage {
	return singleSlot(id, KindChoice, slot, answer, options)
}

// QuizStage builds a one-shot question. BasePoints defaults to QuizPoints.
func QuizStage(id, slot, answer string, options []string) Stage {
	st := singleSlot(id, KindQuiz, slot, answer, options)
	st.BasePoints = QuizPoints
	return st
}

func singleSlot(id string, kind Kind, slot, answer string, options []string) Stage {
	st := Stage{ID: id, Kind: kind, Slots: []string{slot}, Answer: map[string]string{slot: answer}}
	for _, o := range options {
		if o != answer {
			st.Distractors = append(st.Distractors, o)
		}
	}
	return st
}

// Policy returns the effective policy of the stage.
func (s *Stage) Policy() Policy {
	p := DefaultPolicy(s.Kind)
	if s.Clear != "" {
		p.Clear = s.Clear
	}
	return p
}

// Elements returns every selectable element: answer elements in slot order,
// then distractors. Duplicates are dropped.
func (s *Stage) Elements() []string {
	seen := make(map[string]struct{}, len(s.Slots)+len(s.Distractors))
	var out []string
	add := func(el string) {
		if _, ok := seen[el]; ok || el == "" {
			return
		}
		seen[el] = struct{}{}
		out = append(out, el)
	}
	for _, slot := range s.Slots {
		add(s.Answer[slot])
	}
	for _, el := range s.Distractors {
		add(el)
	}
	return out
}

// Validate checks the structural rules a stage must satisfy before it can be
// activated.
func (s *Stage) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("stage: id is required")
	}
	if !s.Kind.IsValid() {
		return fmt.Errorf("stage %s: unknown kind %q", s.ID, s.Kind)
	}
	if len(s.Slots) == 0 {
		return fmt.Errorf("stage %s: no slots", s.ID)
	}
	if (s.Kind == KindChoice || s.Kind == KindQuiz) && len(s.Slots) != 1 {
		return fmt.Errorf("stage %s: %s stages take exactly one slot", s.ID, s.Kind)
	}
	if s.Clear != "" && s.Clear != ClearWrong && s.Clear != ClearAll {
		return fmt.Errorf("stage %s: unknown clear mode %q", s.ID, s.Clear)
	}
	if s.BasePoints < 0 || s.MaxHints < 0 {
		return fmt.Errorf("stage %s: negative points or hints", s.ID)
	}
	seen := make(map[string]struct{}, len(s.Slots))
	owner := make(map[string]string, len(s.Slots))
	for _, slot := range s.Slots {
		if slot == "" {
			return fmt.Errorf("stage %s: empty slot name", s.ID)
		}
		if _, dup := seen[slot]; dup {
			return fmt.Errorf("stage %s: duplicate slot %q", s.ID, slot)
		}
		seen[slot] = struct{}{}
		el := s.Answer[slot]
		if el == "" {
			return fmt.Errorf("stage %s: slot %q has no accepted element", s.ID, slot)
		}
		// An element sits on one slot at a time.
		if prev, dup := owner[el]; dup {
			return fmt.Errorf("stage %s: element %q accepted by two slots (%s, %s)", s.ID, el, prev, slot)
		}
		owner[el] = slot
	}
	if len(s.Answer) != len(s.Slots) {
		return fmt.Errorf("stage %s: answer names slots that are not required", s.ID)
	}
	return nil
}

// clone deep-copies the stage so later edits by the caller cannot reach the
// machine's copy.
func (s Stage) clone() Stage {
	out := s
	out.Slots = append([]string(nil), s.Slots...)
	out.Distractors = append([]string(nil), s.Distractors...)
	out.Answer = make(map[string]string, len(s.Answer))
	for k, v := range s.Answer {
		out.Answer[k] = v
	}
	return out
}

// Assignment maps a slot to the element currently placed on it. Empty slots
// are absent.
type Assignment map[string]string

// Clone returns a copy of a.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// holder returns the slot holding el, if any.
func (a Assignment) holder(el string) (string, bool) {
	for slot, v := range a {
		if v == el {
			return slot, true
		}
	}
	return "", false
}

// State is the lifecycle of one stage activation.
type State int

const (
	StateInactive State = iota
	StateActive
	StateAwaitingSubmission
	StateEvaluating
	StateCorrect
	StateIncorrect
	StateCompleted
)

var stateNames = [...]string{
	StateInactive:           "inactive",
	StateActive:             "active",
	StateAwaitingSubmission: "awaiting_submission",
	StateEvaluating:         "evaluating",
	StateCorrect:            "correct",
	StateIncorrect:          "incorrect",
	StateCompleted:          "completed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Hint points at one unsatisfied slot and the element it accepts.
type Hint struct {
	Slot    string `json:"slot"`
	Element string `json:"element"`
}

// Result is the outcome of a submission.
type Result struct {
	Correct    bool       `json:"correct"`
	WrongSlots []string   `json:"wrongSlots,omitempty"`
	Attempts   int        `json:"attempts"`
	State      State      `json:"state"`
	Reveal     Assignment `json:"reveal,omitempty"` // accepted answer after a wrong quiz answer
}
