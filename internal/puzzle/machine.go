// internal/puzzle/machine.go
//
// Core state machine for a single puzzle stage.
// Responsibilities:
//   - Activate a stage: reset attempts, clear slots, bump the generation.
//   - Validate and apply slot placements (known slot, known element, moves).
//   - Evaluate submissions with the kind's strategy and apply the clear policy.
//   - Track state transitions: active → awaiting_submission → evaluating →
//     correct → completed, or incorrect → active. One-shot stages also go
//     incorrect → completed, revealing the accepted answer.
//
// Notes:
//   - Submitting an already completed stage returns the completed result and
//     changes nothing, so duplicate submit signals (double taps) are harmless.
//   - Render notifications and audio cues go out on the Bus; the machine never
//     waits for the host.
//   - A Machine is not safe for concurrent use.
package puzzle

import "fmt"

// Machine drives one stage instance.
type Machine struct {
	stage    Stage
	policy   Policy
	eval     evaluator
	pool     map[string]struct{} // selectable elements
	state    State
	slots    Assignment
	attempts Attempts
	wrong    int    // incorrect submissions since activation
	hints    int    // hints handed out since activation
	final    Result // result recorded at completion
	gen      uint64
	bus      *Bus
}

// NewMachine returns an inactive machine publishing on bus (which may be nil).
func NewMachine(bus *Bus) *Machine {
	return &Machine{bus: bus, slots: Assignment{}}
}

// Activate loads st and moves to Active with zero attempts and empty slots.
// A completed machine refuses activation.
func (m *Machine) Activate(st Stage) error {
	if m.state == StateCompleted {
		return invalid("activate", m.state)
	}
	if err := st.Validate(); err != nil {
		return err
	}
	m.stage = st.clone()
	m.policy = m.stage.Policy()
	m.eval = evaluatorFor(m.stage.Kind)
	m.pool = make(map[string]struct{})
	for _, el := range m.stage.Elements() {
		m.pool[el] = struct{}{}
	}
	m.reset()
	m.bus.Publish(Event{Kind: EventStageActivated, Stage: m.stage.ID})
	return nil
}

// Restart re-activates the loaded stage.
func (m *Machine) Restart() error {
	if m.state == StateInactive || m.state == StateCompleted {
		return invalid("restart", m.state)
	}
	m.reset()
	m.bus.Publish(Event{Kind: EventStageActivated, Stage: m.stage.ID})
	return nil
}

func (m *Machine) reset() {
	m.attempts.Reset()
	m.slots = Assignment{}
	m.wrong, m.hints = 0, 0
	m.final = Result{}
	m.gen++
	m.state = StateActive
}

// AssignSlot places el on slot, or clears the slot when el is empty. An
// element already placed elsewhere is moved. Valid only while Active or
// AwaitingSubmission.
func (m *Machine) AssignSlot(slot, el string) error {
	if !m.accepting() {
		return invalid("assign", m.state)
	}
	if _, ok := m.stage.Answer[slot]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if el != "" {
		if _, ok := m.pool[el]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownElement, el)
		}
	}
	m.place(slot, el)
	m.settle()
	if m.policy.EagerSubmit && el != "" {
		m.eager(slot)
	}
	return nil
}

// Select places el on the first empty slot in slot order and returns that
// slot. Selecting an element that is already placed is a no-op.
func (m *Machine) Select(el string) (string, error) {
	if !m.accepting() {
		return "", invalid("select", m.state)
	}
	if _, ok := m.pool[el]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownElement, el)
	}
	if slot, ok := m.slots.holder(el); ok {
		return slot, nil
	}
	for _, slot := range m.stage.Slots {
		if _, filled := m.slots[slot]; !filled {
			return slot, m.AssignSlot(slot, el)
		}
	}
	return "", invalid("select", m.state)
}

// Submit evaluates the current placement. It counts one attempt and ends in
// Completed (correct) or back in Active (incorrect). Outside
// AwaitingSubmission it fails with ErrInvalidTransition, except on a
// completed stage where it returns the completed result unchanged.
func (m *Machine) Submit() (Result, error) {
	switch m.state {
	case StateCompleted:
		return m.final, nil
	case StateAwaitingSubmission:
	default:
		return Result{Attempts: m.attempts.Count(), State: m.state}, invalid("submit", m.state)
	}
	m.cue(CueSubmit)
	return m.evaluate(false), nil
}

// Hint reveals the accepted element of the first unsatisfied slot. Hints
// unlock after HintAfterWrong incorrect submissions and are capped by the
// stage's MaxHints.
func (m *Machine) Hint() (Hint, error) {
	if !m.accepting() {
		return Hint{}, invalid("hint", m.state)
	}
	if m.wrong < HintAfterWrong || m.hints >= m.stage.MaxHints {
		return Hint{}, ErrNoHint
	}
	for _, slot := range m.stage.Slots {
		want := m.stage.Answer[slot]
		if m.slots[slot] != want {
			m.hints++
			m.cue(CueHint)
			return Hint{Slot: slot, Element: want}, nil
		}
	}
	return Hint{}, ErrNoHint
}

// place writes one slot and publishes every slot it changed.
func (m *Machine) place(slot, el string) {
	cur, filled := m.slots[slot]
	if el == "" {
		if filled {
			delete(m.slots, slot)
			m.slotChanged(slot, "")
		}
		return
	}
	if filled && cur == el {
		return
	}
	if prev, ok := m.slots.holder(el); ok {
		delete(m.slots, prev)
		m.slotChanged(prev, "")
	}
	m.slots[slot] = el
	m.slotChanged(slot, el)
}

// settle derives Active/AwaitingSubmission from the slot fill.
func (m *Machine) settle() {
	if len(m.slots) == len(m.stage.Slots) {
		m.state = StateAwaitingSubmission
	} else {
		m.state = StateActive
	}
}

// eager evaluates right after a placement: a wrong placement or a full
// board is a submission; a right placement on a partial board is only cued.
func (m *Machine) eager(slot string) {
	switch {
	case m.slots[slot] != m.stage.Answer[slot]:
		m.evaluate(true)
	case m.state == StateAwaitingSubmission:
		m.evaluate(false)
	default:
		m.cue(CueCorrectClick)
	}
}

// evaluate runs the kind's strategy and applies the outcome.
func (m *Machine) evaluate(partial bool) Result {
	m.state = StateEvaluating
	m.attempts.Increment()
	wrong := m.eval(&m.stage, m.slots, partial)
	correct := len(wrong) == 0 && len(m.slots) == len(m.stage.Slots)

	if correct {
		m.state = StateCorrect
		m.bus.Publish(Event{Kind: EventEvaluated, Stage: m.stage.ID, Correct: true})
		switch m.stage.Kind {
		case KindClickOrder:
			m.cue(CueSequenceComplete)
		case KindQuiz:
			m.cue(CueCorrectAnswer)
		default:
			m.cue(CueCorrect)
		}
		return m.complete(Result{Correct: true})
	}

	m.state = StateIncorrect
	m.wrong++
	if m.policy.OneShot {
		reveal := Assignment(m.stage.Answer).Clone()
		m.bus.Publish(Event{Kind: EventEvaluated, Stage: m.stage.ID, WrongSlots: wrong, Reveal: reveal.Clone()})
		m.cue(CueWrongAnswer)
		return m.complete(Result{WrongSlots: wrong, Reveal: reveal})
	}
	m.bus.Publish(Event{Kind: EventEvaluated, Stage: m.stage.ID, WrongSlots: wrong})
	if m.stage.Kind == KindClickOrder {
		m.cue(CueWrongClick)
	} else {
		m.cue(CueWrong)
	}
	emptied := wrong
	if m.policy.Clear == ClearAll {
		emptied = m.stage.Slots
	}
	for _, slot := range emptied {
		m.place(slot, "")
	}
	m.settle()
	return Result{WrongSlots: wrong, Attempts: m.attempts.Count(), State: m.state}
}

// complete moves to the terminal state and records r as the final result.
func (m *Machine) complete(r Result) Result {
	r.Attempts = m.attempts.Count()
	r.State = StateCompleted
	m.state = StateCompleted
	m.final = r
	m.bus.Publish(Event{Kind: EventStageCompleted, Stage: m.stage.ID})
	return m.final
}

func (m *Machine) accepting() bool {
	return m.state == StateActive || m.state == StateAwaitingSubmission
}

func (m *Machine) slotChanged(slot, el string) {
	m.bus.Publish(Event{Kind: EventSlotChanged, Stage: m.stage.ID, Slot: slot, Element: el})
}

func (m *Machine) cue(c Cue) {
	m.bus.Publish(Event{Kind: EventCue, Stage: m.stage.ID, Cue: c})
}

// State reports the current state.
func (m *Machine) State() State { return m.state }

// Completed reports whether the stage reached its terminal state.
func (m *Machine) Completed() bool { return m.state == StateCompleted }

// Stage returns a copy of the loaded stage.
func (m *Machine) Stage() Stage { return m.stage.clone() }

// Assignment returns a copy of the current placements.
func (m *Machine) Assignment() Assignment { return m.slots.Clone() }

// Attempts returns the attempt count of the current activation.
func (m *Machine) Attempts() int { return m.attempts.Count() }

// Points returns what the completed stage is worth: Award for the attempt
// count, or 0 for a one-shot stage answered wrong. An unfinished stage is
// worth nothing.
func (m *Machine) Points() int {
	switch {
	case m.state != StateCompleted:
		return 0
	case m.policy.OneShot && !m.final.Correct:
		return 0
	case m.policy.OneShot:
		return m.stage.BasePoints
	}
	return Award(m.stage.BasePoints, m.final.Attempts)
}

// Result returns the result recorded at completion.
func (m *Machine) Result() Result { return m.final }

// CompletionAttempts returns the attempt count at which the stage was solved,
// or 0 if it is not completed.
func (m *Machine) CompletionAttempts() int { return m.final.Attempts }

// Generation changes on every activation; deferred work compares it to detect
// that the stage moved on.
func (m *Machine) Generation() uint64 { return m.gen }

// HintAvailable reports whether Hint would currently succeed.
func (m *Machine) HintAvailable() bool {
	if !m.accepting() || m.wrong < HintAfterWrong || m.hints >= m.stage.MaxHints {
		return false
	}
	for _, slot := range m.stage.Slots {
		if m.slots[slot] != m.stage.Answer[slot] {
			return true
		}
	}
	return false
}

// Snapshot is a read-only view for hosts.
type Snapshot struct {
	StageID       string     `json:"stageId"`
	Kind          Kind       `json:"kind"`
	Slots         []string   `json:"slots"`
	Elements      []string   `json:"elements"`
	Assignment    Assignment `json:"assignment"`
	State         State      `json:"state"`
	Attempts      int        `json:"attempts"`
	HintsUsed     int        `json:"hintsUsed"`
	HintAvailable bool       `json:"hintAvailable"`
	Generation    uint64     `json:"generation"`
}

// Snapshot captures the machine's current view.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		StageID:       m.stage.ID,
		Kind:          m.stage.Kind,
		Slots:         append([]string(nil), m.stage.Slots...),
		Elements:      m.stage.Elements(),
		Assignment:    m.slots.Clone(),
		State:         m.state,
		Attempts:      m.attempts.Count(),
		HintsUsed:     m.hints,
		HintAvailable: m.HintAvailable(),
		Generation:    m.gen,
	}
}
