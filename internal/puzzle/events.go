// internal/puzzle/events.go
//
// Observer bus between the core and the host.
// The machine and the session controller publish fire-and-forget events
// (render notifications and audio cue requests); hosts subscribe and keep the
// returned cancel func to unsubscribe. Delivery is synchronous, in
// subscription order, on the caller's goroutine.

package puzzle

// EventKind names a notification published on the Bus.
type EventKind string

const (
	EventStageActivated EventKind = "stage_activated"
	EventSlotChanged    EventKind = "slot_changed"
	EventEvaluated      EventKind = "evaluation_result"
	EventStageCompleted EventKind = "stage_completed"
	EventCue            EventKind = "cue"

	// Session-level notifications published by the controller.
	EventPhaseChanged EventKind = "phase_changed"
	EventLevelLoad    EventKind = "level_load_requested"
	EventScore        EventKind = "score_changed"
)

// Cue is an audio cue identifier; playback belongs to the host.
type Cue string

const (
	CueSubmit           Cue = "submit"
	CueCorrect          Cue = "correct"
	CueWrong            Cue = "wrong"
	CueHint             Cue = "hint"
	CueCorrectClick     Cue = "correct_click"
	CueWrongClick       Cue = "wrong_click"
	CueSequenceComplete Cue = "sequence_complete"
	CueLevelComplete    Cue = "level_complete"
	CueCorrectAnswer    Cue = "correct_answer"
	CueWrongAnswer      Cue = "wrong_answer"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind       EventKind         `json:"kind"`
	Stage      string            `json:"stage,omitempty"`
	Slot       string            `json:"slot,omitempty"`
	Element    string            `json:"element,omitempty"` // empty on a cleared slot
	Correct    bool              `json:"correct,omitempty"`
	WrongSlots []string          `json:"wrongSlots,omitempty"`
	Reveal     map[string]string `json:"reveal,omitempty"` // accepted answer after a wrong quiz answer
	Cue        Cue               `json:"cue,omitempty"`
	Phase      string            `json:"phase,omitempty"`
	Level      int               `json:"level,omitempty"`
	Score      int               `json:"score,omitempty"`
}

type subscriber struct {
	id int
	fn func(Event)
}

// Bus is an explicit observer list. The zero value is ready to use and a nil
// *Bus drops every event. Not safe for concurrent use.
type Bus struct {
	subs []subscriber
	next int
}

// Subscribe registers fn and returns a func that removes it again.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	// Snapshot so a subscriber may unsubscribe while being notified.
	subs := append([]subscriber(nil), b.subs...)
	for _, s := range subs {
		s.fn(e)
	}
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	return len(b.subs)
}
