package puzzle

const (
	// AttemptPenalty is subtracted per attempt after the first.
	AttemptPenalty = 10
	// MinAward is the floor for any completed stage.
	MinAward = 10

	// Star thresholds on a level's cumulative score.
	OneStarScore   = 400
	TwoStarScore   = 700
	ThreeStarScore = 1000

	// QuizPoints is the default award for a correct quiz answer.
	QuizPoints = 100

	// HintAfterWrong is the number of wrong submissions before hints unlock.
	HintAfterWrong = 2
)

// Award returns the points for a stage completed on the given attempt
// (1-based, cumulative up to and including the correct one).
func Award(basePoints, attempts int) int {
	if attempts < 1 {
		attempts = 1
	}
	pts := basePoints - (attempts-1)*AttemptPenalty
	if pts < MinAward {
		return MinAward
	}
	return pts
}

// Stars maps a level's cumulative score to 0..3 stars.
func Stars(score int) int {
	switch {
	case score >= ThreeStarScore:
		return 3
	case score >= TwoStarScore:
		return 2
	case score >= OneStarScore:
		return 1
	default:
		return 0
	}
}

// Attempts counts submissions for one stage activation.
type Attempts struct{ n int }

// Increment records one submission, whatever its outcome.
func (a *Attempts) Increment() { a.n++ }

// Reset zeroes the counter on activation.
func (a *Attempts) Reset() { a.n = 0 }

// Count returns the number of submissions so far.
func (a Attempts) Count() int { return a.n }
