package puzzle

// evaluator returns the slots whose placement does not match the stage's
// answer, in slot order. With partial set, empty slots are not counted.
type evaluator func(st *Stage, a Assignment, partial bool) []string

func evaluatorFor(k Kind) evaluator {
	switch k {
	case KindMatching:
		return evaluatePairs
	case KindChoice, KindQuiz:
		return evaluateChoice
	default:
		return evaluateOrdered
	}
}

// evaluateOrdered compares the placed sequence with the answer sequence
// position by position.
func evaluateOrdered(st *Stage, a Assignment, partial bool) []string {
	var wrong []string
	for i, slot := range st.Slots {
		got, ok := a[slot]
		if !ok && partial {
			continue
		}
		if got != st.Answer[st.Slots[i]] {
			wrong = append(wrong, slot)
		}
	}
	return wrong
}

// evaluatePairs checks each slot on its own: the placed element must be the
// one the slot accepts. An element outside the answer never matches.
func evaluatePairs(st *Stage, a Assignment, partial bool) []string {
	var wrong []string
	for _, slot := range st.Slots {
		got, ok := a[slot]
		if !ok && partial {
			continue
		}
		if want, known := st.Answer[slot]; !known || got != want {
			wrong = append(wrong, slot)
		}
	}
	return wrong
}

// evaluateChoice accepts only the single correct element on the single slot.
func evaluateChoice(st *Stage, a Assignment, partial bool) []string {
	slot := st.Slots[0]
	got, ok := a[slot]
	if !ok && partial {
		return nil
	}
	if got != st.Answer[slot] {
		return []string{slot}
	}
	return nil
}
