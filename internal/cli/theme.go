package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
)

// Terminal styles shared by every command.
var (
	cPrimary = lipgloss.Color("63")
	cAccent  = lipgloss.Color("205")
	cGood    = lipgloss.Color("42")
	cBad     = lipgloss.Color("196")
	cMuted   = lipgloss.Color("244")
	cGold    = lipgloss.Color("220")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	goldStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	mutedStyle = lipgloss.NewStyle().Foreground(cMuted)
	panel      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

// starsBadge renders a 0..3 star rating.
func starsBadge(n int) string {
	n = max(0, min(n, 3))
	return goldStyle.Render(strings.Repeat("★", n)) + mutedStyle.Render(strings.Repeat("☆", 3-n))
}

// eventLine renders one bus event for the play transcript; empty for events
// not worth a line.
func eventLine(e puzzle.Event) string {
	switch e.Kind {
	case puzzle.EventCue:
		switch e.Cue {
		case puzzle.CueCorrect, puzzle.CueCorrectClick, puzzle.CueSequenceComplete, puzzle.CueLevelComplete, puzzle.CueCorrectAnswer:
			return goodStyle.Render("♪ " + string(e.Cue))
		case puzzle.CueWrong, puzzle.CueWrongClick, puzzle.CueWrongAnswer:
			return badStyle.Render("♪ " + string(e.Cue))
		default:
			return mutedStyle.Render("♪ " + string(e.Cue))
		}
	case puzzle.EventStageActivated:
		return keyStyle.Render("stage ") + e.Stage
	case puzzle.EventPhaseChanged:
		return keyStyle.Render("phase ") + e.Phase
	case puzzle.EventScore:
		return keyStyle.Render("score ") + itoa(e.Score)
	case puzzle.EventEvaluated:
		if e.Correct {
			return goodStyle.Render("correct")
		}
		line := badStyle.Render("wrong: " + strings.Join(e.WrongSlots, ","))
		for _, slot := range e.WrongSlots {
			if el, ok := e.Reveal[slot]; ok {
				line += mutedStyle.Render(" (" + slot + " was " + el + ")")
			}
		}
		return line
	}
	return ""
}
