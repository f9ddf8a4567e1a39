// internal/catalog/catalog.go
//
// Level catalog management.
//
// Responsibilities:
//   - Load level definitions from a YAML file, or fall back to the catalog
//     embedded in the binary.
//   - Turn each YAML stage into a puzzle.Stage using the kind-specific
//     constructors.
//   - Validate the whole catalog before the server accepts sessions.
//
// File format (see assets/levels.yaml):
//
//	levels:
//	  - number: 1
//	    name: The Beginning
//	    stages:
//	      - id: days-of-creation
//	        kind: sequence          # sequence | click_order | matching | choice | quiz
//	        order: [light, sky]     # sequence, click_order
//	        pairs: {a: adam}        # matching
//	        slot: answer            # choice, quiz
//	        answer: eden            # choice, quiz
//	        options: [eden, ur]     # choice, quiz
//	        distractors: [tower]
//	        basePoints: 100         # quiz defaults to 100
//	        maxHints: 2
//	        clear: all              # optional: wrong | all
//
// Constraints:
//   • Levels are numbered 1..n without gaps.
//   • Stage ids are unique within a level.
//   • Every stage passes puzzle.Stage.Validate.

package catalog

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/puzzlequest/assets"
	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
)

type fileFormat struct {
	Levels []levelDoc `yaml:"levels"`
}

type levelDoc struct {
	Number int        `yaml:"number"`
	Name   string     `yaml:"name"`
	Stages []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	ID          string            `yaml:"id"`
	Kind        puzzle.Kind       `yaml:"kind"`
	Order       []string          `yaml:"order,omitempty"`
	Pairs       map[string]string `yaml:"pairs,omitempty"`
	Slot        string            `yaml:"slot,omitempty"`
	Answer      string            `yaml:"answer,omitempty"`
	Options     []string          `yaml:"options,omitempty"`
	Distractors []string          `yaml:"distractors,omitempty"`
	BasePoints  int               `yaml:"basePoints"`
	MaxHints    int               `yaml:"maxHints,omitempty"`
	Clear       puzzle.ClearMode  `yaml:"clear,omitempty"`
}

// Catalog is an immutable, validated list of levels. It implements
// session.Catalog.
type Catalog struct {
	levels []session.Level
	source string
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		raw, err := assets.LevelsYAML()
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog: %w", err)
		}
		return Parse(raw, "embedded")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw, path)
}

// Parse decodes and validates a YAML catalog. source names it in errors.
func Parse(raw []byte, source string) (*Catalog, error) {
	var doc fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if len(doc.Levels) == 0 {
		return nil, fmt.Errorf("%s: no levels", source)
	}

	sort.SliceStable(doc.Levels, func(i, j int) bool { return doc.Levels[i].Number < doc.Levels[j].Number })
	c := &Catalog{source: source, levels: make([]session.Level, 0, len(doc.Levels))}
	for i, ld := range doc.Levels {
		if ld.Number != i+1 {
			return nil, fmt.Errorf("%s: level numbers must run 1..%d without gaps, found %d", source, len(doc.Levels), ld.Number)
		}
		lvl, err := ld.build()
		if err != nil {
			return nil, fmt.Errorf("%s: level %d: %w", source, ld.Number, err)
		}
		c.levels = append(c.levels, lvl)
	}
	return c, nil
}

func (ld levelDoc) build() (session.Level, error) {
	if len(ld.Stages) == 0 {
		return session.Level{}, fmt.Errorf("no stages")
	}
	lvl := session.Level{Number: ld.Number, Name: ld.Name}
	ids := make(map[string]struct{}, len(ld.Stages))
	for _, sd := range ld.Stages {
		if _, dup := ids[sd.ID]; dup {
			return session.Level{}, fmt.Errorf("duplicate stage id %q", sd.ID)
		}
		ids[sd.ID] = struct{}{}
		st, err := sd.build()
		if err != nil {
			return session.Level{}, err
		}
		lvl.Stages = append(lvl.Stages, st)
	}
	return lvl, nil
}

func (sd stageDoc) build() (puzzle.Stage, error) {
	var st puzzle.Stage
	switch sd.Kind {
	case puzzle.KindSequence, puzzle.KindClickOrder:
		if len(sd.Order) == 0 {
			return st, fmt.Errorf("stage %s: %s needs an order", sd.ID, sd.Kind)
		}
		st = puzzle.OrderedStage(sd.ID, sd.Kind, sd.Order)
	case puzzle.KindMatching:
		if len(sd.Pairs) == 0 {
			return st, fmt.Errorf("stage %s: matching needs pairs", sd.ID)
		}
		st = puzzle.MatchingStage(sd.ID, sd.Pairs)
	case puzzle.KindChoice, puzzle.KindQuiz:
		slot := sd.Slot
		if slot == "" {
			slot = "answer"
		}
		if sd.Answer == "" {
			return st, fmt.Errorf("stage %s: %s needs an answer", sd.ID, sd.Kind)
		}
		if sd.Kind == puzzle.KindQuiz {
			st = puzzle.QuizStage(sd.ID, slot, sd.Answer, sd.Options)
		} else {
			st = puzzle.ChoiceStage(sd.ID, slot, sd.Answer, sd.Options)
		}
	default:
		return st, fmt.Errorf("stage %s: unknown kind %q", sd.ID, sd.Kind)
	}
	st.Distractors = append(st.Distractors, sd.Distractors...)
	if sd.BasePoints != 0 {
		st.BasePoints = sd.BasePoints
	}
	st.MaxHints = sd.MaxHints
	st.Clear = sd.Clear
	if err := st.Validate(); err != nil {
		return st, err
	}
	return st, nil
}

// Level implements session.Catalog.
func (c *Catalog) Level(n int) (session.Level, bool) {
	if n < 1 || n > len(c.levels) {
		return session.Level{}, false
	}
	return c.levels[n-1], true
}

// Count implements session.Catalog.
func (c *Catalog) Count() int { return len(c.levels) }

// Levels returns every level in order.
func (c *Catalog) Levels() []session.Level {
	return append([]session.Level(nil), c.levels...)
}

// Source names where the catalog was loaded from.
func (c *Catalog) Source() string { return c.source }

// MaxScore is the best possible score of level n: every stage solved on the
// first attempt and every quiz question answered right.
func (c *Catalog) MaxScore(n int) int {
	lvl, ok := c.Level(n)
	if !ok {
		return 0
	}
	total := 0
	for _, st := range lvl.Stages {
		if st.Policy().OneShot {
			total += st.BasePoints
			continue
		}
		total += puzzle.Award(st.BasePoints, 1)
	}
	return total
}
