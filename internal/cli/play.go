package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/puzzlequest/internal/app"
	"github.com/robalobadob/puzzlequest/internal/catalog"
	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
)

const playHelp = `Commands, one per line (# starts a comment):
  assign SLOT ELEMENT   place ELEMENT on SLOT
  select ELEMENT        place ELEMENT on the first empty slot
  submit                evaluate the stage
  hint                  ask for a hint
  advance               award the solved stage and move on
  auto                  advance after the reveal delay
  wait MS               let MS milliseconds of virtual time pass
  restart | restart-level | pause | resume | give-up | next
  state                 print the active stage`

func newPlayCmd(opts *options) *cobra.Command {
	var (
		level  int
		owner  string
		unlock bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a level from a script read on stdin",
		Long:  "Play a level from a script read on stdin.\n\n" + playHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			log := logger(cfg)

			var a *app.App
			if owner != "" {
				var err error
				if a, err = app.Open(cmd.Context(), cfg, log); err != nil {
					return err
				}
				defer a.Close()
			} else {
				cat, err := catalog.Load(cfg.LevelsFile)
				if err != nil {
					return err
				}
				a = app.NewMemory(cfg, cat, log)
				owner = "cli"
			}

			p := &player{
				out:    cmd.OutOrStdout(),
				sched:  &session.ManualScheduler{},
				reveal: cfg.RevealDelay,
				strict: strict,
			}
			repo := a.Progress(owner)
			if unlock {
				if err := repo.SaveProgress(cmd.Context(), level, session.LevelProgress{Level: level, Unlocked: true}); err != nil {
					return err
				}
			}
			p.ctrl = session.New(session.Deps{
				Catalog:   a.Catalog,
				Progress:  repo,
				Scheduler: p.sched,
				Log:       log,
			})
			defer p.ctrl.Close()
			p.ctrl.Bus().Subscribe(p.print)

			ctx := cmd.Context()
			if err := p.ctrl.Start(ctx, level); err != nil {
				return err
			}
			if err := p.ctrl.OnLevelLoaded(); err != nil {
				return err
			}
			if err := p.run(ctx, cmd.InOrStdin()); err != nil {
				return err
			}
			p.summary()
			return nil
		},
	}
	cmd.Flags().IntVar(&level, "level", 1, "level number")
	cmd.Flags().StringVar(&owner, "owner", "", "save progress for this player in the database")
	cmd.Flags().BoolVar(&unlock, "unlock", false, "unlock the level before playing")
	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first refused command")
	return cmd
}

// player runs a scripted session on a manual clock.
type player struct {
	out    io.Writer
	ctrl   *session.Controller
	sched  *session.ManualScheduler
	reveal time.Duration
	strict bool
}

func (p *player) print(e puzzle.Event) {
	if line := eventLine(e); line != "" {
		fmt.Fprintln(p.out, "  "+line)
	}
}

func (p *player) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		fmt.Fprintln(p.out, keyStyle.Render("> ")+line)
		if err := p.exec(ctx, strings.Fields(line)); err != nil {
			fmt.Fprintln(p.out, "  "+badStyle.Render(err.Error()))
			if p.strict {
				return fmt.Errorf("line %d: %w", n, err)
			}
		}
	}
	return sc.Err()
}

func (p *player) exec(ctx context.Context, f []string) error {
	argc := func(n int) error {
		if len(f)-1 != n {
			return fmt.Errorf("%s takes %d argument(s)", f[0], n)
		}
		return nil
	}
	c := p.ctrl
	switch f[0] {
	case "assign":
		if err := argc(2); err != nil {
			return err
		}
		return c.AssignSlot(f[1], f[2])
	case "select":
		if err := argc(1); err != nil {
			return err
		}
		_, err := c.Select(f[1])
		return err
	case "submit":
		_, err := c.Submit()
		return err
	case "hint":
		h, err := c.Hint()
		if err == nil {
			fmt.Fprintf(p.out, "  %s %s → %s\n", goldStyle.Render("hint"), h.Slot, h.Element)
		}
		return err
	case "advance":
		res, err := c.Advance(ctx)
		if err == nil {
			fmt.Fprintf(p.out, "  %s +%d\n", goodStyle.Render("awarded"), res.Awarded)
		}
		return err
	case "auto":
		return c.ScheduleAdvance(p.reveal)
	case "wait":
		if err := argc(1); err != nil {
			return err
		}
		ms, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		p.sched.Advance(time.Duration(ms) * time.Millisecond)
		return nil
	case "restart":
		return c.Restart()
	case "restart-level":
		if err := c.RestartLevel(ctx); err != nil {
			return err
		}
		return c.OnLevelLoaded()
	case "pause":
		return c.Pause()
	case "resume":
		return c.Resume()
	case "give-up":
		return c.GiveUp()
	case "next":
		done, err := c.NextLevel(ctx)
		if err != nil {
			return err
		}
		if done {
			fmt.Fprintln(p.out, "  "+goldStyle.Render("all levels complete"))
			return nil
		}
		return c.OnLevelLoaded()
	case "state":
		p.stage()
		return nil
	default:
		return fmt.Errorf("unknown command %q", f[0])
	}
}

func (p *player) stage() {
	snap, ok := p.ctrl.Stage()
	if !ok {
		fmt.Fprintln(p.out, "  "+mutedStyle.Render("no stage"))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", titleStyle.Render(snap.StageID), mutedStyle.Render(string(snap.Kind)), snap.State)
	for _, slot := range snap.Slots {
		el := snap.Assignment[slot]
		if el == "" {
			el = mutedStyle.Render("·")
		}
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render(slot), el)
	}
	fmt.Fprintf(&b, "elements: %s", strings.Join(snap.Elements, " "))
	fmt.Fprintln(p.out, panel.Render(b.String()))
}

func (p *player) summary() {
	st := p.ctrl.State()
	body := fmt.Sprintf("%s %d\n%s %s\n%s %d\n%s",
		keyStyle.Render("level"), st.Level,
		keyStyle.Render("phase"), st.Phase,
		keyStyle.Render("score"), st.Score,
		starsBadge(puzzle.Stars(st.Score)),
	)
	fmt.Fprintln(p.out, panel.Render(body))
}
