package phasewise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/phasewise/pkg/domain"
)

// Runner drives a session from a line oriented terminal.
//
// A line of name=value pairs (separated by ";") submits fields. Any other text
// counts as a conversational turn. "/next" and "/go <phase>" request a transition,
// "/status" prints the session status and "exit" or "quit" stops the loop.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	// MaxInputSize bounds one input line; <= 0 uses DefaultMaxInputSize.
	MaxInputSize int
}

// ContentRenderer transforms phase descriptions before they are printed,
// e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner over the given IO.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run walks the session until it completes, the input ends or the user quits.
func (r *Runner) Run(ctx context.Context, engine *Engine, sessionID string) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)
	w := r.Output

	snap, err := engine.Start(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	if !r.Headless {
		fmt.Fprintf(w, "--- phasewise %s (session %s) ---\n", engine.Name, sessionID)
	}

	lastPhase := ""
	for !snap.Completed {
		if snap.PhaseID != lastPhase {
			r.describe(engine, snap)
			lastPhase = snap.PhaseID
		}

		if !r.Headless {
			fmt.Fprint(w, "> ")
		}
		text, err := lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		input, err := SanitizeInput(strings.TrimSpace(text), r.MaxInputSize)
		if err != nil {
			fmt.Fprintf(w, "! input rejected: %v\n", err)
			if eof {
				break
			}
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Fprintln(w, "Bye!")
			return nil
		}
		if input == "" && eof {
			return nil
		}

		if err := r.handle(ctx, engine, sessionID, input); err != nil {
			var illegal *domain.IllegalTargetError
			if !errors.As(err, &illegal) {
				return err
			}
			fmt.Fprintf(w, "! %v\n", err)
		}

		snap, err = engine.Status(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		if eof {
			break
		}
	}

	if snap.Completed {
		r.describe(engine, snap)
		fmt.Fprintln(w, "Session complete.")
	}
	return nil
}

func (r *Runner) handle(ctx context.Context, engine *Engine, sessionID, input string) error {
	switch {
	case input == "/status":
		snap, err := engine.Status(ctx, sessionID)
		if err != nil {
			return err
		}
		r.status(snap)
		return nil
	case input == "/next":
		res, err := engine.Transition(ctx, sessionID, TargetNext)
		if err != nil {
			return err
		}
		r.result(res)
		return nil
	case strings.HasPrefix(input, "/go "):
		res, err := engine.Transition(ctx, sessionID, strings.TrimSpace(strings.TrimPrefix(input, "/go ")))
		if err != nil {
			return err
		}
		r.result(res)
		return nil
	}

	res, err := engine.Submit(ctx, sessionID, ParseFields(input))
	if err != nil {
		return err
	}
	r.result(res)
	return nil
}

// ParseFields reads "name=value; other=value" into a field map.
// Text without any pair yields an empty map.
func ParseFields(line string) map[string]any {
	fields := make(map[string]any)
	for _, part := range strings.Split(line, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fields[name] = strings.TrimSpace(value)
	}
	return fields
}

func (r *Runner) describe(engine *Engine, snap *domain.Snapshot) {
	phase, err := engine.Graph().Phase(snap.PhaseID)
	if err != nil {
		return
	}
	title := phase.Title
	if title == "" {
		title = phase.ID
	}
	fmt.Fprintf(r.Output, "\n# %s\n", title)

	if phase.Description != "" {
		out := phase.Description
		if r.Renderer != nil {
			if rendered, err := r.Renderer(out); err == nil {
				out = rendered
			}
		}
		fmt.Fprintln(r.Output, strings.TrimSpace(out))
	}
	if snap.Wait != nil {
		if snap.Wait.PreMessage != "" {
			fmt.Fprintln(r.Output, snap.Wait.PreMessage)
		}
		fmt.Fprintf(r.Output, "(wait %ds, then press enter)\n", snap.Wait.DurationSeconds)
	}
	if len(snap.Evaluation.Missing) > 0 {
		fmt.Fprintf(r.Output, "needs: %s\n", strings.Join(snap.Evaluation.Missing, ", "))
	}
}

func (r *Runner) result(res *domain.Result) {
	for _, rej := range res.Rejected {
		fmt.Fprintf(r.Output, "! %s rejected: %s\n", rej.Field, rej.Reason)
	}
	switch {
	case res.Transitioned:
		fmt.Fprintf(r.Output, "-> %s\n", res.PhaseID)
	case res.Blocked != nil:
		fmt.Fprintf(r.Output, "blocked: %s%s\n", res.Blocked.Reason, blockedDetail(res.Blocked))
	case res.ReadyToTransition:
		fmt.Fprintf(r.Output, "ready: /next goes to %s\n", res.NextPhase)
	}
}

func (r *Runner) status(snap *domain.Snapshot) {
	fmt.Fprintf(r.Output, "phase %s, %d turns, %s elapsed\n", snap.PhaseID, snap.Visit.MessageCount, snap.Elapsed.Round(time.Second))
	names := make([]string, 0, len(snap.Fields))
	for name := range snap.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(r.Output, "  %s = %v\n", name, snap.Fields[name])
	}
	for family, timer := range snap.Timers {
		fmt.Fprintf(r.Output, "  [%s] %s, %d loops\n", family, timer.Accumulated.Round(time.Second), timer.LoopCount)
	}
}

func blockedDetail(b *domain.Blocked) string {
	var parts []string
	if len(b.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(b.Missing, ", "))
	}
	if len(b.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(b.Invalid, ", "))
	}
	for _, c := range b.UnmetConstraints {
		parts = append(parts, fmt.Sprintf("%s %d/%d", c.Type, c.Actual, c.Required))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}
