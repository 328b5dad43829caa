package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/internal/presentation/tui"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// PlayOptions configures an interactive session.
type PlayOptions struct {
	SessionID string
	Headless  bool
	Input     io.Reader
	Output    io.Writer
}

// RunPlay drives a session on the terminal. Headless is forced when the
// input is not a terminal, so piped scripts get plain output.
func RunPlay(ctx context.Context, eng *phasewise.Engine, opts PlayOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	headless := opts.Headless || !isTerminal(opts.Input)

	runner := phasewise.NewRunner(opts.Input, opts.Output)
	runner.Headless = headless
	if !headless {
		tui.PrintBanner(opts.Output, phasewise.Version)
		runner.Renderer = tui.NewRenderer()
	}
	return runner.Run(ctx, eng, opts.SessionID)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
