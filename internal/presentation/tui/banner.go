package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the phasewise banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"        _                              _          ", "#818cf8"},
		{"  _ __ | |__   __ _ ___  _____      _(_)___  ___ ", "#a78bfa"},
		{" | '_ \\| '_ \\ / _` / __|/ _ \\ \\ /\\ / / / __|/ _ \\", "#c084fc"},
		{" | |_) | | | | (_| \\__ \\  __/\\ V  V /| \\__ \\  __/", "#e879f9"},
		{" | .__/|_| |_|\\__,_|___/\\___| \\_/\\_/ |_|___/\\___|", "#f472b6"},
		{" |_|                                              ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String(" v"+version).Faint())
	}
	fmt.Fprintln(w)
}

// Status colors a short status word for terminal output.
func Status(w io.Writer, word string, ok bool) string {
	out := termenv.NewOutput(w)
	color := "#ef4444"
	if ok {
		color = "#22c55e"
	}
	return out.String(word).Foreground(out.Color(color)).Bold().String()
}
