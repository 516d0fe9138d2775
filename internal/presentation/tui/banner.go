package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Glacier ASCII art banner to w.
func PrintBanner(w io.Writer, profile termenv.Profile) {
	out := termenv.NewOutput(w, termenv.WithProfile(profile))
	// Cold gradient from sky to indigo
	lines := []struct {
		text  string
		color string
	}{
		{`   ____ _            _           `, "#e0f2fe"},
		{`  / ___| | __ _  ___(_) ___ _ __ `, "#bae6fd"},
		{` | |  _| |/ _' |/ __| |/ _ \ '__|`, "#7dd3fc"},
		{` | |_| | | (_| | (__| |  __/ |   `, "#38bdf8"},
		{`  \____|_|\__,_|\___|_|\___|_|   `, "#818cf8"},
	}

	fmt.Fprintln(out)
	for _, l := range lines {
		fmt.Fprintln(out, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(out)
}
