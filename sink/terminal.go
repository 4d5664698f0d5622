// Package sink holds the output destinations a dispatcher fans results out to.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"hotscribe/log"
	"hotscribe/transcript"
)

var (
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noSpeechStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	metricsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// Terminal prints one line per result.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	count int
}

func NewTerminal(w io.Writer, color bool) *Terminal {
	return &Terminal{w: w, color: color}
}

// Stdout returns a terminal sink on standard output, colored when stdout is
// a terminal.
func Stdout() *Terminal {
	return NewTerminal(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func (t *Terminal) Name() string { return "terminal" }

func (t *Terminal) Deliver(ctx context.Context, r transcript.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	line := t.format(r)
	if _, err := io.WriteString(t.w, line+"\n"); err != nil {
		return fmt.Errorf("write terminal: %w", err)
	}
	if r.HasText() {
		log.TranscriptionText(r.Text)
	}
	return nil
}

func (t *Terminal) render(s lipgloss.Style, text string) string {
	if !t.color {
		return text
	}
	return s.Render(text)
}

func (t *Terminal) format(r transcript.Result) string {
	text := strings.ToValidUTF8(r.Text, "�")
	text = strings.Join(strings.Fields(text), " ")

	if r.IsError() {
		kind := r.ErrorKind
		if kind == "" {
			kind = "error"
		}
		return t.render(errorStyle, fmt.Sprintf("[%s] %s", kind, text))
	}
	if text == "" {
		return t.render(noSpeechStyle, "(no speech detected)")
	}

	var meta []string
	if r.Language != "" {
		meta = append(meta, fmt.Sprintf("%s %.0f%%", r.Language, r.LanguageConfidence*100))
	}
	if r.Model != "" {
		meta = append(meta, r.Model)
	}
	if r.Elapsed > 0 {
		meta = append(meta, fmt.Sprintf("%.2fs", r.Elapsed.Seconds()))
	}
	out := fmt.Sprintf("#%d %s", t.count, t.render(textStyle, text))
	if len(meta) > 0 {
		out += " " + t.render(metricsStyle, "("+strings.Join(meta, ", ")+")")
	}
	return out
}
