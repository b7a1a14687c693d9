package view

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Terminal prints popup changes to a writer while keeping the Pane model
// current, so the session can be exported as HTML.
type Terminal struct {
	*Pane

	mu  sync.Mutex
	out io.Writer

	user    *color.Color
	ai      *color.Color
	link    *color.Color
	errText *color.Color
	okText  *color.Color
	dim     *color.Color
}

// NewTerminal writes to out. Colours follow color.NoColor.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		Pane:    NewPane(),
		out:     out,
		user:    color.New(color.FgCyan, color.Bold),
		ai:      color.New(color.FgMagenta, color.Bold),
		link:    color.New(color.FgBlue, color.Underline),
		errText: color.New(color.FgRed),
		okText:  color.New(color.FgGreen),
		dim:     color.New(color.Faint),
	}
}

func (t *Terminal) printf(c *color.Color, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c == nil {
		fmt.Fprintf(t.out, format, args...)
		return
	}
	c.Fprintf(t.out, format, args...)
}

func (t *Terminal) ShowCredentialForm() {
	t.Pane.ShowCredentialForm()
	t.printf(t.dim, "Enter your Perplexity API key with /key <key>\n")
}

func (t *Terminal) ShowChat() {
	t.Pane.ShowChat()
	t.printf(t.dim, "Ask a question, /summarize this page, or /help\n")
}

func (t *Terminal) AppendMessage(b Block) {
	t.Pane.AppendMessage(b)

	label, c := "You: ", t.user
	if b.Role == RoleAI {
		label, c = "AI: ", t.ai
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c.Fprint(t.out, label)
	fmt.Fprintln(t.out, b.Content)
	if len(b.Links) > 0 {
		fmt.Fprint(t.out, "Sources:")
		for _, l := range b.Links {
			fmt.Fprintf(t.out, " [%d] ", l.Index)
			t.link.Fprint(t.out, l.URL)
		}
		fmt.Fprintln(t.out)
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) SetBusy(busy bool) {
	t.Pane.SetBusy(busy)
	if busy {
		t.printf(t.dim, "%s\n", SendingLabel)
	}
}

// SetStatus prints non-empty status text; clearing only updates the model.
func (t *Terminal) SetStatus(text string, kind StatusKind) {
	t.Pane.SetStatus(text, kind)
	if text == "" {
		return
	}
	c := t.okText
	if kind == StatusError {
		c = t.errText
	}
	t.printf(c, "%s\n", text)
}

// Println writes a plain line, for host chrome outside the popup model.
func (t *Terminal) Println(args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, args...)
}

// Prompt writes the input prompt without a newline.
func (t *Terminal) Prompt(p string) {
	t.printf(t.user, "%s", p)
}
