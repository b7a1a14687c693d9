package view

import (
	"bytes"
	"fmt"
	"html"
	"sync"

	"github.com/yuin/goldmark"
)

// Pane is an in-memory model of the popup document. It is safe for use
// from the status timer goroutine.
type Pane struct {
	mu         sync.Mutex
	section    Section
	blocks     []Block
	busy       bool
	status     string
	statusKind StatusKind
	scrolledTo int
	markdown   goldmark.Markdown
}

// NewPane returns a pane showing the credential form
func NewPane() *Pane {
	return &Pane{
		section:    SectionCredentials,
		scrolledTo: -1,
		markdown:   goldmark.New(),
	}
}

func (p *Pane) ShowCredentialForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.section = SectionCredentials
}

func (p *Pane) ShowChat() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.section = SectionChat
}

// AppendMessage adds b to the message list and scrolls to it
func (p *Pane) AppendMessage(b Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks = append(p.blocks, b)
	p.scrolledTo = len(p.blocks) - 1
}

func (p *Pane) ClearMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks = nil
	p.scrolledTo = -1
}

func (p *Pane) SetBusy(busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = busy
}

func (p *Pane) SetStatus(text string, kind StatusKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = text
	p.statusKind = kind
}

func (p *Pane) Section() Section {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.section
}

func (p *Pane) Blocks() []Block {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Block, len(p.blocks))
	copy(out, p.blocks)
	return out
}

// Busy reports whether send and summarize are disabled
func (p *Pane) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// SendLabel is the current text of the send button
func (p *Pane) SendLabel() string {
	if p.Busy() {
		return SendingLabel
	}
	return SendLabel
}

func (p *Pane) Status() (string, StatusKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.statusKind
}

// ScrolledTo is the index of the block in view, -1 when empty
func (p *Pane) ScrolledTo() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolledTo
}

// HTML renders the message list as the popup markup
func (p *Pane) HTML() (string, error) {
	blocks := p.Blocks()

	var buf bytes.Buffer
	buf.WriteString(`<div id="messages">`)
	for _, b := range blocks {
		if err := p.renderBlock(&buf, b); err != nil {
			return "", err
		}
	}
	buf.WriteString(`</div>`)
	return buf.String(), nil
}

func (p *Pane) renderBlock(buf *bytes.Buffer, b Block) error {
	fmt.Fprintf(buf, `<div class="message %s-message">`, b.Role)
	if err := p.markdown.Convert([]byte(b.Content), buf); err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}
	if len(b.Links) > 0 {
		buf.WriteString(`<div class="citation">Sources: `)
		for _, l := range b.Links {
			fmt.Fprintf(buf, `<a href="%s" target="_blank">[%d]</a> `, html.EscapeString(l.URL), l.Index)
		}
		buf.WriteString(`</div>`)
	}
	buf.WriteString(`</div>`)
	return nil
}
