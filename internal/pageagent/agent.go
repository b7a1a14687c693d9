package pageagent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"PerplexityAssistant/internal/messaging"
)

const (
	LauncherID   = "perplexity-ai-button"
	launcherIcon = "🤖"
	launcherCSS  = "position: fixed; bottom: 20px; right: 20px; width: 50px; height: 50px; " +
		"border-radius: 50%; display: flex; align-items: center; justify-content: center; " +
		"cursor: pointer; z-index: 999999;"
)

// Snapshot is the page content handed to the popup
type Snapshot struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Text         string `json:"text"`
	SelectedText string `json:"selectedText"`
}

// Sender delivers one-way messages to another context
type Sender interface {
	Send(ctx context.Context, to string, req messaging.Request)
}

// Agent runs against one loaded page
type Agent struct {
	mu        sync.Mutex
	doc       *html.Node
	url       string
	selection string
	launcher  *html.Node

	sender Sender
	logger *slog.Logger
}

// New wraps an already parsed document
func New(doc *html.Node, pageURL string, sender Sender, logger *slog.Logger) *Agent {
	return &Agent{
		doc:    doc,
		url:    pageURL,
		sender: sender,
		logger: logger,
	}
}

// Parse reads an HTML document from r
func Parse(r io.Reader, pageURL string, sender Sender, logger *slog.Logger) (*Agent, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return New(doc, pageURL, sender, logger), nil
}

// Load fetches source, an http(s) URL or a file path. An empty source is
// a blank page.
func Load(ctx context.Context, source string, sender Sender, logger *slog.Logger) (*Agent, error) {
	switch {
	case source == "":
		return Parse(strings.NewReader(""), "about:blank", sender, logger)

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch page: %s", resp.Status)
		}
		logger.Info("page fetched", "url", resp.Request.URL.String())
		return Parse(resp.Body, resp.Request.URL.String(), sender, logger)

	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read page: %w", err)
		}
		return Parse(bytes.NewReader(data), "file://"+source, sender, logger)
	}
}

// URL returns the page address
func (a *Agent) URL() string {
	return a.url
}

// Select replaces the current text selection
func (a *Agent) Select(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selection = text
}

// Selection returns the current text selection
func (a *Agent) Selection() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selection
}

// Snapshot reads the page as it is now. The document is not modified.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Title:        documentTitle(a.doc),
		URL:          a.url,
		Text:         PageText(a.doc),
		SelectedText: a.selection,
	}
}

// HandleMessage answers getPageContent; other actions are ignored.
func (a *Agent) HandleMessage(ctx context.Context, req messaging.Request) (any, error) {
	if req.Action != messaging.ActionGetPageContent {
		return nil, nil
	}
	snap := a.Snapshot()
	a.logger.Debug("page content requested", "url", snap.URL, "text_length", len(snap.Text))
	return snap, nil
}

// OnLoad inserts the floating launcher at the end of the body. It runs
// once per page load; later calls do nothing.
func (a *Agent) OnLoad() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.launcher != nil {
		return
	}
	body := findElement(a.doc, atom.Body)
	if body == nil {
		a.logger.Warn("page has no body, launcher not inserted", "url", a.url)
		return
	}

	button := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "id", Val: LauncherID},
			{Key: "style", Val: launcherCSS},
		},
	}
	button.AppendChild(&html.Node{Type: html.TextNode, Data: launcherIcon})
	body.AppendChild(button)
	a.launcher = button
}

// ClickLauncher asks the background to open the popup.
func (a *Agent) ClickLauncher(ctx context.Context) error {
	a.mu.Lock()
	inserted := a.launcher != nil
	a.mu.Unlock()
	if !inserted {
		return fmt.Errorf("launcher is not on the page")
	}

	a.sender.Send(ctx, messaging.Background, messaging.Request{Action: messaging.ActionOpenPopup})
	return nil
}

// Render writes the current document, launcher included
func (a *Agent) Render(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return html.Render(w, a.doc)
}
