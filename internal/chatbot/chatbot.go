package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"PerplexityAssistant/internal/background"
	"PerplexityAssistant/internal/backend"
	"PerplexityAssistant/internal/config"
	"PerplexityAssistant/internal/messaging"
	"PerplexityAssistant/internal/pageagent"
	"PerplexityAssistant/internal/popup"
	"PerplexityAssistant/internal/storage"
	"PerplexityAssistant/internal/telemetry"
	"PerplexityAssistant/internal/view"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the process-wide dependencies of a ChatBot
type Options struct {
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
	In     io.Reader
	Out    io.Writer
}

// ChatBot hosts the background, page and popup contexts in one terminal.
// The REPL plays the part of the popup UI.
type ChatBot struct {
	config  config.Config
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
	cleanup func()

	store      *storage.Store
	router     *messaging.Router
	menus      *background.MenuRegistry
	background *background.Coordinator
	api        *backend.Client

	page   *pageagent.Agent // nil when the page runs in another process
	remote *messaging.Conn

	mu    sync.Mutex
	popup *popup.Session
	term  *view.Terminal

	closeOnce sync.Once
}

// NewChatBot creates a ChatBot on stdin/stdout with file logging and telemetry
func NewChatBot(cfg config.Config) (*ChatBot, error) {
	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	cb, err := New(ctx, cfg, Options{
		Logger: logger,
		Tracer: tracer,
		Meter:  meter,
		In:     os.Stdin,
		Out:    os.Stdout,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	cb.cleanup = cleanup
	return cb, nil
}

// New wires every context together and installs the extension.
func New(ctx context.Context, cfg config.Config, opts Options) (*ChatBot, error) {
	store, err := storage.Open(cfg.DBPath, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cb := &ChatBot{
		config: cfg,
		logger: opts.Logger,
		in:     opts.In,
		out:    opts.Out,
		store:  store,
		router: messaging.NewRouter(opts.Logger),
		menus:  background.NewMenuRegistry(),
		api:    backend.NewClient(cfg, opts.Logger, opts.Tracer, opts.Meter),
	}
	cb.background = background.NewCoordinator(cb.menus, store, cb, opts.Logger)
	cb.router.Register(messaging.Background, cb.background)

	if err := cb.attachPage(ctx); err != nil {
		store.Close()
		return nil, err
	}

	if err := cb.background.OnInstall(ctx); err != nil {
		cb.Close()
		return nil, fmt.Errorf("failed to install: %w", err)
	}

	return cb, nil
}

func (cb *ChatBot) attachPage(ctx context.Context) error {
	if cb.config.PageAgentURL != "" {
		conn, err := messaging.Dial(ctx, cb.config.PageAgentURL, cb.background, cb.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to page agent: %w", err)
		}
		cb.remote = conn
		cb.router.Register(messaging.ActiveTab, conn)
		return nil
	}

	page, err := pageagent.Load(ctx, cb.config.Page, cb.router, cb.logger)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	page.OnLoad()
	if cb.config.Selection != "" {
		page.Select(cb.config.Selection)
	}
	cb.page = page
	cb.router.Register(messaging.ActiveTab, page)
	return nil
}

// OpenPopup constructs and initializes a popup session. An already open
// popup only picks up a new pending query.
func (cb *ChatBot) OpenPopup(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.popup != nil {
		if cb.popup.ConsumePendingQuery(ctx) {
			showDraft(cb.popup, cb.term)
		}
		return nil
	}

	term := view.NewTerminal(cb.out)
	sess := popup.New(cb.store, cb.api, cb.router, term, popup.Options{
		StatusTTL:        cb.config.StatusTTL(),
		KeepPendingQuery: cb.config.KeepPendingQuery,
	}, cb.logger)

	term.Println("--- Perplexity AI Assistant ---")
	if err := sess.Initialize(ctx); err != nil {
		sess.Close()
		return fmt.Errorf("failed to initialize popup: %w", err)
	}
	showDraft(sess, term)

	cb.popup = sess
	cb.term = term
	return nil
}

func showDraft(sess *popup.Session, term *view.Terminal) {
	if draft := sess.Draft(); draft != "" {
		term.Println("Selected text:", draft)
		term.Println("Press Enter to ask about it.")
	}
}

// ClosePopup tears down the open popup session, if any
func (cb *ChatBot) ClosePopup() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.popup == nil {
		return
	}
	cb.popup.Close()
	cb.popup = nil
	cb.term = nil
}

func (cb *ChatBot) current() (*popup.Session, *view.Terminal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.popup, cb.term
}

func (cb *ChatBot) println(args ...any) {
	fmt.Fprintln(cb.out, args...)
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	arg := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))
	sess, term := cb.current()

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/open":
		return false, cb.OpenPopup(ctx)

	case "/close":
		cb.ClosePopup()
		cb.println("Popup closed. Use /open, /menu or /launcher to reopen it.")
		return false, nil

	case "/select":
		if cb.page == nil {
			return false, fmt.Errorf("selection is only available for a local page")
		}
		cb.page.Select(arg)
		return false, nil

	case "/menu":
		if cb.page == nil {
			return false, fmt.Errorf("the context menu is only available for a local page")
		}
		cb.background.OnMenuClicked(ctx, background.ClickInfo{
			MenuItemID:    background.MenuID,
			SelectionText: cb.page.Selection(),
		})
		return false, nil

	case "/launcher":
		if cb.page == nil {
			return false, fmt.Errorf("the launcher is only available for a local page")
		}
		return false, cb.page.ClickLauncher(ctx)

	case "/page":
		var snap pageagent.Snapshot
		if err := cb.router.Request(ctx, messaging.ActiveTab, messaging.Request{Action: messaging.ActionGetPageContent}, &snap); err != nil {
			return false, fmt.Errorf("failed to read page: %w", err)
		}
		cb.println("Title:", snap.Title)
		cb.println("URL:", snap.URL)
		cb.println("Text:", len([]rune(snap.Text)), "characters")
		if snap.SelectedText != "" {
			cb.println("Selection:", snap.SelectedText)
		}
		return false, nil

	case "/help":
		cb.println("Available commands:")
		cb.println("  /key <api-key>      - Save your Perplexity API key")
		cb.println("  /summarize          - Summarize the current page")
		cb.println("  /context on|off     - Include page context with questions")
		cb.println("  /clear              - Clear the conversation")
		cb.println("  /export <file>      - Write the conversation as HTML")
		cb.println("  /select <text>      - Select text on the page")
		cb.println("  /menu               - Ask about the selection via the context menu")
		cb.println("  /launcher           - Click the page's floating button")
		cb.println("  /page               - Show what the assistant reads from the page")
		cb.println("  /open, /close       - Open or close the popup")
		cb.println("  /quit, /exit        - Exit")
		return false, nil
	}

	if sess == nil {
		return false, fmt.Errorf("popup is closed; use /open first")
	}

	switch parts[0] {
	// popup failures are already on its status line
	case "/key":
		if err := sess.SaveCredential(ctx, arg); err != nil {
			cb.logger.Debug("credential not saved", "error", err)
		}
		return false, nil

	case "/summarize":
		if err := sess.SummarizePage(ctx); err != nil {
			cb.logger.Debug("summary failed", "error", err)
		}
		return false, nil

	case "/clear":
		return false, sess.ClearConversation(ctx)

	case "/context":
		switch arg {
		case "on":
			sess.SetIncludeContext(true)
		case "off":
			sess.SetIncludeContext(false)
		default:
			return false, fmt.Errorf("usage: /context on|off")
		}
		cb.println("Include page context:", arg)
		return false, nil

	case "/export":
		if arg == "" {
			return false, fmt.Errorf("usage: /export <file>")
		}
		html, err := term.HTML()
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(arg, []byte(html), 0644); err != nil {
			return false, fmt.Errorf("failed to export conversation: %w", err)
		}
		cb.println("Conversation written to", arg)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

// Run starts the REPL
func (cb *ChatBot) Run() error {
	defer cb.Close()

	ctx := context.Background()
	cb.println("=== Perplexity AI Assistant ===")
	if cb.page != nil {
		cb.println("Page:", cb.page.URL())
	} else {
		cb.println("Page agent:", cb.config.PageAgentURL)
	}
	cb.println("Type /help for commands, /quit to exit")
	cb.println()

	if cb.page != nil && cb.page.Selection() != "" {
		// start as if the user picked "Ask Perplexity" on the selection
		cb.background.OnMenuClicked(ctx, background.ClickInfo{
			MenuItemID:    background.MenuID,
			SelectionText: cb.page.Selection(),
		})
	} else if err := cb.OpenPopup(ctx); err != nil {
		cb.logger.Error("failed to open popup", "error", err)
		cb.println("Error:", err)
	}

	scanner := bufio.NewScanner(cb.in)
	for {
		if _, term := cb.current(); term != nil {
			term.Prompt("You: ")
		} else {
			fmt.Fprint(cb.out, "> ")
		}
		if !scanner.Scan() {
			break
		}

		// the popup may have opened while waiting for input
		sess, _ := cb.current()
		input := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.println("Error:", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if sess == nil {
			if input != "" {
				cb.println("Popup is closed. Use /open, /menu or /launcher.")
			}
			continue
		}

		if input == "" {
			input = sess.Draft()
			if input == "" {
				continue
			}
		}

		if err := sess.SendUserMessage(ctx, input); err != nil {
			cb.logger.Debug("message not sent", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cb.println("Goodbye!")
	return nil
}

// Close releases every context and the storage
func (cb *ChatBot) Close() {
	cb.closeOnce.Do(func() {
		cb.ClosePopup()
		if cb.remote != nil {
			cb.remote.Close()
		}
		if err := cb.store.Close(); err != nil {
			cb.logger.Error("failed to close storage", "error", err)
		}
		if cb.cleanup != nil {
			cb.cleanup()
		}
	})
}
