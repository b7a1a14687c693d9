package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PerplexityAssistant/internal/messaging"
	"PerplexityAssistant/internal/pageagent"
	"PerplexityAssistant/internal/telemetry"
)

func main() {
	var (
		page   string
		addr   string
		sel    string
		logDir string
		debug  bool
	)
	flag.StringVar(&page, "page", "", "URL or file path of the page to load")
	flag.StringVar(&addr, "addr", "127.0.0.1:8765", "Listen address for the background connection")
	flag.StringVar(&sel, "select", "", "Text selected on the page")
	flag.StringVar(&logDir, "log-dir", "logs", "Directory for log files")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	logger, err := telemetry.InitLogger(logDir, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, page, addr, sel, logger); err != nil {
		logger.Error("page agent stopped", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, page, addr, sel string, logger *slog.Logger) error {
	router := messaging.NewRouter(logger)

	agent, err := pageagent.Load(ctx, page, router, logger)
	if err != nil {
		return err
	}
	agent.OnLoad()
	if sel != "" {
		agent.Select(sel)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", messaging.Serve(agent, func(c *messaging.Conn) {
		// the most recent background connection receives openPopup
		router.Register(messaging.Background, c)
		go func() {
			<-c.Done()
			logger.Info("background disconnected", "remote", c.Name())
		}()
	}, logger))
	mux.HandleFunc("/launcher", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := agent.ClickLauncher(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := agent.Render(w); err != nil {
			logger.Error("failed to render page", "error", err)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("page agent listening", "addr", addr, "url", agent.URL())
		errCh <- srv.ListenAndServe()
	}()
	fmt.Printf("Page agent for %s listening on ws://%s/ws\n", agent.URL(), addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
