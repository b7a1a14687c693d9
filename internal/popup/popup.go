package popup

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PerplexityAssistant/internal/backend"
	"PerplexityAssistant/internal/messaging"
	"PerplexityAssistant/internal/pageagent"
	"PerplexityAssistant/internal/session"
	"PerplexityAssistant/internal/storage"
	"PerplexityAssistant/internal/view"
)

// Phase of the popup UI
type Phase int

const (
	Unconfigured Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Ready {
		return "ready"
	}
	return "unconfigured"
}

// Storage is the durable key-value area
type Storage interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Remove(ctx context.Context, keys ...string) error
}

// Completer sends a transcript to the completion API
type Completer interface {
	Complete(ctx context.Context, apiKey string, messages []session.Message) (backend.Reply, error)
}

// Requester reaches other contexts
type Requester interface {
	Request(ctx context.Context, to string, req messaging.Request, out any) error
}

// View is the popup document
type View interface {
	ShowCredentialForm()
	ShowChat()
	AppendMessage(b view.Block)
	ClearMessages()
	SetBusy(busy bool)
	SetStatus(text string, kind view.StatusKind)
}

// Options tune a Session
type Options struct {
	StatusTTL        time.Duration
	KeepPendingQuery bool
}

// Session is the popup's state for one open popup. It is created when the
// popup opens and must be closed when it goes away.
type Session struct {
	id     string
	store  Storage
	api    Completer
	pages  Requester
	view   View
	status *view.StatusLine
	opts   Options
	logger *slog.Logger

	mu             sync.Mutex
	phase          Phase
	transcript     session.Transcript
	epoch          int // bumped by ClearConversation so in-flight replies are dropped
	includeContext bool
	busy           bool
	draft          string
}

// New creates a popup session. Call Initialize before use.
func New(store Storage, api Completer, pages Requester, v View, opts Options, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		store:  store,
		api:    api,
		pages:  pages,
		view:   v,
		status: view.NewStatusLine(v, opts.StatusTTL),
		opts:   opts,
		logger: logger.With("popup_session", id),
	}
}

// ID identifies this popup session in logs
func (s *Session) ID() string {
	return s.id
}

// Initialize reads the credential, restores the transcript when one is
// configured and picks up any pending query.
func (s *Session) Initialize(ctx context.Context) error {
	apiKey, err := s.apiKey(ctx)
	if err != nil {
		s.ShowStatus("Failed to read settings: "+err.Error(), view.StatusError)
		return err
	}

	if apiKey == "" {
		s.view.ShowCredentialForm()
	} else {
		s.setReady()
		if err := s.loadConversationHistory(ctx); err != nil {
			s.logger.Error("failed to load conversation history", "error", err)
			s.ShowStatus("Failed to load conversation history", view.StatusError)
		}
	}

	s.ConsumePendingQuery(ctx)

	s.logger.Info("popup initialized", "phase", s.Phase().String(), "messages", len(s.Transcript()))
	return nil
}

// SaveCredential stores a non-blank API key and shows the chat.
func (s *Session) SaveCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		s.ShowStatus("Please enter a valid API key", view.StatusError)
		return ErrEmptyCredential
	}

	if err := s.store.Set(ctx, storage.KeyAPIKey, key); err != nil {
		s.logger.Error("failed to save API key", "error", err)
		s.ShowStatus("Failed to save API key", view.StatusError)
		return err
	}

	s.ShowStatus("API Key saved successfully!", view.StatusSuccess)
	s.setReady()
	return nil
}

// SendUserMessage sends text, framed with page context when that is
// enabled. The view shows text as typed; the transcript holds what was sent.
func (s *Session) SendUserMessage(ctx context.Context, text string) error {
	message := strings.TrimSpace(text)
	if message == "" {
		s.ShowStatus("Please enter a message", view.StatusError)
		return ErrEmptyMessage
	}
	if s.Busy() {
		return ErrBusy
	}

	fullMessage := message
	if s.IncludeContext() {
		page, err := s.pageContent(ctx)
		if err != nil {
			s.logger.Warn("sending without page context", "error", err)
		} else {
			fullMessage = contextPrompt(page, message)
		}
	}

	s.mu.Lock()
	s.draft = ""
	s.mu.Unlock()

	s.RenderMessage(view.RoleUser, message, nil)
	return s.SendToAI(ctx, fullMessage, false)
}

// SummarizePage asks for a summary of the active page. The prompt itself
// is not shown as a user message.
func (s *Session) SummarizePage(ctx context.Context) error {
	if s.Busy() {
		return ErrBusy
	}

	page, err := s.pageContent(ctx)
	if err != nil {
		s.logger.Warn("failed to read page for summary", "error", err)
		s.ShowStatus("Could not read the current page", view.StatusError)
		return err
	}

	return s.SendToAI(ctx, summaryPrompt(page), true)
}

// SendToAI appends message to the transcript and sends the whole
// transcript. On failure the transcript is restored to what it was before
// the call.
func (s *Session) SendToAI(ctx context.Context, message string, isSummary bool) error {
	apiKey, err := s.apiKey(ctx)
	if err != nil || apiKey == "" {
		s.ShowStatus("Please set your API key first", view.StatusError)
		return ErrMissingCredential
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	epoch := s.epoch
	before := len(s.transcript)
	s.transcript = append(s.transcript, session.Message{Role: session.RoleUser, Content: message})
	history := s.transcript.Clone()
	s.mu.Unlock()

	s.view.SetBusy(true)
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.view.SetBusy(false)
	}()

	start := time.Now()
	reply, err := s.api.Complete(ctx, apiKey, history)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.transcript = s.transcript.Truncate(before)
		}
		s.mu.Unlock()

		reqErr := &RequestError{Err: err}
		s.logger.Error("completion request failed", "error", err, "summary", isSummary)
		s.ShowStatus(reqErr.Error(), view.StatusError)
		return reqErr
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Info("dropping reply for cleared conversation")
		return nil
	}
	s.transcript = append(s.transcript, session.Message{Role: session.RoleAssistant, Content: reply.Content})
	saved := s.transcript.Clone()
	s.mu.Unlock()

	s.RenderMessage(view.RoleAI, reply.Content, reply.Citations)

	if err := s.store.Set(ctx, storage.KeyConversationHistory, saved); err != nil {
		s.logger.Error("failed to save conversation history", "error", err)
	}

	s.logger.Info("exchange completed",
		"summary", isSummary,
		"messages", len(saved),
		"citations", len(reply.Citations),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// ClearConversation forgets the transcript in memory and in storage.
func (s *Session) ClearConversation(ctx context.Context) error {
	s.mu.Lock()
	s.transcript = nil
	s.epoch++
	s.mu.Unlock()

	s.view.ClearMessages()
	if err := s.store.Remove(ctx, storage.KeyConversationHistory); err != nil {
		s.logger.Error("failed to remove conversation history", "error", err)
	}

	s.ShowStatus("Chat cleared", view.StatusSuccess)
	return nil
}

// RenderMessage appends one message block with numbered citations.
func (s *Session) RenderMessage(role view.Role, content string, citations []string) {
	s.view.AppendMessage(view.NewBlock(role, content, citations))
}

// ShowStatus shows a transient status message
func (s *Session) ShowStatus(text string, kind view.StatusKind) {
	s.status.Show(text, kind)
}

// Close tears the session down
func (s *Session) Close() {
	s.status.Stop()
	s.logger.Info("popup closed")
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transcript returns a copy of the conversation
func (s *Session) Transcript() session.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Draft is the message input's prefilled text, from a pending query
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) SetIncludeContext(include bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeContext = include
}

func (s *Session) IncludeContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.includeContext
}

// Busy reports whether send and summarize are disabled
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) setReady() {
	s.mu.Lock()
	s.phase = Ready
	s.mu.Unlock()
	s.view.ShowChat()
}

func (s *Session) apiKey(ctx context.Context) (string, error) {
	var key string
	if _, err := s.store.Get(ctx, storage.KeyAPIKey, &key); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Session) pageContent(ctx context.Context) (pageagent.Snapshot, error) {
	var page pageagent.Snapshot
	err := s.pages.Request(ctx, messaging.ActiveTab, messaging.Request{Action: messaging.ActionGetPageContent}, &page)
	return page, err
}

func (s *Session) loadConversationHistory(ctx context.Context) error {
	var history session.Transcript
	found, err := s.store.Get(ctx, storage.KeyConversationHistory, &history)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	s.transcript = history
	s.mu.Unlock()

	for _, msg := range history {
		switch msg.Role {
		case session.RoleUser:
			s.RenderMessage(view.RoleUser, msg.Content, nil)
		case session.RoleAssistant:
			s.RenderMessage(view.RoleAI, msg.Content, nil)
		}
	}
	return nil
}

// ConsumePendingQuery moves a stored pending query into the draft input.
// It reports whether a query was found.
func (s *Session) ConsumePendingQuery(ctx context.Context) bool {
	var pending string
	found, err := s.store.Get(ctx, storage.KeyPendingQuery, &pending)
	if err != nil {
		s.logger.Warn("failed to read pending query", "error", err)
		return false
	}
	if !found || pending == "" {
		return false
	}

	s.mu.Lock()
	s.draft = pending
	s.mu.Unlock()

	if !s.opts.KeepPendingQuery {
		if err := s.store.Remove(ctx, storage.KeyPendingQuery); err != nil {
			s.logger.Warn("failed to clear pending query", "error", err)
		}
	}
	return true
}
