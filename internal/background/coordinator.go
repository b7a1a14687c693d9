package background

import (
	"context"
	"fmt"
	"log/slog"

	"PerplexityAssistant/internal/messaging"
	"PerplexityAssistant/internal/storage"
)

const (
	MenuID    = "askPerplexity"
	MenuTitle = `Ask Perplexity AI about "%s"`

	ContextSelection = "selection"
)

// Storage is the slice of durable storage the coordinator writes
type Storage interface {
	Set(ctx context.Context, key string, v any) error
}

// PopupOpener opens the popup surface
type PopupOpener interface {
	OpenPopup(ctx context.Context) error
}

// ClickInfo describes a context-menu click
type ClickInfo struct {
	MenuItemID    string
	SelectionText string
}

// Coordinator is the background context. It keeps no state of its own.
type Coordinator struct {
	menus  Menus
	store  Storage
	opener PopupOpener
	logger *slog.Logger
}

// NewCoordinator creates the background context
func NewCoordinator(menus Menus, store Storage, opener PopupOpener, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		menus:  menus,
		store:  store,
		opener: opener,
		logger: logger,
	}
}

// OnInstall registers the selection menu entry. Repeated installs leave
// exactly one entry.
func (c *Coordinator) OnInstall(ctx context.Context) error {
	if err := c.menus.Remove(MenuID); err != nil {
		c.logger.Debug("no previous menu item to remove", "id", MenuID)
	}

	item := MenuItem{
		ID:       MenuID,
		Title:    MenuTitle,
		Contexts: []string{ContextSelection},
	}
	if err := c.menus.Create(item); err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}

	c.logger.Info("context menu registered", "id", MenuID)
	return nil
}

// OnMenuClicked stores the selection as the pending query and opens the
// popup. Clicks on other items or with an empty selection are ignored.
func (c *Coordinator) OnMenuClicked(ctx context.Context, info ClickInfo) {
	if info.MenuItemID != MenuID || info.SelectionText == "" {
		return
	}

	if err := c.store.Set(ctx, storage.KeyPendingQuery, info.SelectionText); err != nil {
		c.logger.Error("failed to store pending query", "error", err)
	}

	c.openPopup(ctx)
}

// HandleMessage relays openPopup; every other action is ignored.
func (c *Coordinator) HandleMessage(ctx context.Context, req messaging.Request) (any, error) {
	if req.Action == messaging.ActionOpenPopup {
		c.openPopup(ctx)
	}
	return nil, nil
}

// openPopup is fire-and-forget: a failure is logged, never retried.
func (c *Coordinator) openPopup(ctx context.Context) {
	if err := c.opener.OpenPopup(ctx); err != nil {
		c.logger.Warn("failed to open popup", "error", err)
	}
}
