package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PerplexityAssistant/internal/messaging"
	"PerplexityAssistant/internal/storage"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]any
	err    error
}

func (m *memStore) Set(ctx context.Context, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = v
	return nil
}

type countingOpener struct {
	calls int
	err   error
}

func (o *countingOpener) OpenPopup(ctx context.Context) error {
	o.calls++
	return o.err
}

func newTestCoordinator() (*Coordinator, *MenuRegistry, *memStore, *countingOpener) {
	menus := NewMenuRegistry()
	store := &memStore{}
	opener := &countingOpener{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(menus, store, opener, logger), menus, store, opener
}

func TestOnInstall_IsIdempotent(t *testing.T) {
	c, menus, _, _ := newTestCoordinator()

	require.NoError(t, c.OnInstall(context.Background()))
	require.NoError(t, c.OnInstall(context.Background()))
	require.NoError(t, c.OnInstall(context.Background()))

	items := menus.Items()
	require.Len(t, items, 1)
	assert.Equal(t, MenuID, items[0].ID)
	assert.Equal(t, `Ask Perplexity AI about "%s"`, items[0].Title)
	assert.Equal(t, []string{ContextSelection}, items[0].Contexts)
}

func TestMenuRegistry_RejectsDuplicates(t *testing.T) {
	menus := NewMenuRegistry()
	require.NoError(t, menus.Create(MenuItem{ID: "a"}))
	assert.Error(t, menus.Create(MenuItem{ID: "a"}))
	assert.Error(t, menus.Remove("missing"))
}

func TestOnMenuClicked_StoresPendingQueryAndOpens(t *testing.T) {
	c, _, store, opener := newTestCoordinator()

	c.OnMenuClicked(context.Background(), ClickInfo{MenuItemID: MenuID, SelectionText: "quantum tunnelling"})

	assert.Equal(t, "quantum tunnelling", store.values[storage.KeyPendingQuery])
	assert.Equal(t, 1, opener.calls)
}

func TestOnMenuClicked_IgnoresEmptyOrForeign(t *testing.T) {
	c, _, store, opener := newTestCoordinator()

	c.OnMenuClicked(context.Background(), ClickInfo{MenuItemID: MenuID, SelectionText: ""})
	c.OnMenuClicked(context.Background(), ClickInfo{MenuItemID: "other", SelectionText: "text"})

	assert.Empty(t, store.values)
	assert.Zero(t, opener.calls)
}

func TestOnMenuClicked_OpenFailureIsDropped(t *testing.T) {
	c, _, store, opener := newTestCoordinator()
	opener.err = errors.New("no active window")

	c.OnMenuClicked(context.Background(), ClickInfo{MenuItemID: MenuID, SelectionText: "x"})

	assert.Equal(t, 1, opener.calls)
	assert.Equal(t, "x", store.values[storage.KeyPendingQuery])
}

func TestHandleMessage_RelaysOpenPopupOnly(t *testing.T) {
	c, _, _, opener := newTestCoordinator()

	_, err := c.HandleMessage(context.Background(), messaging.Request{Action: messaging.ActionOpenPopup})
	require.NoError(t, err)
	_, err = c.HandleMessage(context.Background(), messaging.Request{Action: "futureAction"})
	require.NoError(t, err)

	assert.Equal(t, 1, opener.calls)
}
