package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type snapshot struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func TestRouter_RequestCopiesResult(t *testing.T) {
	r := NewRouter(testLogger())
	shared := &snapshot{Title: "Example", URL: "https://e.com"}
	r.Register(ActiveTab, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		assert.Equal(t, ActionGetPageContent, req.Action)
		return shared, nil
	}))

	var got snapshot
	require.NoError(t, r.Request(context.Background(), ActiveTab, Request{Action: ActionGetPageContent}, &got))
	assert.Equal(t, *shared, got)

	got.Title = "mutated"
	assert.Equal(t, "Example", shared.Title)
}

func TestRouter_RequestMissingEndpoint(t *testing.T) {
	r := NewRouter(testLogger())
	err := r.Request(context.Background(), ActiveTab, Request{Action: ActionGetPageContent}, nil)
	assert.Error(t, err)
}

func TestRouter_RequestHandlerError(t *testing.T) {
	r := NewRouter(testLogger())
	r.Register(ActiveTab, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		return nil, errors.New("no content script")
	}))

	err := r.Request(context.Background(), ActiveTab, Request{Action: ActionGetPageContent}, nil)
	assert.ErrorContains(t, err, "no content script")
}

func TestRouter_SendIsFireAndForget(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRouter(testLogger())
	received := make(chan Request, 1)
	r.Register(Background, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		received <- req
		return nil, errors.New("ignored by sender")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	r.Send(ctx, Background, Request{Action: ActionOpenPopup})
	cancel()

	select {
	case req := <-received:
		assert.Equal(t, ActionOpenPopup, req.Action)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestRouter_SendToMissingEndpointIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRouter(testLogger())
	r.Send(context.Background(), Background, Request{Action: ActionOpenPopup})
}

func TestRouter_Unregister(t *testing.T) {
	r := NewRouter(testLogger())
	r.Register(ActiveTab, HandlerFunc(func(ctx context.Context, req Request) (any, error) {
		return nil, nil
	}))
	require.NoError(t, r.Request(context.Background(), ActiveTab, Request{Action: "x"}, nil))

	r.Unregister(ActiveTab)
	assert.Error(t, r.Request(context.Background(), ActiveTab, Request{Action: "x"}, nil))
}
