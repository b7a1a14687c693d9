package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned for calls on a closed connection
var ErrClosed = errors.New("connection is closed")

// Conn is one side of a WebSocket link between two contexts. Requests
// arriving from the peer are answered by the local handler; HandleMessage
// and Notify forward to the peer, so a Conn can be registered on a Router
// as a remote endpoint.
type Conn struct {
	name    string
	conn    *websocket.Conn
	handler Handler
	reqID   int32
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int]chan Frame
	closed  bool
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	writeMu sync.Mutex
}

func newConn(name string, ws *websocket.Conn, handler Handler, logger *slog.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		name:    name,
		conn:    ws,
		handler: handler,
		logger:  logger,
		pending: make(map[int]chan Frame),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dial connects to a peer served by Serve. Requests from the peer are
// answered by handler.
func Dial(ctx context.Context, url string, handler Handler, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c := newConn(url, ws, handler, logger)
	go c.readLoop()

	logger.Info("connected to peer context", "url", url)
	return c, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Serve returns an HTTP handler that upgrades each request to a Conn whose
// incoming requests are answered by handler. onConnect, if set, is called
// before frames are read. The HTTP handler returns when the peer goes away.
func Serve(handler Handler, onConnect func(*Conn), logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		c := newConn(r.RemoteAddr, ws, handler, logger)
		logger.Info("peer context connected", "remote", r.RemoteAddr)
		if onConnect != nil {
			onConnect(c)
		}
		c.readLoop()
	})
}

// Name returns the peer identifier
func (c *Conn) Name() string {
	return c.name
}

// Done is closed once the connection has shut down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// HandleMessage forwards req to the peer and waits for its answer. The
// answer is returned as raw JSON.
func (c *Conn) HandleMessage(ctx context.Context, req Request) (any, error) {
	reqID := int(atomic.AddInt32(&c.reqID, 1))
	ch := make(chan Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[reqID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	if err := c.write(Frame{JSONRPC: "2.0", ID: reqID, Method: req.Action}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Notify sends req to the peer without expecting an answer
func (c *Conn) Notify(ctx context.Context, req Request) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.write(Frame{JSONRPC: "2.0", Method: req.Action})
}

// Close disconnects from the peer
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.shutdown()
	return nil
}

func (c *Conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.done)
	c.conn.Close()
	c.logger.Info("peer context disconnected", "name", c.name)
}

func (c *Conn) readLoop() {
	defer c.shutdown()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read loop ended", "name", c.name, "error", err)
			}
			return
		}

		if f.isRequest() {
			go c.dispatch(f)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping response with no waiter", "id", f.ID)
			continue
		}
		select {
		case ch <- f:
		default:
			c.logger.Debug("dropping duplicate response", "id", f.ID)
		}
	}
}

func (c *Conn) dispatch(f Frame) {
	req := Request{Action: f.Method}

	var (
		result any
		err    error
	)
	if c.handler == nil {
		err = fmt.Errorf("no handler for %s", f.Method)
	} else {
		result, err = c.handler.HandleMessage(c.ctx, req)
	}

	if f.ID == 0 {
		if err != nil {
			c.logger.Warn("notification handler failed", "action", f.Method, "error", err)
		}
		return
	}

	resp := Frame{JSONRPC: "2.0", ID: f.ID}
	if err != nil {
		resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
	} else {
		data, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
		} else {
			resp.Result = data
		}
	}

	if err := c.write(resp); err != nil {
		c.logger.Debug("failed to answer peer", "id", f.ID, "error", err)
	}
}
