package messaging

import "encoding/json"

// Actions understood by the three contexts.
const (
	ActionOpenPopup      = "openPopup"
	ActionGetPageContent = "getPageContent"
)

// Endpoint names registered on a Router.
const (
	Background = "background"
	ActiveTab  = "page"
)

// Request is the message exchanged between contexts
type Request struct {
	Action string `json:"action"`
}

// JSON-RPC 2.0 style frames used by the WebSocket transport.
// A frame with a Method is a request; ID 0 marks a notification that
// expects no answer. A frame without a Method is a response.
type Frame struct {
	JSONRPC string          `json:"jsonrpc"` // Always "2.0"
	ID      int             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes
const (
	CodeInternalError = -32603
)

func (f Frame) isRequest() bool {
	return f.Method != ""
}
