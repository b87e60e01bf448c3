// Package rpc frames the request/response/notification protocol spoken with
// the analysis server over its standard streams.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

// NotificationHandler consumes one notification's raw payload. Handlers run
// on the connection's read loop, in receipt order; they must not block.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Client is a thin JSON-RPC client over the server's stdio. The core never
// builds wire frames itself; it registers handlers and issues named requests.
type Client struct {
	stream io.ReadWriteCloser
	log    zerolog.Logger

	mu       sync.Mutex
	conn     *jsonrpc2.Conn
	handlers map[string][]NotificationHandler

	ready     chan struct{}
	readyOnce sync.Once
}

// NewClient wraps the duplex stream of a launched server.
func NewClient(stream io.ReadWriteCloser, log zerolog.Logger) *Client {
	return &Client{
		stream:   stream,
		log:      log,
		handlers: make(map[string][]NotificationHandler),
		ready:    make(chan struct{}),
	}
}

// OnNotification registers a handler for a notification method. Handlers
// registered for the same method run in registration order.
func (c *Client) OnNotification(method string, h NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = append(c.handlers[method], h)
}

// Start opens the connection and performs the initialize handshake rooted at
// the workspace. Ready is closed once the server has acknowledged.
func (c *Client) Start(ctx context.Context, workspace string) error {
	absRoot, err := filepath.Abs(workspace)
	if err != nil {
		return err
	}
	stream := jsonrpc2.NewBufferedStream(c.stream, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(c.handle))
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.initialize(ctx, absRoot); err != nil {
		_ = conn.Close()
		return err
	}
	c.readyOnce.Do(func() { close(c.ready) })
	return nil
}

// Ready is closed after a successful handshake.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Call issues a request and decodes the response into result.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	conn := c.connection()
	if conn == nil {
		return errors.New("protocol client not started")
	}
	return conn.Call(ctx, method, params, result)
}

// Notify sends a one-way notification.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	conn := c.connection()
	if conn == nil {
		return errors.New("protocol client not started")
	}
	return conn.Notify(ctx, method, params)
}

// Close tears the connection down. The underlying stream is closed exactly
// once, through the connection.
func (c *Client) Close() error {
	conn := c.connection()
	if conn == nil {
		return c.stream.Close()
	}
	return conn.Close()
}

func (c *Client) connection() *jsonrpc2.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// handle dispatches incoming traffic. Requests from the server are not part
// of the consumed surface and are answered with method-not-found.
func (c *Client) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if !req.Notif {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
	}
	c.mu.Lock()
	handlers := append([]NotificationHandler(nil), c.handlers[req.Method]...)
	c.mu.Unlock()
	if len(handlers) == 0 {
		c.log.Debug().Str("method", req.Method).Msg("unhandled notification")
		return nil, nil
	}
	var raw json.RawMessage
	if req.Params != nil {
		raw = *req.Params
	}
	for _, h := range handlers {
		h(ctx, raw)
	}
	return nil, nil
}

func (c *Client) initialize(ctx context.Context, root string) error {
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   protocol.DocumentURI(pathToURI(root)),
		ClientInfo: &protocol.ClientInfo{
			Name:    "rlshost",
			Version: "0.1",
		},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				Implementation:     &protocol.ImplementationTextDocumentClientCapabilities{},
				PublishDiagnostics: &protocol.PublishDiagnosticsClientCapabilities{},
			},
		},
	}
	var result protocol.InitializeResult
	if err := c.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	return c.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

func pathToURI(path string) string {
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" {
		path = strings.ReplaceAll(path, "\\", "/")
		return "file:///" + strings.ReplaceAll(path, ":", "%3A")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}
