package rpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

// fakeServer is the analysis-server end of an in-memory connection.
type fakeServer struct {
	conn        *jsonrpc2.Conn
	initialized chan struct{}
	requests    chan string
}

func startFakeServer(t *testing.T, stream net.Conn) *fakeServer {
	t.Helper()
	srv := &fakeServer{
		initialized: make(chan struct{}),
		requests:    make(chan string, 16),
	}
	handler := jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		srv.requests <- req.Method
		switch req.Method {
		case "initialize":
			return protocol.InitializeResult{}, nil
		case "initialized":
			close(srv.initialized)
			return nil, nil
		case MethodDeglob:
			var params DeglobParams
			require.NoError(t, json.Unmarshal(*req.Params, &params))
			return nil, nil
		case MethodImplementation:
			return []protocol.Location{{URI: "file:///src/lib.rs"}}, nil
		case "test/fail":
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "timeout"}
		default:
			return nil, nil
		}
	})
	srv.conn = jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}),
		handler,
	)
	t.Cleanup(func() { _ = srv.conn.Close() })
	return srv
}

func startedClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	srv := startFakeServer(t, serverSide)
	c := NewClient(clientSide, zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(context.Background(), t.TempDir()))
	return c, srv
}

func TestClientHandshake(t *testing.T) {
	c, srv := startedClient(t)
	select {
	case <-srv.initialized:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw initialized")
	}
	select {
	case <-c.Ready():
	default:
		t.Fatal("client not ready after Start")
	}
}

func TestClientCallDecodesResult(t *testing.T) {
	c, _ := startedClient(t)

	var locs []protocol.Location
	err := c.Call(context.Background(), MethodImplementation, ImplementationParams{}, &locs)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, protocol.DocumentURI("file:///src/lib.rs"), locs[0].URI)
}

func TestClientCallPropagatesFailureReason(t *testing.T) {
	c, _ := startedClient(t)

	err := c.Call(context.Background(), "test/fail", nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
}

func TestClientCallBeforeStart(t *testing.T) {
	clientSide, _ := net.Pipe()
	c := NewClient(clientSide, zerolog.Nop())
	err := c.Call(context.Background(), MethodDeglob, nil, nil)
	require.Error(t, err)
}

type countingSink struct {
	begins chan struct{}
	ends   chan struct{}
}

func (s *countingSink) BeginBuild() { s.begins <- struct{}{} }
func (s *countingSink) EndBuild()   { s.ends <- struct{}{} }

func TestBindProgressRoutesNotifications(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	srv := startFakeServer(t, serverSide)
	c := NewClient(clientSide, zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })

	sink := &countingSink{begins: make(chan struct{}, 8), ends: make(chan struct{}, 8)}
	c.BindProgress(sink)
	require.NoError(t, c.Start(context.Background(), t.TempDir()))

	require.NoError(t, srv.conn.Notify(context.Background(), MethodBeginBuild, nil))
	require.NoError(t, srv.conn.Notify(context.Background(), MethodDiagnosticsEnd, nil))
	require.NoError(t, srv.conn.Notify(context.Background(), MethodDiagnosticsEnd, nil))

	expectSignal(t, sink.begins, "begin")
	expectSignal(t, sink.ends, "end")
	expectSignal(t, sink.ends, "end")
}

func expectSignal(t *testing.T, ch <-chan struct{}, label string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s signal", label)
	}
}
