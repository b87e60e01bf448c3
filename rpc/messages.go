package rpc

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
)

// Notification and request methods spoken with the analysis server. Each
// method has a fixed payload shape, decoded and validated here rather than
// passed around as untyped maps.
const (
	// MethodBeginBuild is sent by the server when a build starts.
	MethodBeginBuild = "rustDocument/beginBuild"
	// MethodDiagnosticsBegin is sent when post-build analysis starts.
	MethodDiagnosticsBegin = "rustDocument/diagnosticsBegin"
	// MethodDiagnosticsEnd is sent when a build's diagnostics are complete.
	MethodDiagnosticsEnd = "rustDocument/diagnosticsEnd"

	// MethodDeglob asks the server to expand a glob import under a range.
	MethodDeglob = "rustWorkspace/deglob"
	// MethodImplementation resolves implementations of the item at a position.
	MethodImplementation = "textDocument/implementation"
)

// DeglobParams identifies the document range whose glob import should be
// expanded.
type DeglobParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Range        protocol.Range                  `json:"range"`
}

// ImplementationParams locates the position to resolve implementations for.
type ImplementationParams struct {
	protocol.TextDocumentPositionParams
}

// BuildSink consumes the aggregated build progress signals.
type BuildSink interface {
	BeginBuild()
	EndBuild()
}

// BindProgress subscribes the sink to the server's build begin/end
// notifications. The build notifications carry no payload; anything present
// is ignored rather than rejected, matching the server's loose contract.
func (c *Client) BindProgress(sink BuildSink) {
	c.OnNotification(MethodBeginBuild, func(context.Context, json.RawMessage) {
		sink.BeginBuild()
	})
	c.OnNotification(MethodDiagnosticsEnd, func(context.Context, json.RawMessage) {
		sink.EndBuild()
	})
}
