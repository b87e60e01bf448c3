// Package commands forwards editor-invoked actions to the analysis server as
// single request/response round trips.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/rlshost/rpc"
	"github.com/lexcodex/rlshost/surface"
)

// Requester issues named protocol requests. Satisfied by *rpc.Client.
type Requester interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Navigator applies the editor-side effect of a successful location request.
type Navigator interface {
	ShowLocations(locations []protocol.Location) error
}

// Updater triggers a toolchain update.
type Updater interface {
	Update(ctx context.Context) error
}

// Bindings wires the editor's commands onto the protocol client. Failures
// surface a non-fatal warning carrying the reason; there are no retries and
// no side effects on failure.
type Bindings struct {
	client  Requester
	surface surface.Surface
	nav     Navigator
	updater Updater
	log     zerolog.Logger
}

// NewBindings builds the command forwarders.
func NewBindings(client Requester, sfc surface.Surface, nav Navigator, updater Updater, log zerolog.Logger) *Bindings {
	return &Bindings{client: client, surface: sfc, nav: nav, updater: updater, log: log}
}

// Deglob expands the glob import under the selected range.
func (b *Bindings) Deglob(ctx context.Context, doc protocol.TextDocumentIdentifier, rng protocol.Range) {
	params := rpc.DeglobParams{TextDocument: doc, Range: rng}
	if err := b.client.Call(ctx, rpc.MethodDeglob, params, nil); err != nil {
		b.warn("deglob", err)
	}
}

// FindImplementations resolves implementations of the item at the position
// and asks the editor to navigate to them.
func (b *Bindings) FindImplementations(ctx context.Context, doc protocol.TextDocumentIdentifier, pos protocol.Position) {
	params := rpc.ImplementationParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: doc,
			Position:     pos,
		},
	}
	var locations []protocol.Location
	if err := b.client.Call(ctx, rpc.MethodImplementation, params, &locations); err != nil {
		b.warn("find implementations", err)
		return
	}
	if b.nav == nil {
		return
	}
	if err := b.nav.ShowLocations(locations); err != nil {
		b.warn("find implementations", err)
	}
}

// TriggerUpdate runs a toolchain update on demand.
func (b *Bindings) TriggerUpdate(ctx context.Context) {
	if b.updater == nil {
		return
	}
	if err := b.updater.Update(ctx); err != nil {
		b.warn("toolchain update", err)
	}
}

func (b *Bindings) warn(action string, err error) {
	b.log.Warn().Str("action", action).Err(err).Msg("command failed")
	b.surface.ShowWarning(fmt.Sprintf("%s failed: %v", action, err))
}
