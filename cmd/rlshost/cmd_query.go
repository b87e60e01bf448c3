package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/rlshost/commands"
	"github.com/lexcodex/rlshost/rpc"
)

// printNavigator lists resolved locations instead of jumping to them; the
// CLI has no editor to navigate.
type printNavigator struct {
	out io.Writer
}

func (n *printNavigator) ShowLocations(locations []protocol.Location) error {
	if len(locations) == 0 {
		fmt.Fprintln(n.out, "no results")
		return nil
	}
	for _, loc := range locations {
		fmt.Fprintf(n.out, "%s:%d:%d\n", loc.URI, loc.Range.Start.Line+1, loc.Range.Start.Character+1)
	}
	return nil
}

// withSession launches a server session, runs fn against its protocol
// client, and shuts the session down.
func withSession(ctx context.Context, fn func(ctx context.Context, act *activation, client *rpc.Client) error) error {
	act, err := activate(flagWorkspace, nil, false)
	if err != nil {
		return err
	}
	defer act.close()

	child, client, err := launchServer(ctx, act, flagWorkspace)
	if err != nil {
		return err
	}
	if child == nil {
		return errors.New("no analysis server available")
	}
	defer func() {
		_ = client.Close()
		_ = child.Kill()
		<-child.Done()
	}()
	return fn(ctx, act, client)
}

func docIdentifier(path string) (protocol.TextDocumentIdentifier, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return protocol.TextDocumentIdentifier{}, err
	}
	return protocol.TextDocumentIdentifier{URI: protocol.DocumentURI("file://" + abs)}, nil
}

func parsePosition(lineArg, colArg string) (protocol.Position, error) {
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 1 {
		return protocol.Position{}, fmt.Errorf("invalid line %q", lineArg)
	}
	col, err := strconv.Atoi(colArg)
	if err != nil || col < 1 {
		return protocol.Position{}, fmt.Errorf("invalid column %q", colArg)
	}
	return protocol.Position{Line: uint32(line - 1), Character: uint32(col - 1)}, nil
}

func newImplsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impls <file> <line> <column>",
		Short: "List implementations of the item at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := docIdentifier(args[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, act *activation, client *rpc.Client) error {
				nav := &printNavigator{out: cmd.OutOrStdout()}
				bindings := commands.NewBindings(client, act.surface, nav, act.runner, act.log)
				bindings.FindImplementations(ctx, doc, pos)
				return nil
			})
		},
	}
}

func newDeglobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deglob <file> <line> <column>",
		Short: "Expand the glob import at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := docIdentifier(args[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, act *activation, client *rpc.Client) error {
				bindings := commands.NewBindings(client, act.surface, nil, act.runner, act.log)
				bindings.Deglob(ctx, doc, protocol.Range{Start: pos, End: pos})
				return nil
			})
		},
	}
}
