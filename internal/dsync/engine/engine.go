// Package engine drives one complete sync to completion or abort: it
// pumps the response generator against a Transport, decodes and parses
// whatever comes back, and feeds the parsed fragments into the Session
// Handler until it reaches a terminal state.
//
// Grounded on this codebase's rpc dispatch loop (decode a frame, hand it
// to the Handler, encode and send whatever the Handler queued, repeat)
// generalized from one RPC call per frame to one SyncML message exchange
// per HTTP round-trip.
package engine

import (
	"context"
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/session"
	"github.com/marmos91/syncmld/internal/dsync/wire"
	"github.com/marmos91/syncmld/internal/logger"
	"github.com/marmos91/syncmld/internal/telemetry"
)

// Codec selects the wire encoding exchanged with the remote party.
type Codec int

const (
	CodecXML Codec = iota
	CodecWbXML
)

func (c Codec) contentType() ports.ContentType {
	if c == CodecWbXML {
		return ports.ContentWbXML
	}
	return ports.ContentXML
}

func (c Codec) encode(root *wire.Element) ([]byte, error) {
	if c == CodecWbXML {
		return wire.EncodeWbXML(root)
	}
	return wire.EncodeXML(root)
}

func decode(data []byte, contentType ports.ContentType) (*wire.Element, error) {
	if contentType == ports.ContentWbXML {
		return wire.DecodeWbXML(data)
	}
	return wire.DecodeXML(data)
}

// Run drives h to completion over transport, using codec for the wire
// encoding. It returns once the session reaches StateSyncFinished or an
// error terminal, or ctx is canceled.
func Run(ctx context.Context, h *session.Handler, transport ports.Transport, codec Codec) error {
	ctx, span := telemetry.StartSessionSpan(ctx, h.SessionID(), h.RemoteDevice(), roleString(h.Role()))
	defer span.End()

	if err := h.Prepare(ctx); err != nil {
		return fmt.Errorf("engine: prepare session: %w", err)
	}
	defer h.Release(ctx)

	if h.Role() == model.RoleClient {
		if err := h.BeginClientInit(ctx); err != nil {
			return fmt.Errorf("engine: begin client init: %w", err)
		}
		return runClient(ctx, h, transport, codec)
	}
	return runServer(ctx, h, transport, codec)
}

// runClient drives the client side: send everything queued, read the
// reply, ingest it, and repeat until the session finishes.
func runClient(ctx context.Context, h *session.Handler, transport ports.Transport, codec Codec) error {
	for {
		if err := flushOutbound(ctx, h, transport, codec); err != nil {
			return err
		}
		if h.State() == session.StateSyncFinished || h.State().IsErrorTerminal() {
			return terminalErr(h)
		}

		if err := receiveAndIngest(ctx, h, transport); err != nil {
			return err
		}
		if h.State() == session.StateSyncFinished || h.State().IsErrorTerminal() {
			if h.HasPendingOutbound() {
				if err := flushOutbound(ctx, h, transport, codec); err != nil {
					return err
				}
			}
			return terminalErr(h)
		}
	}
}

// runServer drives the server side: wait for the next inbound message,
// ingest it, send back whatever it queued, and repeat until the session
// finishes.
func runServer(ctx context.Context, h *session.Handler, transport ports.Transport, codec Codec) error {
	for {
		if err := receiveAndIngest(ctx, h, transport); err != nil {
			return err
		}
		if err := flushOutbound(ctx, h, transport, codec); err != nil {
			return err
		}
		if h.State() == session.StateSyncFinished || h.State().IsErrorTerminal() {
			return terminalErr(h)
		}
	}
}

// flushOutbound drains the response generator, sending one or more
// messages until GenerateNextMessage reports nothing remains queued.
func flushOutbound(ctx context.Context, h *session.Handler, transport ports.Transport, codec Codec) error {
	for {
		root, last := h.GenerateNextMessage(int(transport.GetMaxTxSize()))
		data, err := codec.encode(root)
		if err != nil {
			return fmt.Errorf("engine: encode outbound message: %w", err)
		}
		if err := transport.SendSyncML(ctx, data, codec.contentType()); err != nil {
			return fmt.Errorf("engine: send outbound message: %w", err)
		}
		if last {
			return nil
		}
	}
}

// receiveAndIngest blocks for the next inbound message, parses it, and
// feeds it to the Handler. A malformed message aborts the session instead
// of being ingested, per the Handler's own contract.
func receiveAndIngest(ctx context.Context, h *session.Handler, transport ports.Transport) error {
	data, contentType, err := transport.Receive(ctx)
	if err != nil {
		return fmt.Errorf("engine: receive inbound message: %w", err)
	}

	root, err := decode(data, contentType)
	if err != nil {
		h.Abort(ctx, ports.EventInvalidContent, err.Error())
		return nil
	}

	frags, err := fragment.Parse(root)
	if err != nil {
		h.Abort(ctx, ports.EventInvalidContent, err.Error())
		return nil
	}

	if err := h.IngestMessage(ctx, frags); err != nil {
		logger.ErrorCtx(ctx, "engine: ingest message failed", "error", err.Error())
		return fmt.Errorf("engine: ingest inbound message: %w", err)
	}
	return nil
}

func terminalErr(h *session.Handler) error {
	if h.State().IsErrorTerminal() {
		return fmt.Errorf("engine: session ended in %s", h.State())
	}
	return nil
}

func roleString(role model.Role) string {
	if role == model.RoleServer {
		return "server"
	}
	return "client"
}
