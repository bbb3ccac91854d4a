package httptransport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// ServerTransport implements ports.Transport for the server role. It is
// bound to exactly one in-flight session: each inbound POST blocks in
// ServeHTTP until the session loop calls SendSyncML (or SendSAN) with the
// matching response, then writes that response as the HTTP reply.
type ServerTransport struct {
	maxTxSize int64
	maxRxSize int64

	remoteLocURI string

	reqCh  chan inboundMessage
	respCh chan inboundMessage
	errCh  chan error
}

var (
	_ ports.Transport = (*ServerTransport)(nil)
	_ http.Handler    = (*ServerTransport)(nil)
)

// NewServerTransport builds a transport for a single session, enforcing
// maxTxSize/maxRxSize on every message in either direction.
func NewServerTransport(maxTxSize, maxRxSize int64) *ServerTransport {
	return &ServerTransport{
		maxTxSize: maxTxSize,
		maxRxSize: maxRxSize,
		reqCh:     make(chan inboundMessage),
		respCh:    make(chan inboundMessage),
		errCh:     make(chan error, 1),
	}
}

func (s *ServerTransport) SetRemoteLocURI(uri string) { s.remoteLocURI = uri }

func (s *ServerTransport) GetMaxTxSize() int64 { return s.maxTxSize }
func (s *ServerTransport) GetMaxRxSize() int64 { return s.maxRxSize }

// ServeHTTP hands one inbound request to the session loop via Receive and
// blocks for the paired SendSyncML/SendSAN reply.
func (s *ServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxRxSize+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.maxRxSize {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg := inboundMessage{data: body, contentType: contentTypeFromMIME(r.Header.Get("Content-Type"))}

	select {
	case s.reqCh <- msg:
	case <-r.Context().Done():
		return
	}

	select {
	case resp := <-s.respCh:
		w.Header().Set("Content-Type", resp.contentType.MIMEType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.data)
	case respErr := <-s.errCh:
		http.Error(w, respErr.Error(), http.StatusInternalServerError)
	case <-r.Context().Done():
	}
}

func (s *ServerTransport) Receive(ctx context.Context) ([]byte, ports.ContentType, error) {
	select {
	case msg := <-s.reqCh:
		return msg.data, msg.contentType, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (s *ServerTransport) SendSyncML(ctx context.Context, data []byte, contentType ports.ContentType) error {
	if int64(len(data)) > s.maxTxSize {
		err := fmt.Errorf("httptransport: outbound message %d bytes exceeds max tx size %d", len(data), s.maxTxSize)
		s.errCh <- err
		return err
	}
	select {
	case s.respCh <- inboundMessage{data: data, contentType: contentType}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendSAN delivers a binary SAN payload as the HTTP response body, the
// same channel SendSyncML uses, tagged with the SAN MIME type.
func (s *ServerTransport) SendSAN(ctx context.Context, data []byte) error {
	return s.SendSyncML(ctx, data, ports.ContentSAN)
}
