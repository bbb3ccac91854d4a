package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// ClientTransport implements ports.Transport for the client role: each
// SendSyncML POSTs to serverURL and buffers the paired response for the
// next Receive call. SAN is not applicable on the client side since the
// notification arrives out-of-band (SMS/WAP push), not over this POST
// channel.
//
// Resend behavior follows a standard cenkalti/backoff/v4 retry shape: an
// exponential backoff wrapped with WithMaxRetries and WithContext, with
// backoff.Permanent marking errors that resending cannot fix.
type ClientTransport struct {
	httpClient *http.Client
	serverURL  string

	remoteLocURI string
	maxTxSize    int64
	maxRxSize    int64

	resendAttempts        int
	resendInitialInterval time.Duration

	pending *inboundMessage
}

var _ ports.Transport = (*ClientTransport)(nil)

// NewClientTransport builds a client transport posting to serverURL. When
// proxyHost is non-empty, outbound requests are routed through it instead
// of the environment-derived default proxy.
func NewClientTransport(serverURL string, maxTxSize, maxRxSize int64, resendAttempts int, resendInitialInterval time.Duration, proxyHost string, proxyPort int) *ClientTransport {
	httpTransport := &http.Transport{}
	if proxyHost != "" {
		proxyURL := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", proxyHost, proxyPort)}
		httpTransport.Proxy = http.ProxyURL(proxyURL)
	}

	return &ClientTransport{
		httpClient:            &http.Client{Timeout: 60 * time.Second, Transport: httpTransport},
		serverURL:             serverURL,
		maxTxSize:             maxTxSize,
		maxRxSize:             maxRxSize,
		resendAttempts:        resendAttempts,
		resendInitialInterval: resendInitialInterval,
	}
}

func (c *ClientTransport) SetRemoteLocURI(uri string) { c.remoteLocURI = uri }

func (c *ClientTransport) GetMaxTxSize() int64 { return c.maxTxSize }
func (c *ClientTransport) GetMaxRxSize() int64 { return c.maxRxSize }

func (c *ClientTransport) SendSyncML(ctx context.Context, data []byte, contentType ports.ContentType) error {
	if int64(len(data)) > c.maxTxSize {
		return fmt.Errorf("httptransport: outbound message %d bytes exceeds max tx size %d", len(data), c.maxTxSize)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.resendInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.resendAttempts)), ctx)

	var msg inboundMessage
	err := backoff.Retry(func() error {
		body, ct, err := c.post(ctx, data, contentType)
		if err != nil {
			return err
		}
		msg = inboundMessage{data: body, contentType: ct}
		return nil
	}, policy)
	if err != nil {
		return fmt.Errorf("httptransport: send syncml: %w", err)
	}

	c.pending = &msg
	return nil
}

func (c *ClientTransport) post(ctx context.Context, data []byte, contentType ports.ContentType) ([]byte, ports.ContentType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(data))
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType.MIMEType())
	if c.remoteLocURI != "" {
		req.Header.Set("X-SyncML-RemoteLocURI", c.remoteLocURI)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, 0, fmt.Errorf("httptransport: server error %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, 0, backoff.Permanent(fmt.Errorf("httptransport: client error %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxRxSize+1))
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	if int64(len(body)) > c.maxRxSize {
		return nil, 0, backoff.Permanent(fmt.Errorf("httptransport: inbound message exceeds max rx size %d", c.maxRxSize))
	}

	return body, contentTypeFromMIME(resp.Header.Get("Content-Type")), nil
}

func (c *ClientTransport) SendSAN(ctx context.Context, data []byte) error {
	return fmt.Errorf("httptransport: client role does not send SAN notifications")
}

func (c *ClientTransport) Receive(ctx context.Context) ([]byte, ports.ContentType, error) {
	if c.pending == nil {
		return nil, 0, fmt.Errorf("httptransport: no pending inbound message")
	}
	msg := c.pending
	c.pending = nil
	return msg.data, msg.contentType, nil
}
