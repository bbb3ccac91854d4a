// Package httptransport implements the Transport contract over HTTP: a
// client-role sender that POSTs an outbound SyncML message and waits for
// the paired response, and a server-role receiver that turns an inbound
// POST into a Receive/SendSyncML round-trip for one session at a time.
package httptransport

import (
	"strings"

	"github.com/marmos91/syncmld/internal/dsync/ports"
)

type inboundMessage struct {
	data        []byte
	contentType ports.ContentType
}

// contentTypeFromMIME maps an HTTP Content-Type header back to a
// ports.ContentType. Unrecognized values fall back to XML, the historical
// default wire encoding.
func contentTypeFromMIME(mime string) ports.ContentType {
	switch {
	case strings.Contains(mime, "wbxml"):
		return ports.ContentWbXML
	case strings.Contains(mime, "notification"):
		return ports.ContentSAN
	default:
		return ports.ContentXML
	}
}
