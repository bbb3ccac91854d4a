package session

import (
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/san"
)

// ErrSANDigestMismatch is returned by DecodeSAN when a message decodes
// structurally but its digest does not match the supplied password/nonce.
var ErrSANDigestMismatch = fmt.Errorf("session: SAN digest mismatch")

// DecodeSAN validates and decodes an inbound Server-Alerted Notification:
// the binary out-of-band trigger a server sends over a side channel (SMS,
// push) to wake a client before the ordinary SyncML exchange begins over
// its own transport. The caller supplies the shared password
// and whatever nonce it has on file for the sending server.
func DecodeSAN(raw []byte, password, nonce string) (*san.SANData, error) {
	data, err := san.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !san.CheckDigest(raw, password, nonce, data) {
		return nil, ErrSANDigestMismatch
	}
	return data, nil
}

// EncodeSAN builds the SAN binary message a server sends to alert a client
// of pending server-initiated work, one SyncInfo per datastore requiring
// attention.
func EncodeSAN(data san.SANData, password, nonce string) ([]byte, error) {
	return san.Encode(data, password, nonce)
}
