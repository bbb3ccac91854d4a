// Package authn implements the Authentication sub-protocol:
// Basic and MD5 credential encode/verify, challenge composition, and the
// nonce lifecycle backing MD5 re-challenge.
//
// The MD5 nesting order is mandated bit-for-bit by the upstream
// buteo-syncml AuthHelper::encodeMD5Auth (original_source/src/
// AuthHelper.cpp): MD5(B64(MD5(user:pass)):nonce), both hashes raw bytes
// fed to crypto/md5, the inner hash base64-encoded before being joined to
// the nonce with a colon. No bespoke hash implementation is used — the
// standard library's MD5 and base64 cover it.
package authn

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// EncodeBasic returns base64(user ":" pass).
func EncodeBasic(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// EncodeMD5 returns MD5(B64(MD5(user:pass)):nonce), base64-encoded — the
// value carried in a <Cred><Data> element.
func EncodeMD5(user, pass, nonce string) string {
	inner := md5.Sum([]byte(user + ":" + pass))
	innerB64 := base64.StdEncoding.EncodeToString(inner[:])
	outer := md5.Sum([]byte(innerB64 + ":" + nonce))
	return base64.StdEncoding.EncodeToString(outer[:])
}

// VerifyBasic is encode-and-compare against a supplied base64 value.
func VerifyBasic(user, pass, supplied string) bool {
	return EncodeBasic(user, pass) == supplied
}

// VerifyMD5 is encode-and-compare against a supplied base64 value.
func VerifyMD5(user, pass, nonce, supplied string) bool {
	return EncodeMD5(user, pass, nonce) == supplied
}

// Challenge is the Chal fragment contents generated by GenerateChallenge.
type Challenge struct {
	Type model.AuthType
	NextNonce string // only set for AuthMD5
}

// GenerateChallenge builds a Chal for the given auth type. For MD5 it
// also generates a fresh nonce, persists it keyed by (local, remote), and
// returns it base64-free (the wire layer is responsible for the
// NextNonce meta element's own encoding) for later inbound verification.
func GenerateChallenge(ctx context.Context, kind model.AuthType, noncePersister ports.NoncePersister, local, remote string) (*Challenge, error) {
	if kind == model.AuthNone {
		return &Challenge{Type: model.AuthNone}, nil
	}
	if kind == model.AuthBasic {
		return &Challenge{Type: model.AuthBasic}, nil
	}

	nonce, err := noncePersister.Generate()
	if err != nil {
		return nil, fmt.Errorf("authn: generate nonce: %w", err)
	}
	if err := noncePersister.Upsert(ctx, local, remote, nonce); err != nil {
		return nil, fmt.Errorf("authn: persist nonce: %w", err)
	}
	return &Challenge{Type: model.AuthMD5, NextNonce: nonce}, nil
}

// ErrReChallenged indicates the peer challenged the same auth type twice
// while an attempt was already pending, an auth-fatal condition.
var ErrReChallenged = fmt.Errorf("authn: re-challenged on the same auth type with a pending attempt")

// HandleChallenge implements the challenge-handling-on-receipt rule: if
// currentType already equals the challenged type and an attempt is
// pending, it is a failure; otherwise the caller should switch to the new
// type, store the supplied nonce (if any), and resend the current
// outbound package.
//
// Returns the auth type to switch to, or ErrReChallenged.
func HandleChallenge(currentType model.AuthType, pendingAttempt bool, challengedType model.AuthType) (model.AuthType, error) {
	if currentType == challengedType && pendingAttempt {
		return currentType, ErrReChallenged
	}
	return challengedType, nil
}
