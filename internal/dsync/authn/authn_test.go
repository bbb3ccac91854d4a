package authn

import (
	"crypto/md5"
	"encoding/base64"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMD5MatchesUpstreamNesting(t *testing.T) {
	user, pass, nonce := "alice", "s3cret", "Nonce"

	inner := md5.Sum([]byte(user + ":" + pass))
	innerB64 := base64.StdEncoding.EncodeToString(inner[:])
	outer := md5.Sum([]byte(innerB64 + ":" + nonce))
	want := base64.StdEncoding.EncodeToString(outer[:])

	assert.Equal(t, want, EncodeMD5(user, pass, nonce))
}

func TestVerifyMD5RoundTrip(t *testing.T) {
	encoded := EncodeMD5("bob", "hunter2", "N1")
	assert.True(t, VerifyMD5("bob", "hunter2", "N1", encoded))
	assert.False(t, VerifyMD5("bob", "wrong", "N1", encoded))
}

func TestEncodeBasic(t *testing.T) {
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("alice:s3cret")), EncodeBasic("alice", "s3cret"))
}

func TestHandleChallengeFailsOnSameTypePending(t *testing.T) {
	_, err := HandleChallenge(model.AuthMD5, true, model.AuthMD5)
	require.ErrorIs(t, err, ErrReChallenged)
}

func TestHandleChallengeSwitchesType(t *testing.T) {
	newType, err := HandleChallenge(model.AuthNone, false, model.AuthMD5)
	require.NoError(t, err)
	assert.Equal(t, model.AuthMD5, newType)
}
