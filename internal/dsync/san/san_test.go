package san

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip12(t *testing.T) {
	data := SANData{
		Version: Version12,
		UI: UIBackground,
		Initiator: InitiatorServer,
		SessionID:        0,
		ServerIdentifier: "PC Suite Data Sync",
		Syncs: []SyncInfo{
			{SyncType: 206, ContentType: "text/x-vcard", ServerURI: "Contacts"},
		},
	}

	raw, err := Encode(data, "", "")
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, data.Version, decoded.Version)
	assert.Equal(t, data.ServerIdentifier, decoded.ServerIdentifier)
	require.Len(t, decoded.Syncs, 1)
	assert.Equal(t, data.Syncs[0], decoded.Syncs[0])

	assert.True(t, CheckDigest(raw, "", "", decoded))
	assert.False(t, CheckDigest(raw, "wrong", "", decoded))
}

func TestEncodeRejectsEmptyServerIdentifier(t *testing.T) {
	_, err := Encode(SANData{Version: Version12, Syncs: []SyncInfo{{SyncType: 200}}}, "p", "n")
	assert.ErrorIs(t, err, ErrEmptyServerIdentifier)
}

func TestEncodeRejectsZeroSyncs(t *testing.T) {
	_, err := Encode(SANData{Version: Version12, ServerIdentifier: "srv"}, "p", "n")
	assert.ErrorIs(t, err, ErrNoSyncs)
}

func TestEncodeRejectsUnsupportedVersion(t *testing.T) {
	_, err := Encode(SANData{Version: 0xFF, ServerIdentifier: "srv", Syncs: []SyncInfo{{SyncType: 200}}}, "p", "n")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeRejectsZeroSyncs(t *testing.T) {
	data := SANData{Version: Version11, ServerIdentifier: "s", Syncs: []SyncInfo{{SyncType: 200, ServerURI: "x"}}}
	raw, err := Encode(data, "p", "n")
	require.NoError(t, err)
	// corrupt the numSync byte (offset 16+8+len("s")) to zero.
	idx := 16 + 8 + len("s")
	raw[idx] = 0x00
	_, err = Decode(raw)
	assert.ErrorIs(t, err, ErrNoSyncs)
}
