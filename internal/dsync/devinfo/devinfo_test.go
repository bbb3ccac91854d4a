package devinfo

import (
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineShapeLocalInitiated(t *testing.T) {
	h := NewHandler(Info{Man: "Acme"})
	assert.Equal(t, ShapePutGet, h.DetermineShape())
}

func TestDetermineShapeRemoteGetWithoutRemoteInfo(t *testing.T) {
	h := NewHandler(Info{Man: "Acme"})
	h.RecordRemoteGet()
	assert.Equal(t, ShapeResultsGet, h.DetermineShape())
}

func TestDetermineShapeRemoteGetWithRemoteInfo(t *testing.T) {
	h := NewHandler(Info{Man: "Acme"})
	h.RecordRemote(Info{Man: "Other"})
	h.RecordRemoteGet()
	assert.Equal(t, ShapeResults, h.DetermineShape())
}

func TestLocalSentOnce(t *testing.T) {
	h := NewHandler(Info{})
	require.False(t, h.LocalSent())
	h.MarkLocalSent()
	require.True(t, h.LocalSent())
}

func TestValidateTargetURI(t *testing.T) {
	require.NoError(t, ValidateTargetURI(model.VersionDS12, "./devinf12"))
	require.Error(t, ValidateTargetURI(model.VersionDS12, "./devinf11"))
	require.Error(t, ValidateTargetURI(model.VersionDS11, "./devinf12"))
}
