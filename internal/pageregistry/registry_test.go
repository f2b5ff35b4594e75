package pageregistry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName_RejectsEmptyAndOversized(t *testing.T) {
	require.NoError(t, validateName("checkout"))
	require.ErrorIs(t, validateName(""), ErrInvalidName)
	require.ErrorIs(t, validateName(strings.Repeat("a", 257)), ErrInvalidName)
	require.NoError(t, validateName(strings.Repeat("a", 256)))
}

func TestWSEndpoint_BuildsDevtoolsURL(t *testing.T) {
	r := New(context.Background(), "localhost:9222", nil, nil, "")
	require.Equal(t, "ws://localhost:9222/devtools/page/ABC123", r.WSEndpoint("ABC123"))
}

func TestParsePageName_DecodesPercentEncoding(t *testing.T) {
	name, err := ParsePageName("checkout%20flow")
	require.NoError(t, err)
	require.Equal(t, "checkout flow", name)
}

func TestParsePageName_ErrorsOnMalformedEncoding(t *testing.T) {
	_, err := ParsePageName("bad%")
	require.Error(t, err)
}

func TestGetAndList_EmptyRegistry(t *testing.T) {
	r := New(context.Background(), "localhost:9222", nil, nil, "")

	_, ok := r.Get("missing")
	require.False(t, ok)
	require.Empty(t, r.List())
}

func TestAcquirePage_UnknownNameReturnsErrNotFound(t *testing.T) {
	r := New(context.Background(), "localhost:9222", nil, nil, "")

	_, err := r.AcquirePage(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_UnknownNameReturnsErrNotFound(t *testing.T) {
	r := New(context.Background(), "localhost:9222", nil, nil, "")

	err := r.Remove(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
