package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoMatchesGetters(t *testing.T) {
	v, c, d := Info()

	require.NotEmpty(t, v)
	require.Equal(t, v, GetVersion())
	require.Equal(t, c, GetCommit())
	require.Equal(t, d, GetDate())
}

func TestString(t *testing.T) {
	s := String()

	require.Contains(t, s, Service)
	require.Contains(t, s, "version="+GetVersion())
	require.Contains(t, s, "commit=")
	require.Contains(t, s, "date=")
}
