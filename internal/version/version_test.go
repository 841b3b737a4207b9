package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	require.Regexp(t, `^\d+\.\d+\.\d+(-[0-9A-Za-z-]+)?$`, Version())
}

func TestRichUsesCommit(t *testing.T) {
	old := Commit
	Commit = " abc123 "
	defer func() { Commit = old }()

	rich := Rich()
	require.True(t, strings.HasPrefix(rich, Version()+" "))
	require.Contains(t, rich, "commit=abc123")
	require.Contains(t, rich, "go="+runtime.Version())
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	require.Equal(t, "rc-1", sanitize("rc_-1!"))
	require.Equal(t, "", sanitize(""))
}
