package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("WSLINK_HOME", filepath.Join(home, "state"))
	t.Setenv("WSLINK_SERVER_URL", "")
	t.Setenv("WSLINK_TRANSPORT", "")
	t.Setenv("WSLINK_DEBUG", "")
	t.Setenv("DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "state"), cfg.Home)
	require.Equal(t, filepath.Join(home, "state", "widget.yaml"), cfg.WidgetFile)
	require.Equal(t, "http://127.0.0.1:8780/ws", cfg.ServerURL)
	require.Equal(t, TransportWebSocket, cfg.Transport)
	require.False(t, cfg.Debug)

	info, err := os.Stat(cfg.Home)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WSLINK_HOME", t.TempDir())
	t.Setenv("WSLINK_SERVER_URL", "https://example.com/hub")
	t.Setenv("WSLINK_TRANSPORT", "SocketIO")
	t.Setenv("WSLINK_DEBUG", "1")
	t.Setenv("WSLINK_SECRET", "s3cret")
	t.Setenv("WSLINK_METRICS_ADDR", ":9100")
	t.Setenv("WSLINK_PUSHOVER_TOKEN", "tok")
	t.Setenv("WSLINK_PUSHOVER_USER", "usr")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/hub", cfg.ServerURL)
	require.Equal(t, TransportSocketIO, cfg.Transport)
	require.True(t, cfg.Debug)
	require.Equal(t, "s3cret", cfg.Secret)
	require.Equal(t, ":9100", cfg.MetricsAddr)
	require.Equal(t, "tok", cfg.PushoverToken)
	require.Equal(t, "usr", cfg.PushoverUser)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("WSLINK_HOME", t.TempDir())
	t.Setenv("WSLINK_TRANSPORT", "carrier-pigeon")

	_, err := Load()
	require.ErrorContains(t, err, "carrier-pigeon")
}

func TestParseWidget(t *testing.T) {
	t.Parallel()

	w, err := ParseWidget([]byte(`
endpoint: ep-1
object: order-42
output:
  readOnly: true
closeParam: bye
bindings:
  - trigger: ping
    action: {kind: print}
  - trigger: noop
  - trigger: run
    action:
      kind: exec
      enabled: false
      command: [echo, hi]
onTimeout: {kind: log, title: timed out}
onNavigate: {kind: quit}
`))
	require.NoError(t, err)
	require.Equal(t, "ep-1", w.Endpoint)
	require.False(t, w.EndpointGenerated)
	require.Equal(t, "order-42", w.Object)
	require.NotNil(t, w.Output)
	require.True(t, w.Output.ReadOnly)
	require.Equal(t, "bye", *w.CloseParam)
	require.Len(t, w.Bindings, 3)
	require.Equal(t, "print", w.Bindings[0].Action.Kind)
	require.True(t, w.Bindings[0].Action.IsEnabled())
	require.Nil(t, w.Bindings[1].Action)
	require.False(t, w.Bindings[2].Action.IsEnabled())
	require.Equal(t, []string{"echo", "hi"}, w.Bindings[2].Action.Command)
	require.Equal(t, "timed out", w.OnTimeout.Title)
	require.Equal(t, "quit", w.OnNavigate.Kind)
}

func TestParseWidgetGeneratesEndpoint(t *testing.T) {
	t.Parallel()

	w, err := ParseWidget([]byte("object: o\n"))
	require.NoError(t, err)
	_, err = uuid.Parse(w.Endpoint)
	require.NoError(t, err)
	require.True(t, w.EndpointGenerated)
	require.Nil(t, w.Output)
	require.Nil(t, w.CloseParam)
}

func TestParseWidgetErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "empty document"},
		{name: "unknown key", doc: "object: o\ncolour: red\n", want: "colour"},
		{name: "empty trigger", doc: "bindings:\n  - trigger: ''\n", want: "empty trigger"},
		{name: "binding kind", doc: "bindings:\n  - trigger: a\n    action: {title: x}\n", want: "kind is required"},
		{name: "timeout kind", doc: "onTimeout: {title: x}\n", want: "onTimeout"},
		{name: "navigate kind", doc: "onNavigate: {title: x}\n", want: "onNavigate"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseWidget([]byte(tc.doc))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadWidgetMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadWidget(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, ErrNoWidget)
}

func TestLoadWidgetFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "widget.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: e\nobject: o\n"), 0600))
	w, err := LoadWidget(path)
	require.NoError(t, err)
	require.Equal(t, "e", w.Endpoint)
}
