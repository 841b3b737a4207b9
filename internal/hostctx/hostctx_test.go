package hostctx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		id      string
		want    string
		wantErr bool
	}{
		{name: "http", base: "http://localhost:8080", id: "w1", want: "ws://localhost:8080/w1"},
		{name: "httpsWithPath", base: "https://app.example.com/live/", id: "w1", want: "wss://app.example.com/live/w1"},
		{name: "alreadyWS", base: "ws://h", id: "/w2/", want: "ws://h/w2"},
		{name: "badScheme", base: "ftp://h", id: "w1", wantErr: true},
		{name: "noHost", base: "http://", id: "w1", wantErr: true},
		{name: "emptyID", base: "http://h", id: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := EndpointURL(tt.base, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenIssuer("s3cret", "w1", time.Minute)
	require.NoError(t, err)

	tok, err := issuer.Issue()
	require.NoError(t, err)

	claims, err := issuer.Verify(tok, "w1")
	require.NoError(t, err)
	require.Equal(t, "w1", claims.Endpoint)

	_, err = issuer.Verify(tok, "other")
	require.Error(t, err)

	other, err := NewTokenIssuer("different", "w1", time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(tok, "w1")
	require.Error(t, err)
}

func TestTokenIssuerCachesUntilNearExpiry(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenIssuer("s3cret", "", 2*time.Minute)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	issuer.now = func() time.Time { return now }

	first, err := issuer.Token()
	require.NoError(t, err)
	second, err := issuer.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)

	now = now.Add(2*time.Minute - 10*time.Second)
	third, err := issuer.Token()
	require.NoError(t, err)
	require.NotEqual(t, first, third)

	now = now.Add(time.Hour)
	_, err = issuer.Verify(third, "")
	require.Error(t, err)
}

func TestNewTokenIssuerRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer("  ", "", 0)
	require.Error(t, err)
}

type failingSource struct{}

func (failingSource) Token() (string, error) { return "", errors.New("boom") }

func TestEnvReportsTokenErrors(t *testing.T) {
	t.Parallel()

	var got error
	env := &Env{URL: "http://h", Tokens: failingSource{}, OnError: func(err error) { got = err }}
	require.Equal(t, "", env.CSRFToken())
	require.EqualError(t, got, "boom")
	require.Equal(t, "http://h", env.BaseURL())

	require.Equal(t, "t", Static{Token: "t"}.CSRFToken())
}
