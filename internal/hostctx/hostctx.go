// Package hostctx supplies the ambient session context: the base endpoint URL
// and the anti-forgery token sent in the session handshake.
package hostctx

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Context is read at send time. Both values are opaque to the session core.
type Context interface {
	BaseURL() string
	CSRFToken() string
}

// Static is a fixed Context.
type Static struct {
	URL   string
	Token string
}

func (s Static) BaseURL() string   { return s.URL }
func (s Static) CSRFToken() string { return s.Token }

// TokenSource produces anti-forgery tokens.
type TokenSource interface {
	Token() (string, error)
}

// Env combines a base URL with a TokenSource.
type Env struct {
	URL    string
	Tokens TokenSource
	// OnError is called when the token source fails. The handshake then
	// carries an empty token and the endpoint decides.
	OnError func(err error)
}

func (e *Env) BaseURL() string { return e.URL }

func (e *Env) CSRFToken() string {
	if e.Tokens == nil {
		return ""
	}
	tok, err := e.Tokens.Token()
	if err != nil {
		if e.OnError != nil {
			e.OnError(err)
		}
		return ""
	}
	return tok
}

// EndpointURL builds the session URL for an endpoint identifier: the base URL
// with http(s) switched to ws(s) and the identifier appended to the path.
func EndpointURL(base, endpointID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", base)
	}
	id := strings.Trim(endpointID, "/")
	if id == "" {
		return "", fmt.Errorf("empty endpoint identifier")
	}
	u.Path = path.Join("/", u.Path, id)
	u.RawPath = ""
	return u.String(), nil
}
