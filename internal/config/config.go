// Package config loads wslink settings from the environment and widget
// definitions from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Transport names accepted by WSLINK_TRANSPORT.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

type Config struct {
	// ServerURL is the base URL endpoint identifiers are appended to.
	ServerURL string
	// Home is the directory where wslink keeps local state.
	Home string
	// WidgetFile is the default widget definition path inside Home.
	WidgetFile string

	// Debug enables verbose logging.
	Debug bool
	// LogLevel is a zerolog level name. Debug overrides it.
	LogLevel string

	// Secret signs anti-forgery tokens. Client and dev server must share it.
	Secret string
	// Transport selects the connection transport (websocket|socketio).
	Transport string
	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string

	// PushoverToken and PushoverUser enable the notify action kind.
	PushoverToken string
	PushoverUser  string
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	home := getenvFirst("WSLINK_HOME", "WSLINK_HOME_DIR")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		home = filepath.Join(userHome, ".wslink")
	}
	if err := os.MkdirAll(home, 0700); err != nil {
		return nil, fmt.Errorf("failed to create wslink home: %w", err)
	}

	serverURL := os.Getenv("WSLINK_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://127.0.0.1:8780/ws"
	}

	transport := strings.ToLower(strings.TrimSpace(os.Getenv("WSLINK_TRANSPORT")))
	if transport == "" {
		transport = TransportWebSocket
	}
	if err := ValidateTransport(transport); err != nil {
		return nil, err
	}

	return &Config{
		ServerURL:     serverURL,
		Home:          home,
		WidgetFile:    filepath.Join(home, "widget.yaml"),
		Debug:         truthy(getenvFirst("WSLINK_DEBUG", "DEBUG")),
		LogLevel:      os.Getenv("WSLINK_LOG_LEVEL"),
		Secret:        os.Getenv("WSLINK_SECRET"),
		Transport:     transport,
		MetricsAddr:   os.Getenv("WSLINK_METRICS_ADDR"),
		PushoverToken: os.Getenv("WSLINK_PUSHOVER_TOKEN"),
		PushoverUser:  os.Getenv("WSLINK_PUSHOVER_USER"),
	}, nil
}

// ValidateTransport rejects unknown transport names.
func ValidateTransport(name string) error {
	switch name {
	case TransportWebSocket, TransportSocketIO:
		return nil
	default:
		return fmt.Errorf("invalid WSLINK_TRANSPORT %q (expected %s or %s)", name, TransportWebSocket, TransportSocketIO)
	}
}

func truthy(v string) bool {
	return v == "true" || v == "1"
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
