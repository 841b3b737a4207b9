// Package notify delivers push notifications for host actions.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPushoverEndpoint is the Pushover message API.
	DefaultPushoverEndpoint = "https://api.pushover.net/1/messages.json"

	defaultTimeout = 10 * time.Second
)

// Message is one notification. Key groups messages for cooldown purposes.
type Message struct {
	Title string
	Body  string
	Key   string
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// PushoverConfig holds Pushover credentials and delivery policy.
type PushoverConfig struct {
	Token   string
	UserKey string
	// Priority is sent when non-zero.
	Priority int
	// Cooldown suppresses repeat messages with the same key.
	Cooldown time.Duration
	// Endpoint overrides DefaultPushoverEndpoint.
	Endpoint string
	// Client overrides the default HTTP client.
	Client *http.Client
}

// PushoverNotifier sends notifications through Pushover.
type PushoverNotifier struct {
	cfg    PushoverConfig
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

var _ Notifier = (*PushoverNotifier)(nil)

// NewPushoverNotifier validates cfg and returns a notifier.
func NewPushoverNotifier(cfg PushoverConfig) (*PushoverNotifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.UserKey) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("pushover cooldown must be non-negative")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultPushoverEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &PushoverNotifier{
		cfg:      cfg,
		client:   client,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}, nil
}

// Notify sends msg unless a message with the same key went out within the
// cooldown. Suppressed messages return nil.
func (n *PushoverNotifier) Notify(ctx context.Context, msg Message) error {
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return fmt.Errorf("pushover message is required")
	}
	key := strings.TrimSpace(msg.Key)
	if key == "" {
		key = body
	}

	now := n.now()
	if !n.reserve(key, now) {
		return nil
	}
	if err := n.send(ctx, msg.Title, body); err != nil {
		n.release(key, now)
		return err
	}
	return nil
}

// reserve claims the cooldown slot for key.
func (n *PushoverNotifier) reserve(key string, now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && n.cfg.Cooldown > 0 && now.Sub(last) < n.cfg.Cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

// release undoes a reservation after a failed send.
func (n *PushoverNotifier) release(key string, at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastSent[key].Equal(at) {
		delete(n.lastSent, key)
	}
}

func (n *PushoverNotifier) send(ctx context.Context, title, body string) error {
	form := url.Values{}
	form.Set("token", n.cfg.Token)
	form.Set("user", n.cfg.UserKey)
	form.Set("message", body)
	if title = strings.TrimSpace(title); title != "" {
		form.Set("title", title)
	}
	if n.cfg.Priority != 0 {
		form.Set("priority", strconv.Itoa(n.cfg.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pushover response %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}
