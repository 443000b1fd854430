package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tinytelemetry/cascade/internal/backoff"
	"github.com/tinytelemetry/cascade/internal/record"
)

// Webhook posts each record as a JSON document to an HTTP endpoint. The
// transport call runs under the shared backoff executor: 5xx and 429
// responses retry, everything else is terminal. Webhooks are write-only.
type Webhook struct {
	name   string
	url    string
	client *http.Client
	auth   Authenticator
	retry  backoff.Config
}

// WebhookConfig holds tunable webhook parameters.
type WebhookConfig struct {
	Auth    Authenticator
	Retry   backoff.Config
	Timeout time.Duration
}

// NewWebhook builds a webhook store for url.
func NewWebhook(name, url string, conf ...WebhookConfig) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("store: webhook %q needs a url", name)
	}
	var auth Authenticator = noAuth{}
	retry := backoff.Config{MaxAttempts: 5, MaxDelay: 30 * time.Second}
	timeout := 10 * time.Second
	if len(conf) > 0 {
		if conf[0].Auth != nil {
			auth = conf[0].Auth
		}
		if conf[0].Retry.MaxAttempts > 0 {
			retry = conf[0].Retry
		}
		if conf[0].Timeout > 0 {
			timeout = conf[0].Timeout
		}
	}
	return &Webhook{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
		auth:   auth,
		retry:  retry,
	}, nil
}

// NewWebhookFromOptions builds a webhook store from declarative options:
// "url" (required), "auth" + auth-specific fields, "max_attempts",
// "max_delay_seconds", "timeout_seconds".
func NewWebhookFromOptions(name string, opts Options) (Store, error) {
	url, ok := opts.String("url")
	if !ok {
		return nil, fmt.Errorf("store: webhook %q needs a url", name)
	}

	authTag, _ := opts.String("auth")
	auth, err := NewAuthenticator(authTag, opts)
	if err != nil {
		return nil, err
	}

	conf := WebhookConfig{Auth: auth}
	if n, ok := opts.Int("max_attempts"); ok {
		conf.Retry.MaxAttempts = n
	}
	if s, ok := opts.Int("max_delay_seconds"); ok {
		conf.Retry.MaxDelay = time.Duration(s) * time.Second
	}
	if s, ok := opts.Int("timeout_seconds"); ok {
		conf.Timeout = time.Duration(s) * time.Second
	}
	return NewWebhook(name, url, conf)
}

func (w *Webhook) Name() string { return w.name }

type webhookPayload struct {
	Timestamp time.Time         `json:"timestamp"`
	Hostname  string            `json:"hostname,omitempty"`
	Level     string            `json:"level"`
	Logger    string            `json:"logger"`
	Topic     string            `json:"topic,omitempty"`
	Value     any               `json:"value,omitempty"`
	Message   string            `json:"message"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Write posts the record, retrying transient transport failures.
func (w *Webhook) Write(r *record.Record) error {
	if r.Suppressed() {
		return nil
	}
	body, err := json.Marshal(webhookPayload{
		Timestamp: r.Timestamp,
		Hostname:  r.Hostname,
		Level:     r.Level.String(),
		Logger:    r.Logger,
		Topic:     r.Topic,
		Value:     r.Value,
		Message:   r.Message,
		Tags:      r.Tags,
	})
	if err != nil {
		return fmt.Errorf("store: webhook %q marshal: %w", w.name, err)
	}

	task := func() (any, error) {
		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Skip, fmt.Errorf("store: webhook %q request: %w", w.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		w.auth.Apply(req)

		resp, err := w.client.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	}
	accept := func(result any, err error) bool {
		if err != nil {
			return false // connection-level failures retry
		}
		status, _ := result.(int)
		if status >= 500 || status == http.StatusTooManyRequests {
			return false
		}
		return true // success or a permanent failure; either way stop
	}

	result, err := backoff.Do(context.Background(), "webhook "+w.name, w.retry, task, accept)
	if err != nil {
		return fmt.Errorf("store: webhook %q: %w", w.name, err)
	}
	if status, ok := result.(int); ok && (status < 200 || status >= 300) {
		return fmt.Errorf("store: webhook %q: unexpected status %d", w.name, status)
	}
	return nil
}

// Read always fails: a webhook is a pure sink.
func (w *Webhook) Read(record.Filter) ([]*record.Record, error) {
	return nil, fmt.Errorf("webhook %q: %w", w.name, ErrReadUnsupported)
}

func (w *Webhook) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
