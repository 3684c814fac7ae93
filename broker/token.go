package broker

import (
	"sync"
	"time"

	"github.com/indexoptions/kernel/logger"
)

var log = logger.For("broker")

// AlertSink receives the token manager's warning/error alerts, without
// broker needing to import the event bus package directly.
type AlertSink interface {
	Alert(level, message string)
}

// TokenManager owns the broker access token's lifecycle: it refreshes
// proactively before expiry and alerts at T-1h (warning) and on
// refresh failure (error).
type TokenManager struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	refresh func() (token string, expiresAt time.Time, err error)
	sink    AlertSink

	stop chan struct{}
}

// NewTokenManager constructs a manager around a refresh function.
func NewTokenManager(refresh func() (string, time.Time, error), sink AlertSink) *TokenManager {
	return &TokenManager{refresh: refresh, sink: sink, stop: make(chan struct{})}
}

// Token returns the current access token.
func (t *TokenManager) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Start performs an initial fetch and launches the background proactive
// refresh loop. Call Close to stop it.
func (t *TokenManager) Start() error {
	if err := t.doRefresh(); err != nil {
		return err
	}
	go t.loop()
	return nil
}

func (t *TokenManager) loop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.RLock()
			remaining := time.Until(t.expiresAt)
			t.mu.RUnlock()

			if remaining <= time.Hour && remaining > 55*time.Minute {
				if t.sink != nil {
					t.sink.Alert("warning", "broker access token expires within 1h")
				}
			}
			if remaining <= 5*time.Minute {
				if err := t.doRefresh(); err != nil {
					log.Err(err, "token refresh failed")
					if t.sink != nil {
						t.sink.Alert("error", "broker access token refresh failed: "+err.Error())
					}
				}
			}
		}
	}
}

func (t *TokenManager) doRefresh() error {
	tok, exp, err := t.refresh()
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.token, t.expiresAt = tok, exp
	t.mu.Unlock()
	return nil
}

// Close stops the background refresh loop.
func (t *TokenManager) Close() {
	close(t.stop)
}
