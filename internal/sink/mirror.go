package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// RedisMirror best-effort write-throughs Observation Records onto a capped
// Redis list, grounded on the pack's LPUSH+LTRIM capped-list maintenance
// for recent-activity feeds.
type RedisMirror struct {
	client  valkey.Client
	key     string
	cap     int64
	timeout time.Duration
}

// NewRedisMirror wraps client. key is the list key (monitoring.redis_mirror.key);
// capacity bounds the list length via LTRIM after every push.
func NewRedisMirror(client valkey.Client, key string, capacity int64) *RedisMirror {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RedisMirror{client: client, key: key, cap: capacity, timeout: 2 * time.Second}
}

// Push appends rec to the mirrored list and trims it to capacity. A
// marshal or transport failure is returned to the Sink's onMirror hook;
// it is never treated as an admission failure.
func (m *RedisMirror) Push(rec Record) error {
	payload, err := json.Marshal(recordJSON{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Method:      rec.Method,
		Path:        rec.Path,
		ClientIP:    rec.ClientIP,
		UserAgent:   rec.UserAgent,
		UserID:      rec.UserID,
		StatusCode:  rec.StatusCode,
		ThreatScore: rec.ThreatScore,
		Blocked:     rec.Blocked,
		Reason:      rec.Reason,
	})
	if err != nil {
		return fmt.Errorf("sink: marshal observation: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.client.Do(ctx, m.client.B().Lpush().Key(m.key).Element(string(payload)).Build()).Error(); err != nil {
		return fmt.Errorf("sink: lpush: %w", err)
	}
	if err := m.client.Do(ctx, m.client.B().Ltrim().Key(m.key).Start(0).Stop(m.cap-1).Build()).Error(); err != nil {
		return fmt.Errorf("sink: ltrim: %w", err)
	}
	return nil
}

// recordJSON is the wire shape mirrored to Redis; it intentionally omits
// Headers to avoid mirroring potentially sensitive header values offsite.
type recordJSON struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Method      string  `json:"method"`
	Path        string  `json:"path"`
	ClientIP    string  `json:"client_ip"`
	UserAgent   string  `json:"user_agent"`
	UserID      string  `json:"user_id,omitempty"`
	StatusCode  int     `json:"status_code"`
	ThreatScore float64 `json:"threat_score"`
	Blocked     bool    `json:"blocked"`
	Reason      string  `json:"reason,omitempty"`
}
