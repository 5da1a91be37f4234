// Package jobs runs the background maintenance work: purging idle sessions
// so abandoned document sets do not pile up in Redis.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/iva-margem/iva-margem/internal/session"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge drops sessions idle beyond their maximum age.
	TaskSessionPurge = "session:purge"
)

// SessionPurgePayload parameterises a purge run.
type SessionPurgePayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewSessionPurgeTask constructs an Asynq task.
func NewSessionPurgeTask(payload SessionPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}

// SessionPurgeHandler processes TaskSessionPurge tasks against the store.
func SessionPurgeHandler(store session.Store, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SessionPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.MaxAge <= 0 {
			payload.MaxAge = 24 * time.Hour
		}
		removed, err := store.PurgeExpired(ctx, payload.MaxAge)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("purged idle sessions", slog.Int("removed", removed))
		}
		return nil
	}
}
