package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iva-margem/iva-margem/internal/session"
)

func TestSessionPurgeHandler(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fresh := session.New(session.Metadata{Source: "test"})
	require.NoError(t, store.Put(ctx, fresh))

	task, err := NewSessionPurgeTask(SessionPurgePayload{MaxAge: time.Hour})
	require.NoError(t, err)

	handler := SessionPurgeHandler(store, logger)
	require.NoError(t, handler(ctx, task))

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err, "fresh sessions survive a purge run")
}

func TestSessionPurgeHandlerBadPayload(t *testing.T) {
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := SessionPurgeHandler(store, logger)
	err := handler(context.Background(), asynq.NewTask(TaskSessionPurge, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
