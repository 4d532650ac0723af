package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndListDispatchLogs(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "nested", "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	first := &model.DispatchLog{UserID: 1, UserType: model.UserTypeClient, Status: model.DispatchStatusSuccess}
	second := &model.DispatchLog{UserID: 2, UserType: model.UserTypeAdmin, Status: model.DispatchStatusFailed, ErrorCode: "messaging/internal-error"}
	require.NoError(t, s.AppendDispatchLog(ctx, first))
	require.NoError(t, s.AppendDispatchLog(ctx, second))

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())

	logs, err := s.ListDispatchLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "messaging/internal-error", logs[1].ErrorCode)
}

func TestCanceledContext(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.AppendDispatchLog(ctx, &model.DispatchLog{}), context.Canceled)
	_, err = s.ListDispatchLogs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
