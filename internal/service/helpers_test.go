package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/push"
	"github.com/chemtech/maintenance-push/internal/storage/sqlstore"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlstore.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, sqlstore.Migrate(db))
	s := sqlstore.New(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// pushToken builds a distinct value that classifies as a push token.
func pushToken(seed string) string {
	return seed + "_" + strings.Repeat("Ab9-", 40)
}

type outcome struct {
	delay time.Duration
	err   error
	hang  bool
}

type fakeProvider struct {
	mu        sync.Mutex
	calls     []string
	outcomes  map[string]outcome
	completed atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{outcomes: make(map[string]outcome)}
}

func (f *fakeProvider) on(token string, o outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[token] = o
}

func (f *fakeProvider) Send(ctx context.Context, msg push.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg.Token)
	o := f.outcomes[msg.Token]
	f.mu.Unlock()
	defer f.completed.Add(1)

	if o.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if o.delay > 0 {
		select {
		case <-time.After(o.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if o.err != nil {
		return "", o.err
	}
	return "projects/test/messages/" + msg.Token[:4], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func nopLogger() *logger.Logger {
	return logger.NewNop()
}
