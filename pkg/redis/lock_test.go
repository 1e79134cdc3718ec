package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockRedis scripts the two redis operations the lock performs: the
// SetNX acquire and the compare-and-delete release script.
type fakeLockRedis struct {
	setNXResult  bool
	setNXErr     error
	scriptResult int64
	scriptErr    error

	setNXKeys   []string
	scriptCalls int
}

func (f *fakeLockRedis) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *goredis.BoolCmd {
	f.setNXKeys = append(f.setNXKeys, key)
	return goredis.NewBoolResult(f.setNXResult, f.setNXErr)
}

func (f *fakeLockRedis) EvalSha(_ context.Context, _ string, _ []string, _ ...interface{}) *goredis.Cmd {
	f.scriptCalls++
	return goredis.NewCmdResult(f.scriptResult, f.scriptErr)
}

func (f *fakeLockRedis) Eval(_ context.Context, _ string, _ []string, _ ...interface{}) *goredis.Cmd {
	f.scriptCalls++
	return goredis.NewCmdResult(f.scriptResult, f.scriptErr)
}

func (f *fakeLockRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeLockRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *goredis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeLockRedis) ScriptExists(_ context.Context, _ ...string) *goredis.BoolSliceCmd {
	return goredis.NewBoolSliceResult([]bool{true}, nil)
}

func (f *fakeLockRedis) ScriptLoad(_ context.Context, _ string) *goredis.StringCmd {
	return goredis.NewStringResult("", nil)
}

func newTestLocker(rdb lockCmdable, sink func(ectologger.EctoLogMessage)) *Locker {
	if sink == nil {
		sink = func(_ ectologger.EctoLogMessage) {}
	}
	return &Locker{
		rdb:       rdb,
		logger:    ectologger.NewEctoLogger(sink),
		keyPrefix: "fern:sync:",
	}
}

func TestWithLock_RunsFnWhileHeld(t *testing.T) {
	rdb := &fakeLockRedis{setNXResult: true, scriptResult: 1}
	locker := newTestLocker(rdb, nil)

	ran := false
	err := locker.WithLock(context.Background(), "crm_sync", time.Minute, func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"fern:sync:crm_sync"}, rdb.setNXKeys)
	// The release script ran after fn.
	assert.Equal(t, 1, rdb.scriptCalls)
}

func TestWithLock_HeldElsewhereDoesNotRunFn(t *testing.T) {
	rdb := &fakeLockRedis{setNXResult: false}
	locker := newTestLocker(rdb, nil)

	ran := false
	err := locker.WithLock(context.Background(), "crm_sync", time.Minute, func() error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, ran)
	assert.Equal(t, 0, rdb.scriptCalls)
}

func TestWithLock_AcquireFailureIsNotContention(t *testing.T) {
	boom := errors.New("connection refused")
	rdb := &fakeLockRedis{setNXErr: boom}
	locker := newTestLocker(rdb, nil)

	err := locker.WithLock(context.Background(), "crm_sync", time.Minute, func() error {
		t.Fatal("fn must not run when acquire fails")
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestWithLock_LostLockReleaseIsLogged(t *testing.T) {
	// scriptResult 0 means the compare-and-delete found another holder's
	// value, i.e. the TTL expired and the lock moved on.
	rdb := &fakeLockRedis{setNXResult: true, scriptResult: 0}
	var messages []string
	locker := newTestLocker(rdb, func(msg ectologger.EctoLogMessage) {
		messages = append(messages, msg.Message)
	})

	err := locker.WithLock(context.Background(), "crm_sync", time.Minute, func() error {
		return nil
	})

	// fn's result is preserved; the lost lock shows up in the logs.
	require.NoError(t, err)
	assert.Contains(t, messages, "Failed to release lock")
}

func TestRelease_NotHeld(t *testing.T) {
	rdb := &fakeLockRedis{setNXResult: true, scriptResult: 0}
	locker := newTestLocker(rdb, nil)

	lock, err := locker.Acquire(context.Background(), "crm_sync", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, lock.Release(context.Background()), ErrLockNotHeld)
}
