package distributed_lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLock struct {
	mu        sync.Mutex
	held      map[string]bool
	refreshes int
	unlocks   int
	tryErr    error
}

func newMemoryLock() *memoryLock {
	return &memoryLock{held: map[string]bool{}}
}

func (m *memoryLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tryErr != nil {
		return false, m.tryErr
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memoryLock) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.unlocks++
	return nil
}

func (m *memoryLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return nil
}

// TestExecuteWithLock 拿到锁后执行并释放
func TestExecuteWithLock(t *testing.T) {
	lock := newMemoryLock()
	executor := NewLockExecutor(lock)

	called := false
	err := executor.ExecuteWithLockAndRefresh(context.Background(), "run", time.Minute, 5*time.Millisecond, func() error {
		called = true
		time.Sleep(30 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1, lock.unlocks)
	assert.Positive(t, lock.refreshes)
	assert.Empty(t, lock.held)
}

// TestExecuteWithLock_Held 锁被占用时不执行
func TestExecuteWithLock_Held(t *testing.T) {
	lock := newMemoryLock()
	lock.held["run"] = true
	executor := NewLockExecutor(lock)

	err := executor.ExecuteWithLockAndRefresh(context.Background(), "run", time.Minute, time.Second, func() error {
		t.Fatal("不应执行")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, 0, lock.unlocks)
}

// TestExecuteWithLock_Errors 加锁失败与函数失败
func TestExecuteWithLock_Errors(t *testing.T) {
	lock := newMemoryLock()
	lock.tryErr = errors.New("连接断开")
	err := NewLockExecutor(lock).ExecuteWithLockAndRefresh(context.Background(), "run", time.Minute, time.Second, func() error { return nil })
	assert.EqualError(t, err, "连接断开")

	lock = newMemoryLock()
	boom := errors.New("运行失败")
	err = NewLockExecutor(lock).ExecuteWithLockAndRefresh(context.Background(), "run", time.Minute, time.Second, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, lock.unlocks)
}
