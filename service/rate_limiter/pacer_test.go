package rate_limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntervalPacer_WaitsFullInterval 测试固定间隔等待
func TestIntervalPacer_WaitsFullInterval(t *testing.T) {
	pacer := NewIntervalPacer(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background()))
	require.NoError(t, pacer.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// TestIntervalPacer_SerializesWorkers 测试多个worker共享时被串行化
func TestIntervalPacer_SerializesWorkers(t *testing.T) {
	pacer := NewIntervalPacer(15 * time.Millisecond)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pacer.Wait(context.Background()))
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

// TestIntervalPacer_Cancelled 测试上下文取消
func TestIntervalPacer_Cancelled(t *testing.T) {
	pacer := NewIntervalPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pacer.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTokenPacer_Burst 测试令牌桶突发与补充
func TestTokenPacer_Burst(t *testing.T) {
	pacer := NewTokenPacer(30*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, pacer.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "首个令牌应立即可用")

	require.NoError(t, pacer.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

// TestNewPacer_Modes 测试节流器工厂
func TestNewPacer_Modes(t *testing.T) {
	p, err := NewPacer(PacerOptions{Mode: PacerModeInterval, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.IsType(t, &IntervalPacer{}, p)

	p, err = NewPacer(PacerOptions{Mode: PacerModeToken, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.IsType(t, &TokenPacer{}, p)

	_, err = NewPacer(PacerOptions{Mode: PacerModeRedis})
	assert.Error(t, err)

	_, err = NewPacer(PacerOptions{Mode: "bogus"})
	assert.Error(t, err)
}
