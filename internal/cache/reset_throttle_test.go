package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetThrottle_AllowsOncePerWindow(t *testing.T) {
	throttle := NewResetThrottle(time.Minute)

	assert.True(t, throttle.Allow("ana@dac.unicamp.br"))
	assert.False(t, throttle.Allow("ana@dac.unicamp.br"))
	assert.False(t, throttle.Allow(" ANA@dac.unicamp.br "), "keys are normalised")
	assert.True(t, throttle.Allow("bia@dac.unicamp.br"))
	assert.Equal(t, 2, throttle.Size())
}

func TestResetThrottle_WindowExpires(t *testing.T) {
	throttle := NewResetThrottle(20 * time.Millisecond)

	assert.True(t, throttle.Allow("ana@patronos.org"))
	assert.False(t, throttle.Allow("ana@patronos.org"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, throttle.Allow("ana@patronos.org"))
}

func TestResetThrottle_Forget(t *testing.T) {
	throttle := NewResetThrottle(time.Minute)

	assert.True(t, throttle.Allow("ana@patronos.org"))
	throttle.Forget("Ana@Patronos.org")
	assert.True(t, throttle.Allow("ana@patronos.org"))
}

func TestResetThrottle_ZeroWindowDisables(t *testing.T) {
	throttle := NewResetThrottle(0)

	for i := 0; i < 3; i++ {
		assert.True(t, throttle.Allow("ana@patronos.org"))
	}
}

func TestResetThrottle_ConcurrentCallersOneWins(t *testing.T) {
	throttle := NewResetThrottle(time.Minute)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if throttle.Allow("ana@patronos.org") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())
}
