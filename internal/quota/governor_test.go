package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGovernor(limits Limits) (*Governor, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}
	return NewGovernor(map[string]Limits{"gemini": limits}, clk), clk
}

func TestGovernor_RefusesBeyondPerMinuteLimit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Limits{RPM: 15, RPD: 1500})

	// A burst of 30 attempts: the first 15 are admitted, the rest refused.
	for i := 0; i < 15; i++ {
		require.NoError(t, g.Reserve("gemini"), "call %d", i+1)
	}
	for i := 15; i < 30; i++ {
		err := g.Reserve("gemini")
		require.ErrorIs(t, err, ErrExceeded, "call %d", i+1)
	}
	require.Equal(t, HealthOverload, g.Check("gemini"))

	minute, day := g.Usage("gemini")
	require.Equal(t, 15, minute)
	require.Equal(t, 15, day, "refused attempts must not consume quota")
}

func TestGovernor_WindowSlides(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(Limits{RPM: 15, RPD: 1500})

	for i := 0; i < 15; i++ {
		require.NoError(t, g.Reserve("gemini"))
	}
	require.ErrorIs(t, g.Reserve("gemini"), ErrExceeded)

	clk.Advance(61 * time.Second)
	require.Equal(t, HealthHealthy, g.Check("gemini"))
	require.NoError(t, g.Reserve("gemini"))

	minute, day := g.Usage("gemini")
	require.Equal(t, 1, minute)
	require.Equal(t, 16, day)
}

func TestGovernor_HealthThresholds(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Limits{RPM: 10, RPD: 1000})

	require.Equal(t, HealthHealthy, g.Check("gemini"))
	for i := 0; i < 7; i++ {
		require.NoError(t, g.Reserve("gemini"))
	}
	require.Equal(t, HealthHealthy, g.Check("gemini"), "7/10 is below the warning threshold")

	require.NoError(t, g.Reserve("gemini"))
	require.Equal(t, HealthWarning, g.Check("gemini"), "8/10 hits the warning threshold")

	require.NoError(t, g.Reserve("gemini"))
	require.NoError(t, g.Reserve("gemini"))
	require.Equal(t, HealthOverload, g.Check("gemini"))
}

func TestGovernor_DailyLimit(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(Limits{RPM: 2, RPD: 5})

	for day := 0; day < 5; {
		if err := g.Reserve("gemini"); err != nil {
			clk.Advance(time.Minute)
			continue
		}
		day++
	}
	require.ErrorIs(t, g.Reserve("gemini"), ErrExceeded)
	require.Equal(t, HealthOverload, g.Check("gemini"))

	// The minute window clearing does not revive a spent daily budget.
	clk.Advance(2 * time.Minute)
	require.ErrorIs(t, g.Reserve("gemini"), ErrExceeded)
}

func TestGovernor_DayResetsAtUTCMidnight(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(Limits{RPM: 100, RPD: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Reserve("gemini"))
	}
	require.ErrorIs(t, g.Reserve("gemini"), ErrExceeded)

	clk.Advance(24 * time.Hour)
	require.NoError(t, g.Reserve("gemini"))
	_, day := g.Usage("gemini")
	require.Equal(t, 1, day)
}

func TestGovernor_UnknownProvider(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Limits{RPM: 10, RPD: 100})

	require.ErrorIs(t, g.Reserve("mistral"), ErrUnknownProvider)
	require.Equal(t, HealthOverload, g.Check("mistral"))
}

func TestGovernor_ZeroLimitsAreUnlimited(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Limits{})

	for i := 0; i < 500; i++ {
		require.NoError(t, g.Reserve("gemini"))
	}
	require.Equal(t, HealthHealthy, g.Check("gemini"))
}

func TestGovernor_ConcurrentReservesNeverOveradmit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Limits{RPM: 50, RPD: 1000})

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Reserve("gemini") == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	require.Equal(t, 50, count)
}
