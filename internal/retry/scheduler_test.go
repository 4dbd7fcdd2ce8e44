package retry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// newTestScheduler — планировщик с фиксированным seed и записью пауз
// вместо реального сна.
func newTestScheduler(p Policy, sleeps *[]time.Duration) *Scheduler {
	s := &Scheduler{
		policy:     p,
		log:        nopLogger{},
		jitterRand: rand.New(rand.NewSource(1)),
	}
	s.sleep = func(_ context.Context, d time.Duration) bool {
		*sleeps = append(*sleeps, d)
		return true
	}
	return s
}

func alwaysRejected(calls *int) func(context.Context) ports.Delivery {
	return func(context.Context) ports.Delivery {
		*calls++
		return ports.Rejected(500, "server error")
	}
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	valid := Policy{Attempts: 5, Sleep: time.Second, MaxSleep: 5 * time.Second, Scale: 1.5, Jitter: time.Second}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mangle func(*Policy)
	}{
		{"zero attempts", func(p *Policy) { p.Attempts = 0 }},
		{"negative sleeptime", func(p *Policy) { p.Sleep = -time.Second }},
		{"max below sleeptime", func(p *Policy) { p.MaxSleep = p.Sleep / 2 }},
		{"scale below one", func(p *Policy) { p.Scale = 0.9 }},
		{"negative jitter", func(p *Policy) { p.Jitter = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mangle(&p)
			require.Error(t, p.Validate())
		})
	}
}

// k-я пауза без джиттера равна min(b*s^(k-1), m): неубывающая, ограничена m.
func TestPolicy_Backoff(t *testing.T) {
	t.Parallel()

	p := Policy{Attempts: 10, Sleep: 100 * time.Millisecond, MaxSleep: 450 * time.Millisecond, Scale: 2}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		450 * time.Millisecond,
		450 * time.Millisecond,
	}
	prev := time.Duration(0)
	for k := 1; k <= len(want); k++ {
		got := p.Backoff(k)
		require.Equal(t, want[k-1], got, "backoff k=%d", k)
		require.GreaterOrEqual(t, got, prev)
		require.LessOrEqual(t, got, p.MaxSleep)
		prev = got
	}
}

// Всегда-Rejected: ровно Attempts вызовов, Attempts-1 пауз, ErrExhausted.
func TestDo_Exhausted_ExactAttempts(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	s := newTestScheduler(Policy{Attempts: 4, Sleep: time.Millisecond, MaxSleep: 8 * time.Millisecond, Scale: 2}, &sleeps)

	calls := 0
	err := s.Do(context.Background(), alwaysRejected(&calls))

	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 4, calls)
	require.Len(t, sleeps, 3)
}

// Успех на j-й попытке: ровно j вызовов и j-1 пауз, после успеха сна нет.
func TestDo_AcceptedOnThird(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	s := newTestScheduler(Policy{Attempts: 5, Sleep: time.Millisecond, MaxSleep: time.Second, Scale: 2}, &sleeps)

	calls := 0
	err := s.Do(context.Background(), func(context.Context) ports.Delivery {
		calls++
		if calls == 3 {
			return ports.Accepted(200)
		}
		return ports.Rejected(503, "unavailable")
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, sleeps, 2)
}

func TestDo_AcceptedFirstTry_NoSleep(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	s := newTestScheduler(Policy{Attempts: 3, Sleep: time.Hour, MaxSleep: time.Hour, Scale: 2}, &sleeps)

	calls := 0
	err := s.Do(context.Background(), func(context.Context) ports.Delivery {
		calls++
		return ports.Accepted(200)
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, sleeps)
}

// Без джиттера последовательность пауз совпадает с Policy.Backoff.
func TestDo_SleepSequence(t *testing.T) {
	t.Parallel()

	p := Policy{Attempts: 5, Sleep: 10 * time.Millisecond, MaxSleep: 35 * time.Millisecond, Scale: 2}
	var sleeps []time.Duration
	s := newTestScheduler(p, &sleeps)

	calls := 0
	err := s.Do(context.Background(), alwaysRejected(&calls))
	require.ErrorIs(t, err, ErrExhausted)

	require.Len(t, sleeps, 4)
	for k, got := range sleeps {
		require.Equal(t, p.Backoff(k+1), got, "sleep before attempt %d", k+2)
	}
}

// С джиттером каждая пауза лежит в [base-j, base+j] и не уходит ниже нуля.
func TestDo_JitterBounds(t *testing.T) {
	t.Parallel()

	p := Policy{Attempts: 6, Sleep: 50 * time.Millisecond, MaxSleep: 50 * time.Millisecond, Scale: 1, Jitter: 10 * time.Millisecond}
	var sleeps []time.Duration
	s := newTestScheduler(p, &sleeps)

	calls := 0
	_ = s.Do(context.Background(), alwaysRejected(&calls))

	require.Len(t, sleeps, 5)
	for _, d := range sleeps {
		require.GreaterOrEqual(t, d, 40*time.Millisecond)
		require.LessOrEqual(t, d, 60*time.Millisecond)
	}

	// База меньше джиттера — пауза обрезается нулём снизу.
	p = Policy{Attempts: 20, Sleep: 0, MaxSleep: 0, Scale: 1, Jitter: 5 * time.Millisecond}
	sleeps = nil
	s = newTestScheduler(p, &sleeps)
	calls = 0
	_ = s.Do(context.Background(), alwaysRejected(&calls))
	for _, d := range sleeps {
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 5*time.Millisecond)
	}
}

// Отмена контекста во время паузы прекращает повторы с ctx.Err().
func TestDo_CancelDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(Policy{Attempts: 3, Sleep: time.Minute, MaxSleep: time.Minute, Scale: 1}, nopLogger{})

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Do(ctx, alwaysRejected(&calls))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
