package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
)

// ErrExhausted — все попытки доставки исчерпаны; для сессии это фатально.
var ErrExhausted = errors.New("retry attempts exhausted")

// Scheduler выполняет доставку батча до Policy.Attempts раз, засыпая между
// неудачными попытками. Не потокобезопасен: один экземпляр на сессию.
type Scheduler struct {
	policy Policy
	log    ports.Logger
	// jitterRand — источник случайности, чтобы рассинхронизировать повторные
	// попытки между воркерами пула.
	jitterRand *rand.Rand
	// sleep подменяется в тестах; по умолчанию — ожидание с учётом контекста.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewScheduler — конструктор. Политика должна быть заранее провалидирована.
func NewScheduler(p Policy, log ports.Logger) *Scheduler {
	s := &Scheduler{
		policy:     p,
		log:        log,
		jitterRand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.sleep = s.sleepCtx
	return s
}

// Do — до Attempts вызовов attempt:
// Accepted → nil сразу, без дополнительных пауз;
// Rejected на последней попытке → ErrExhausted с причиной;
// иначе пауза min(sleep, MaxSleep) ± Jitter и следующая попытка.
// Отмена контекста во время паузы возвращает ctx.Err().
func (s *Scheduler) Do(ctx context.Context, attempt func(ctx context.Context) ports.Delivery) error {
	sleep := s.policy.Sleep

	for n := 1; ; n++ {
		res := attempt(ctx)
		if res.Accepted {
			return nil
		}

		if n >= s.policy.Attempts {
			return fmt.Errorf("%w: %d attempts, last status=%d reason=%q",
				ErrExhausted, n, res.Status, res.Reason)
		}

		pause := s.withJitter(minDuration(sleep, s.policy.MaxSleep))
		s.log.Warnf(ctx, "delivery rejected status=%d attempt=%d/%d: %s (retry in %s)",
			res.Status, n, s.policy.Attempts, res.Reason, pause)

		if !s.sleep(ctx, pause) {
			return ctx.Err()
		}

		sleep = time.Duration(float64(sleep) * s.policy.Scale)
	}
}

// sleepCtx ждёт паузу или останавливается по контексту.
func (s *Scheduler) sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// withJitter — d + равномерный разброс [-Jitter, +Jitter], не меньше нуля.
func (s *Scheduler) withJitter(d time.Duration) time.Duration {
	j := s.policy.Jitter
	if j > 0 {
		d += time.Duration(s.jitterRand.Int63n(int64(2*j)+1)) - j
	}
	if d < 0 {
		return 0
	}
	return d
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
