// Package retry — ограниченные повторы доставки с экспоненциальным
// backoff и джиттером.
package retry

import (
	"fmt"
	"time"
)

// Policy — неизменяемые параметры повторов. Семантика полей повторяет
// сетевую секцию конфига: attempts / sleeptime / max_sleeptime /
// sleepscale / jitter.
type Policy struct {
	Attempts int           // всего попыток, включая первую (>= 1)
	Sleep    time.Duration // стартовая пауза между попытками (>= 0)
	MaxSleep time.Duration // потолок паузы без учёта джиттера (>= Sleep)
	Scale    float64       // множитель паузы на каждой итерации (>= 1)
	Jitter   time.Duration // равномерный разброс [-Jitter, +Jitter] (>= 0)
}

// Validate проверяет инварианты политики.
func (p Policy) Validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("retry: attempts must be >= 1, got %d", p.Attempts)
	}
	if p.Sleep < 0 {
		return fmt.Errorf("retry: sleeptime must be >= 0, got %s", p.Sleep)
	}
	if p.MaxSleep < p.Sleep {
		return fmt.Errorf("retry: max_sleeptime %s must be >= sleeptime %s", p.MaxSleep, p.Sleep)
	}
	if p.Scale < 1 {
		return fmt.Errorf("retry: sleepscale must be >= 1, got %g", p.Scale)
	}
	if p.Jitter < 0 {
		return fmt.Errorf("retry: jitter must be >= 0, got %s", p.Jitter)
	}
	return nil
}

// Backoff — пауза перед (k+1)-й попыткой без джиттера:
// min(Sleep*Scale^(k-1), MaxSleep) для k >= 1. Неубывающая, ограничена MaxSleep.
func (p Policy) Backoff(k int) time.Duration {
	d := p.Sleep
	for i := 1; i < k; i++ {
		d = time.Duration(float64(d) * p.Scale)
		if d >= p.MaxSleep {
			return p.MaxSleep
		}
	}
	if d > p.MaxSleep {
		return p.MaxSleep
	}
	return d
}
