// Package bridge — цикл одного воркера: consume → accumulate →
// deliver-with-retry → commit.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gunvolt24/kafka2hec/internal/batch"
	"github.com/Gunvolt24/kafka2hec/internal/ports"
	"github.com/Gunvolt24/kafka2hec/internal/retry"
	"github.com/Gunvolt24/kafka2hec/pkg/metrics"
)

// State — состояние сессии.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session — один воркер моста: владеет текущей сессией чтения и
// единственным накапливаемым батчем. Вся работа строго последовательна:
// пока идёт доставка (и паузы между повторами), новые записи не читаются,
// поэтому оффсеты никогда не обгоняют подтверждённую доставку.
type Session struct {
	opener ports.SourceOpener
	sender ports.BatchSender
	sched  *retry.Scheduler
	acc    *batch.Accumulator
	log    ports.Logger
	topic  string
	tracer trace.Tracer

	state  atomic.Int32
	source ports.RecordSource
}

// NewSession — конструктор.
func NewSession(
	opener ports.SourceOpener,
	sender ports.BatchSender,
	sched *retry.Scheduler,
	batchSize int,
	topic string,
	log ports.Logger,
) *Session {
	return &Session{
		opener: opener,
		sender: sender,
		sched:  sched,
		acc:    batch.NewAccumulator(batchSize),
		log:    log,
		topic:  topic,
		tracer: otel.Tracer("kafka2hec/bridge"),
	}
}

// State — текущее состояние сессии; читается конкурентно ops-эндпоинтом.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run — бесконечный цикл воркера:
// 1) читаем запись и кладём в накопитель;
// 2) при полном батче — доставка через планировщик повторов;
// 3) Accepted → коммит оффсетов, Active, пустой батч;
// 4) исчерпание повторов → Degraded: закрыть сессию (оффсеты не
// закоммичены — группа перечитает) и открыть новую; неудача повторного
// открытия фатальна (Closed).
// Возвращается только с ошибкой: ctx.Err() при остановке или фатальная
// ошибка пересоздания сессии.
func (s *Session) Run(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("acquire session: %w", err)
	}
	s.log.Infof(ctx, "consumer session started topic=%s", s.topic)

	for {
		rec, fetchErr := s.fetch(ctx)
		if fetchErr != nil {
			if ctx.Err() != nil {
				s.shutdown(ctx)
				return ctx.Err()
			}
			// Ошибка уровня сессии (брокер/ребаланс): перезагружаем сессию.
			s.log.Warnf(ctx, "fetch failed: %v (rebuilding session)", fetchErr)
			if err := s.rebuild(ctx); err != nil {
				return err
			}
			continue
		}

		s.acc.Append(rec.Value)
		if !s.acc.Full() {
			continue
		}

		// Батч отдаётся планировщику целиком; накопитель пуст и при
		// неуспехе НЕ перезаполняется — повторяется сама доставка.
		events := s.acc.Drain()

		deliverErr := s.deliver(ctx, events)
		switch {
		case deliverErr == nil:
			s.commit(ctx)

		case errors.Is(deliverErr, retry.ErrExhausted):
			metrics.BatchesFailed.WithLabelValues(s.topic).Inc()
			s.log.Errorf(ctx, "batch of %d records abandoned: %v (offsets not committed, group will redeliver)",
				len(events), deliverErr)
			if err := s.rebuild(ctx); err != nil {
				return err
			}

		default:
			// Отмена контекста во время доставки или паузы.
			s.shutdown(ctx)
			return deliverErr
		}
	}
}

// fetch — одно чтение из текущей сессии.
func (s *Session) fetch(ctx context.Context) (ports.Record, error) {
	return s.source.Fetch(ctx)
}

// deliver — доставка батча с повторами; каждая попытка учитывается в метриках.
func (s *Session) deliver(ctx context.Context, events [][]byte) error {
	ctx, span := s.tracer.Start(ctx, "bridge.deliver",
		trace.WithAttributes(
			attribute.Int("batch.size", len(events)),
			attribute.String("topic", s.topic),
		))
	defer span.End()

	err := s.sched.Do(ctx, func(ctx context.Context) ports.Delivery {
		res := s.sender.Send(ctx, events)
		if res.Accepted {
			metrics.DeliveryAttempts.WithLabelValues(s.topic, "accepted").Inc()
		} else {
			metrics.DeliveryAttempts.WithLabelValues(s.topic, "rejected").Inc()
		}
		return res
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	metrics.BatchesDelivered.WithLabelValues(s.topic).Inc()
	return nil
}

// commit фиксирует оффсеты доставленного батча. Ошибка коммита не фатальна:
// оффсеты зафиксирует следующий успешный коммит, возможны дубликаты —
// допустимо моделью at-least-once.
func (s *Session) commit(ctx context.Context) {
	if err := s.source.Commit(ctx); err != nil {
		s.log.Warnf(ctx, "offset commit failed: %v (duplicates possible)", err)
	}
}

// acquire открывает новую сессию чтения: Uninitialized/Degraded → Active.
func (s *Session) acquire(ctx context.Context) error {
	src, err := s.opener.Open(ctx)
	if err != nil {
		return err
	}
	s.source = src
	s.setState(StateActive)
	return nil
}

// rebuild — Degraded: закрыть текущую сессию, сбросить недобранный батч
// (его записи не закоммичены и будут перечитаны) и открыть новую.
// Неудача повторного открытия переводит сессию в Closed.
func (s *Session) rebuild(ctx context.Context) error {
	s.setState(StateDegraded)
	metrics.SessionRebuilds.WithLabelValues(s.topic).Inc()

	if err := s.source.Close(); err != nil {
		s.log.Warnf(ctx, "source close failed: %v", err)
	}
	_ = s.acc.Drain()

	if err := s.acquire(ctx); err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("reacquire session: %w", err)
	}
	s.log.Infof(ctx, "consumer session rebuilt topic=%s", s.topic)
	return nil
}

// shutdown — терминальная остановка по отмене контекста.
func (s *Session) shutdown(ctx context.Context) {
	if err := s.source.Close(); err != nil {
		s.log.Warnf(ctx, "source close failed: %v", err)
	}
	s.setState(StateClosed)
	s.log.Infof(ctx, "consumer session stopped topic=%s", s.topic)
}
