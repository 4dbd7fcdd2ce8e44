// Package kafka — источник записей поверх kafka-go с ручным коммитом оффсетов.
package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
	"github.com/Gunvolt24/kafka2hec/pkg/metrics"
)

// Проверка соответствия портам приложения.
var (
	_ ports.RecordSource = (*Source)(nil)
	_ ports.SourceOpener = (*Opener)(nil)
)

// reader — минимальный контракт над источником (kafka.Reader),
// чтобы легко подменять его моками в тестах.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source — одна сессия чтения: обёртка над kafka.Reader, которая помнит
// прочитанные, но ещё не закоммиченные сообщения. Close без Commit роняет
// членство в группе, и группа перечитает эти сообщения заново.
type Source struct {
	reader    reader
	topic     string
	pending   []kafka.Message
	closeOnce sync.Once
}

// Fetch читает одно сообщение без автокоммита и запоминает его
// до ближайшего Commit.
func (s *Source) Fetch(ctx context.Context) (ports.Record, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return ports.Record{}, err
	}

	s.pending = append(s.pending, msg)
	metrics.RecordsConsumed.WithLabelValues(s.topic).Inc()

	return ports.Record{
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Value:     msg.Value,
	}, nil
}

// Commit фиксирует оффсеты всех сообщений, прочитанных после предыдущего
// Commit, и очищает их список.
func (s *Source) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	if err := s.reader.CommitMessages(ctx, s.pending...); err != nil {
		return fmt.Errorf("commit %d offsets: %w", len(s.pending), err)
	}

	metrics.OffsetCommits.WithLabelValues(s.topic).Inc()
	s.pending = nil
	return nil
}

// Close закрывает reader; незакоммиченные сообщения отбрасываются.
func (s *Source) Close() (retErr error) {
	s.closeOnce.Do(func() {
		s.pending = nil
		retErr = s.reader.Close()
	})
	return retErr
}

// Opener — фабрика сессий для одного воркера: каждая Degraded→Active
// перезагрузка получает свежий reader и новое членство в группе.
type Opener struct {
	cfg *SourceConfig
	log ports.Logger
}

// NewOpener — конструктор.
func NewOpener(cfg *SourceConfig, log ports.Logger) *Opener {
	return &Opener{cfg: cfg, log: log}
}

// Open проверяет достижимость брокера и создаёт новую сессию чтения.
// Reader присоединяется к группе лениво, на первом Fetch; явный dial
// позволяет отличить "кластер недоступен" от пустого топика.
func (o *Opener) Open(ctx context.Context) (ports.RecordSource, error) {
	if len(o.cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", o.cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka: dial %s: %w", o.cfg.Brokers[0], err)
	}
	_ = conn.Close()

	r := kafka.NewReader(o.cfg.readerConfig())
	o.log.Infof(ctx, "kafka source opened topic=%s group_id=%s brokers=%v",
		o.cfg.Topic, o.cfg.GroupID, o.cfg.Brokers)

	return &Source{reader: r, topic: o.cfg.Topic}, nil
}
