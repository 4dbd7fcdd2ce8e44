package kafka

import "github.com/segmentio/kafka-go"

// SourceConfig — параметры подписки одной сессии.
type SourceConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	StartOffset string // first|last
}

// readerConfig — ручной коммит оффсетов: CommitInterval = 0, фиксация
// только явным CommitMessages после подтверждённой доставки.
func (c *SourceConfig) readerConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		CommitInterval: 0,
	}

	switch c.StartOffset {
	case "first":
		rc.StartOffset = kafka.FirstOffset
	default:
		rc.StartOffset = kafka.LastOffset
	}

	return rc
}
