package ports

import "context"

// Record — одна запись из лога: непрозрачный payload и его позиция.
// Ядро не разбирает payload, позиция нужна только для логов/метрик.
type Record struct {
	Partition int
	Offset    int64
	Value     []byte
}

// RecordSource — активная сессия чтения топика внутри consumer group.
// Fetch блокирует до появления записи (или отмены контекста).
// Commit фиксирует оффсеты ВСЕХ записей, полученных после предыдущего
// Commit. Close освобождает сессию; незакоммиченные записи будут
// перечитаны следующей сессией группы (at-least-once).
type RecordSource interface {
	Fetch(ctx context.Context) (Record, error)
	Commit(ctx context.Context) error
	Close() error
}

// SourceOpener — фабрика сессий: каждая Degraded→Active перезагрузка
// получает свежую сессию с новым членством в группе.
type SourceOpener interface {
	Open(ctx context.Context) (RecordSource, error)
}
