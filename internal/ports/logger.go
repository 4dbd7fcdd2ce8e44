package ports

import "context"

// Logger — минимальный контракт логгера для всех слоёв воркера.
type Logger interface {
	Infof(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
	Errorf(ctx context.Context, format string, args ...any)
}
