package ports

import "context"

// Delivery — явный результат попытки доставки батча.
// Ожидаемые отказы (не-200, таймаут, сетевая ошибка) — это НЕ ошибки
// управления потоком: они возвращаются значением и ретраятся планировщиком.
type Delivery struct {
	Accepted bool
	Status   int    // HTTP-статус ответа; 0 при транспортной ошибке
	Reason   string // пусто при Accepted
}

// Accepted — успешный результат доставки.
func Accepted(status int) Delivery {
	return Delivery{Accepted: true, Status: status}
}

// Rejected — отказ с причиной (статус 0 — транспортная ошибка).
func Rejected(status int, reason string) Delivery {
	return Delivery{Status: status, Reason: reason}
}

// BatchSender — отправка одного батча в ingestion endpoint.
// Вызов синхронный и ограничен таймаутом клиента.
type BatchSender interface {
	Send(ctx context.Context, events [][]byte) Delivery
}
