// Package batch — накопитель записей до размера батча.
package batch

// Accumulator буферизует непрозрачные payload'ы до достижения размера батча.
// Не потокобезопасен: один экземпляр на сессию, доступ только из её цикла.
type Accumulator struct {
	size int
	buf  [][]byte
}

// NewAccumulator — size задаёт порог Full; значения < 1 поднимаются до 1.
func NewAccumulator(size int) *Accumulator {
	if size < 1 {
		size = 1
	}
	return &Accumulator{size: size, buf: make([][]byte, 0, size)}
}

// Append добавляет один payload в конец текущего батча.
func (a *Accumulator) Append(payload []byte) {
	a.buf = append(a.buf, payload)
}

// Full — true, когда накоплено >= size записей (включительная граница).
func (a *Accumulator) Full() bool {
	return len(a.buf) >= a.size
}

// Len — текущее число накопленных записей.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Drain возвращает накопленный батч в порядке потребления и оставляет
// накопитель пустым. Возвращаемый срез принадлежит вызывающему: дальнейшие
// Append пишут в новый буфер и не алиасятся с выданным батчем.
func (a *Accumulator) Drain() [][]byte {
	out := a.buf
	a.buf = make([][]byte, 0, a.size)
	return out
}
