package domain

import "time"

// Lease — локально известная аренда доставки: сообщение скрыто от других
// потребителей до FetchedAt + Invisibility. Источник истины — брокер.
type Lease struct {
	MessageID    string
	FetchedAt    time.Time
	Invisibility time.Duration
}

// Deadline — момент истечения аренды.
func (l Lease) Deadline() time.Time {
	return l.FetchedAt.Add(l.Invisibility)
}

// Remaining — сколько осталось до истечения; отрицательное значение — аренда уже истекла.
func (l Lease) Remaining(now time.Time) time.Duration {
	return l.Deadline().Sub(now)
}
