// Package month содержит расчёты по календарным месяцам.
package month

import (
	"time"
)

// Start возвращает начало календарного месяца, в который попадает t (UTC).
// Лимит создания планов считается с этого момента.
func Start(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
