// Package repository хранит локальный журнал закрытых продаж терминала.
package repository

import (
	"time"
)

// DayBounds возвращает полуинтервал [начало дня from; начало дня после to).
// Нулевая граница означает отсутствие ограничения и возвращается нулевой.
func DayBounds(from, to time.Time) (time.Time, time.Time) {
	var start, end time.Time
	if !from.IsZero() {
		start = startOfDay(from)
	}
	if !to.IsZero() {
		end = startOfDay(to).AddDate(0, 0, 1)
	}
	return start, end
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func inBounds(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}
